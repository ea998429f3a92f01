//go:build !windows

package filesystem

import (
	"fmt"
	"syscall"

	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// GetDiskUsage reports the volume holding the asset root. Free space is what
// an unprivileged process can still write.
func (m *Manager) GetDiskUsage() (*port.DiskUsage, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(m.rootDir, &st); err != nil {
		return nil, fmt.Errorf("statfs %s: %w", m.rootDir, err)
	}

	blockSize := uint64(st.Bsize)
	usage := &port.DiskUsage{
		Total: st.Blocks * blockSize,
		Free:  st.Bavail * blockSize,
	}
	usage.Used = usage.Total - st.Bfree*blockSize
	if usage.Total > 0 {
		usage.UsedPct = float64(usage.Used) / float64(usage.Total) * 100
	}
	return usage, nil
}
