//go:build windows

package filesystem

import (
	"errors"

	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// GetDiskUsage is not supported on windows
func (m *Manager) GetDiskUsage() (*port.DiskUsage, error) {
	return nil, errors.New("disk usage is not supported on windows")
}
