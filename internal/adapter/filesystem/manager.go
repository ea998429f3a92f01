package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

const tempSuffix = ".downloading"

// Manager stores media blobs in a flat local directory
type Manager struct {
	rootDir    string
	bufferSize int
	now        func() time.Time
}

// Ensure Manager implements port.AssetStorage
var _ port.AssetStorage = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager(rootDir string) (*Manager, error) {
	return NewManagerWithBufferSize(rootDir, 1024*1024) // 1MB default
}

// NewManagerWithBufferSize creates a new filesystem manager with custom buffer size
func NewManagerWithBufferSize(rootDir string, bufferSize int) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media root dir: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 1024 * 1024
	}

	return &Manager{
		rootDir:    rootDir,
		bufferSize: bufferSize,
		now:        time.Now,
	}, nil
}

// RootDir returns the media root directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// fullPath maps a storage path onto the root. Storage paths are bare names.
func (m *Manager) fullPath(storagePath string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + storagePath))
	if name == "/" || name == "." || name != storagePath {
		return "", fmt.Errorf("invalid storage path %q", storagePath)
	}
	return filepath.Join(m.rootDir, name), nil
}

// uniqueName returns name, or name with a numeric suffix before the extension
// when a blob already occupies it.
func (m *Manager) uniqueName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(m.rootDir, candidate)); os.IsNotExist(err) {
			return candidate
		}
		candidate = stem + "-" + strconv.Itoa(i) + ext
	}
}

// Put writes content to a temp file and renames it into place. Existing blobs
// are never overwritten; the returned storage path carries any suffix added.
func (m *Manager) Put(ctx context.Context, name string, reader io.Reader, contentType string) (string, int64, error) {
	if _, err := m.fullPath(name); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(m.rootDir, name+".*"+tempSuffix)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	buf := make([]byte, m.bufferSize)
	written, err := io.CopyBuffer(tmp, &ctxReader{ctx: ctx, r: reader}, buf)
	if err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to close file: %w", err)
	}

	final := m.uniqueName(name)
	if err := os.Rename(tempPath, filepath.Join(m.rootDir, final)); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return final, written, nil
}

// Exists checks if a blob exists
func (m *Manager) Exists(ctx context.Context, storagePath string) (bool, error) {
	full, err := m.fullPath(storagePath)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// Delete removes a blob
func (m *Manager) Delete(ctx context.Context, storagePath string) error {
	full, err := m.fullPath(storagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetSize returns total size of stored blobs
func (m *Manager) GetSize() (int64, error) {
	var size int64
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size, nil
}

// CleanOldTempFiles removes temp files older than the specified duration
func (m *Manager) CleanOldTempFiles(ctx context.Context, olderThan time.Duration) (int, error) {
	count := 0
	threshold := m.now().Add(-olderThan)

	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), tempSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(filepath.Join(m.rootDir, e.Name())); removeErr == nil {
				count++
			}
		}
	}
	return count, nil
}

// ctxReader stops a copy once the context is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
