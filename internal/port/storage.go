package port

import (
	"context"
	"io"
	"time"
)

// AssetStorage stores media blobs by name
type AssetStorage interface {
	// Put writes content under name and returns the storage path and size
	Put(ctx context.Context, name string, reader io.Reader, contentType string) (string, int64, error)

	// Exists checks whether a blob is present at storage path
	Exists(ctx context.Context, storagePath string) (bool, error)

	// Delete removes a blob; missing blobs are not an error
	Delete(ctx context.Context, storagePath string) error

	// CleanOldTempFiles removes partial uploads older than the given age
	// and returns how many were removed
	CleanOldTempFiles(ctx context.Context, olderThan time.Duration) (int, error)
}

// DiskUsage represents disk usage information
type DiskUsage struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	UsedPct float64 `json:"used_pct"`
}

// UsageReporter is implemented by storages backed by a local disk
type UsageReporter interface {
	GetDiskUsage() (*DiskUsage, error)
}
