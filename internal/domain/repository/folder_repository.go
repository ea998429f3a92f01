package repository

import (
	"context"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// FolderCacheRepository persists folder name to remote id mappings
type FolderCacheRepository interface {
	// GetFolder returns the entry for name and source. Returns nil, nil when absent.
	GetFolder(ctx context.Context, name string, source domain.FolderSource) (*domain.FolderCacheEntry, error)

	// PutFolder creates or replaces an entry
	PutFolder(ctx context.Context, entry *domain.FolderCacheEntry) error

	// PutFolders writes several discovered entries in one transaction
	PutFolders(ctx context.Context, entries []*domain.FolderCacheEntry) error

	// DeleteFolder removes one entry
	DeleteFolder(ctx context.Context, name string, source domain.FolderSource) error

	// ClearFolders removes every entry of a source and returns the count
	ClearFolders(ctx context.Context, source domain.FolderSource) (int, error)

	// ListFolders returns every entry ordered by name then source
	ListFolders(ctx context.Context) ([]*domain.FolderCacheEntry, error)
}
