package domain

import "time"

// FolderSource distinguishes manual overrides from discovered entries
type FolderSource string

const (
	FolderDiscovered FolderSource = "discovered"
	FolderOverride   FolderSource = "override"
)

// FolderCacheEntry maps a media folder name to its remote id
type FolderCacheEntry struct {
	Name      string       `json:"name"`
	ID        string       `json:"id"`
	Source    FolderSource `json:"source"`
	UpdatedAt time.Time    `json:"updated_at"`
}
