package port

import (
	"context"
	"io"
	"time"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// TokenSource provides bearer tokens for the Graph API
type TokenSource interface {
	// Token returns a valid access token and its expiry
	Token(ctx context.Context) (string, time.Time, error)

	// Invalidate drops any cached token so the next call re-authenticates
	Invalidate()
}

// RemoteList is a list known to the remote site
type RemoteList struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// DriveItem is an entry of a document library folder
type DriveItem struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Size   int64     `json:"size"`
	Folder *struct{} `json:"folder,omitempty"`
	File   *struct {
		MimeType string `json:"mimeType"`
	} `json:"file,omitempty"`
}

// IsFolder returns true if the item is a folder
func (d *DriveItem) IsFolder() bool {
	return d.Folder != nil
}

// Download is an open file content response
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	StatusCode    int
}

// ListClient defines the interface for remote list operations
type ListClient interface {
	// GetLists returns every list on the configured site
	GetLists(ctx context.Context) ([]RemoteList, error)

	// ResolveListID maps a list name to its id (exact, case-sensitive)
	ResolveListID(ctx context.Context, name string) (string, error)

	// FetchItems returns every item of a list. fields is the projection;
	// the client falls back to an unprojected fetch once if the projection
	// yields nothing usable.
	FetchItems(ctx context.Context, listID string, fields []string) ([]domain.ExternalRecord, error)
}

// DriveClient defines the interface for media library operations
type DriveClient interface {
	// ListRootChildren lists the immediate children of the media library root
	ListRootChildren(ctx context.Context) ([]DriveItem, error)

	// ListChildren lists the immediate children of a folder
	ListChildren(ctx context.Context, folderID string) ([]DriveItem, error)

	// DownloadContent opens the content of a file item. Non-2xx responses are
	// returned as errors.
	DownloadContent(ctx context.Context, itemID string) (*Download, error)
}
