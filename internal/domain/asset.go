package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// MediaAsset is a stored binary. It holds no reference to any entity.
type MediaAsset struct {
	ID          int64
	Filename    string
	StoragePath string
	MimeType    string
	Size        int64
	CreatedAt   time.Time
}

// MediaBinding attaches an asset to an entity slot
type MediaBinding struct {
	EntityID int64
	Slot     string
	AssetID  int64
	BoundAt  time.Time
}

// DefaultMimeType is used for unrecognized extensions
const DefaultMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"avif": "image/avif",
	"webp": "image/webp",
	"pdf":  "application/pdf",
}

// MimeTypeFor derives a MIME type from the filename extension
func MimeTypeFor(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return DefaultMimeType
}
