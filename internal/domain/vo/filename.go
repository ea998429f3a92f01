package vo

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Filename represents a media file name value object.
type Filename struct {
	value string
}

var (
	ErrEmptyFilename   = errors.New("filename cannot be empty")
	ErrInvalidFilename = errors.New("invalid filename")
)

// NewFilename creates a new Filename value object.
func NewFilename(name string) (Filename, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Filename{}, ErrEmptyFilename
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return Filename{}, ErrInvalidFilename
	}
	return Filename{value: name}, nil
}

// MustFilename creates a new Filename, panicking if invalid.
// Use only when the name is known to be valid.
func MustFilename(name string) Filename {
	fn, err := NewFilename(name)
	if err != nil {
		panic(err)
	}
	return fn
}

// FilenameFromURL takes the decoded last path segment of a media URL.
func FilenameFromURL(rawURL string) (Filename, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Filename{}, ErrEmptyFilename
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.LastIndex(rawURL, "/"); i >= 0 {
		if unescaped, uerr := url.PathUnescape(rawURL[i+1:]); uerr == nil {
			p = unescaped
		}
	}
	return NewFilename(path.Base(p))
}

// String returns the name.
func (f Filename) String() string {
	return f.value
}

// IsEmpty returns true if the name is empty.
func (f Filename) IsEmpty() bool {
	return f.value == ""
}

// Ext returns the lower-cased extension without the dot.
func (f Filename) Ext() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(f.value), "."))
}

// Stem returns the lower-cased name without its extension.
func (f Filename) Stem() string {
	return strings.ToLower(strings.TrimSuffix(f.value, path.Ext(f.value)))
}

// EqualFold compares two names case-insensitively.
func (f Filename) EqualFold(other string) bool {
	return strings.EqualFold(f.value, other)
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[?\[\]/\\=<>:;,'"&$#*()|~` + "`" + `!{}%+\x00-\x1f]`)
	filenameWhitespace  = regexp.MustCompile(`\s+`)
	repeatedDashes      = regexp.MustCompile(`-{2,}`)
)

// Sanitized strips characters unsafe for storage keys and turns whitespace
// into dashes.
func (f Filename) Sanitized() string {
	s := unsafeFilenameChars.ReplaceAllString(f.value, "")
	s = filenameWhitespace.ReplaceAllString(s, "-")
	s = repeatedDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, ".-_")
	if s == "" {
		return "file"
	}
	return s
}

// StoredName builds the collision-resistant storage name
// "<slot>-<externalID>-<sanitized>".
func (f Filename) StoredName(slot, externalID string) string {
	return slot + "-" + externalID + "-" + f.Sanitized()
}
