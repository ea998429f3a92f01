// Package folders resolves media folder names to remote drive folder ids.
//
// Lookups consult manual overrides first, then the persisted discovery cache,
// and only then list the media library root. Discovery results are written to
// the discovery cache and never to overrides.
package folders

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// DefaultMarker is the library path segment that precedes media folders
const DefaultMarker = "Image Media"

// LockName is the advisory lock taken by every discovery cache write
const LockName = "folders"

// Config contains folder cache configuration
type Config struct {
	Marker  string
	LockTTL time.Duration
	// DiscoverTimeout bounds a shared root listing, which outlives the
	// caller that started it
	DiscoverTimeout time.Duration
}

// DefaultConfig returns default folder cache configuration
func DefaultConfig() *Config {
	return &Config{
		Marker:          DefaultMarker,
		LockTTL:         5 * time.Minute,
		DiscoverTimeout: 30 * time.Second,
	}
}

// Store is the persistence the service needs
type Store interface {
	port.FolderCacheRepository
	port.LockRepository
}

// Service is the folder resolution cache
type Service struct {
	config *Config
	drive  port.DriveClient
	store  Store
	logger *zap.Logger
	group  singleflight.Group
}

// New creates a new folder resolution service
func New(cfg *Config, drive port.DriveClient, store Store, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.DiscoverTimeout <= 0 {
		cfg.DiscoverTimeout = 30 * time.Second
	}
	return &Service{
		config: cfg,
		drive:  drive,
		store:  store,
		logger: logger,
	}
}

func folderNotFound(name string) error {
	return domain.NewMediaError("", "", fmt.Errorf("%w: %s", domain.ErrFolderNotFound, name))
}

// GetFolderID returns the remote id for a folder name
func (s *Service) GetFolderID(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", folderNotFound(name)
	}

	for _, source := range []domain.FolderSource{domain.FolderOverride, domain.FolderDiscovered} {
		entry, err := s.store.GetFolder(ctx, name, source)
		if err != nil {
			return "", fmt.Errorf("failed to read folder cache: %w", err)
		}
		if entry != nil {
			return entry.ID, nil
		}
	}

	id, err := s.Discover(ctx, name)
	if err != nil {
		return "", err
	}

	// The id is valid for this lookup even when it cannot be cached
	s.cacheDiscovered(ctx, name, id)
	return id, nil
}

// cacheDiscovered stores one discovery result under the folders lock. While
// a refresh or clear holds the lock the result is not cached.
func (s *Service) cacheDiscovered(ctx context.Context, name, id string) {
	log := s.logger.With(zap.String("folder", name))

	release, err := s.lock(ctx)
	if err != nil {
		log.Debug("folder cache busy, discovered folder not cached", zap.Error(err))
		return
	}
	defer release()

	entry := &domain.FolderCacheEntry{Name: name, ID: id, Source: domain.FolderDiscovered}
	if err := s.store.PutFolder(ctx, entry); err != nil {
		log.Warn("failed to cache discovered folder", zap.Error(err))
	}
}

// Discover lists the media library root and returns the id of the folder
// whose name matches case-insensitively. It does not recurse.
//
// Concurrent calls for the same name share one listing. The listing runs
// detached from any single caller and is bounded by DiscoverTimeout; each
// caller still stops waiting when its own ctx is done.
func (s *Service) Discover(ctx context.Context, name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	ch := s.group.DoChan(key, func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.DiscoverTimeout)
		defer cancel()

		items, err := s.drive.ListRootChildren(dctx)
		if err != nil {
			return "", err
		}
		for _, item := range items {
			if item.IsFolder() && strings.EqualFold(strings.TrimSpace(item.Name), key) {
				s.logger.Debug("discovered folder",
					zap.String("folder", item.Name), zap.String("folder_id", item.ID))
				return item.ID, nil
			}
		}
		return "", nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		id := res.Val.(string)
		if id == "" {
			// Built per caller, callers annotate it with their slot
			return "", folderNotFound(name)
		}
		return id, nil
	}
}

// DiscoverAll lists every root folder and merges them into the discovery cache
func (s *Service) DiscoverAll(ctx context.Context) (map[string]string, error) {
	release, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	items, err := s.drive.ListRootChildren(ctx)
	if err != nil {
		return nil, err
	}

	found := make(map[string]string)
	var entries []*domain.FolderCacheEntry
	for _, item := range items {
		if !item.IsFolder() {
			continue
		}
		name := strings.TrimSpace(item.Name)
		found[name] = item.ID
		entries = append(entries, &domain.FolderCacheEntry{
			Name:   name,
			ID:     item.ID,
			Source: domain.FolderDiscovered,
		})
	}

	if err := s.store.PutFolders(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to store discovered folders: %w", err)
	}

	s.logger.Info("folder cache refreshed", zap.Int("folders", len(found)))
	return found, nil
}

// Clear deletes the discovery cache. Overrides are kept.
func (s *Service) Clear(ctx context.Context) (int, error) {
	release, err := s.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	n, err := s.store.ClearFolders(ctx, domain.FolderDiscovered)
	if err != nil {
		return 0, fmt.Errorf("failed to clear folder cache: %w", err)
	}
	s.logger.Info("folder cache cleared", zap.Int("removed", n))
	return n, nil
}

// SetOverride pins a folder name to an id
func (s *Service) SetOverride(ctx context.Context, name, id string) error {
	name = strings.TrimSpace(name)
	id = strings.TrimSpace(id)
	if name == "" || id == "" {
		return fmt.Errorf("%w: folder name and id are required", domain.ErrInvalidInput)
	}
	if err := s.store.PutFolder(ctx, &domain.FolderCacheEntry{
		Name:   name,
		ID:     id,
		Source: domain.FolderOverride,
	}); err != nil {
		return err
	}
	s.logger.Info("folder override set", zap.String("folder", name), zap.String("folder_id", id))
	return nil
}

// DeleteOverride removes a pinned folder
func (s *Service) DeleteOverride(ctx context.Context, name string) error {
	return s.store.DeleteFolder(ctx, strings.TrimSpace(name), domain.FolderOverride)
}

// Status returns every cache entry with its source
func (s *Service) Status(ctx context.Context) ([]*domain.FolderCacheEntry, error) {
	return s.store.ListFolders(ctx)
}

// ResolveURL derives the folder from an asset URL and returns its id
func (s *Service) ResolveURL(ctx context.Context, rawURL string) (string, error) {
	name, err := FolderNameFromURL(rawURL, s.config.Marker)
	if err != nil {
		return "", err
	}
	return s.GetFolderID(ctx, name)
}

func (s *Service) lock(ctx context.Context) (func(), error) {
	owner := uuid.NewString()
	ok, err := s.store.AcquireLock(ctx, LockName, owner, s.config.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, LockName)
	}
	return func() {
		if err := s.store.ReleaseLock(context.WithoutCancel(ctx), LockName, owner); err != nil {
			s.logger.Warn("failed to release lock", zap.String("lock", LockName), zap.Error(err))
		}
	}, nil
}

// FolderNameFromURL returns the path segment between the marker segment and
// the filename: ".../<marker>/<folder>/<file>". The marker compares
// case-insensitively with whitespace runs collapsed.
func FolderNameFromURL(rawURL, marker string) (string, error) {
	badURL := func() error {
		return domain.NewMediaError("", "", fmt.Errorf("%w: %s", domain.ErrUnexpectedURL, rawURL))
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Path == "" {
		return "", badURL()
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 3 {
		return "", badURL()
	}

	want := normalizeSegment(marker)
	n := len(segments)
	if normalizeSegment(segments[n-3]) != want {
		return "", badURL()
	}

	folder := strings.TrimSpace(segments[n-2])
	if folder == "" || strings.TrimSpace(segments[n-1]) == "" {
		return "", badURL()
	}
	return folder, nil
}

func normalizeSegment(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
