package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// Store implements port.Store interface using SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Ensure Store implements port.Store
var _ port.Store = (*Store)(nil)

// Options tune the SQLite connection
type Options struct {
	CacheSizeMB   int
	BusyTimeoutMs int
}

// Open opens a connection to the SQLite database
func Open(dbPath string) (*Store, error) {
	return OpenWithOptions(dbPath, Options{})
}

// OpenWithOptions opens the database with explicit tuning
func OpenWithOptions(dbPath string, opts Options) (*Store, error) {
	if opts.CacheSizeMB <= 0 {
		opts.CacheSizeMB = 64
	}
	if opts.BusyTimeoutMs <= 0 {
		opts.BusyTimeoutMs = 5000
	}

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		dbPath, opts.BusyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheSizeMB*1000),
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := NewWithDB(db)

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an already opened database without migrating it
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SetClock replaces the time source used for timestamps and lock leases
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying database connection
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// migrate creates or updates the database schema
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_type TEXT NOT NULL,
			external_id TEXT NOT NULL,
			attributes TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (entity_type, external_id)
		)`,

		`CREATE TABLE IF NOT EXISTS media_assets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS media_bindings (
			entity_id INTEGER NOT NULL,
			slot TEXT NOT NULL,
			asset_id INTEGER NOT NULL,
			bound_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (entity_id, slot),
			FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE,
			FOREIGN KEY (asset_id) REFERENCES media_assets(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS folder_cache (
			folder_name TEXT NOT NULL COLLATE NOCASE,
			source TEXT NOT NULL,
			folder_id TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (folder_name, source)
		)`,

		`CREATE TABLE IF NOT EXISTS sync_locks (
			name TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			acquired_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sync_runs (
			id TEXT PRIMARY KEY,
			entity_type TEXT NOT NULL,
			dry_run BOOLEAN NOT NULL DEFAULT FALSE,
			created INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			unchanged INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			media_failed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type)`,
		`CREATE INDEX IF NOT EXISTS idx_media_assets_filename ON media_assets(filename COLLATE NOCASE)`,
		`CREATE INDEX IF NOT EXISTS idx_media_bindings_asset ON media_bindings(asset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	return nil
}

// GetStats returns aggregate counts across the store
func (s *Store) GetStats(ctx context.Context) (*domain.StoreStats, error) {
	stats := &domain.StoreStats{EntitiesByType: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, "SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.EntitiesByType[entityType] = count
		stats.TotalEntities += count
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	var totalSize sql.NullInt64
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*), SUM(size) FROM media_assets").Scan(&stats.TotalAssets, &totalSize)
	if err != nil {
		return nil, err
	}
	stats.TotalAssetBytes = totalSize.Int64

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM media_assets a
		WHERE NOT EXISTS (SELECT 1 FROM media_bindings b WHERE b.asset_id = a.id)
	`).Scan(&stats.OrphanAssets)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN source = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN source = ? THEN 1 ELSE 0 END), 0)
		FROM folder_cache
	`, string(domain.FolderDiscovered), string(domain.FolderOverride)).Scan(&stats.DiscoveredFolders, &stats.OverrideFolders)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_locks WHERE expires_at >= ?",
		s.now().UnixMilli()).Scan(&stats.HeldLocks)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
