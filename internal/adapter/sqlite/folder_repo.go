package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// GetFolder returns the entry for name and source. Names compare case-insensitively.
func (s *Store) GetFolder(ctx context.Context, name string, source domain.FolderSource) (*domain.FolderCacheEntry, error) {
	e := &domain.FolderCacheEntry{}
	var src string
	err := s.db.QueryRowContext(ctx, `
		SELECT folder_name, folder_id, source, updated_at FROM folder_cache
		WHERE folder_name = ? AND source = ?
	`, name, string(source)).Scan(&e.Name, &e.ID, &src, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Source = domain.FolderSource(src)
	return e, nil
}

const upsertFolderSQL = `
	INSERT INTO folder_cache (folder_name, source, folder_id, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (folder_name, source) DO UPDATE SET
		folder_name = excluded.folder_name,
		folder_id = excluded.folder_id,
		updated_at = excluded.updated_at
`

// PutFolder creates or replaces an entry
func (s *Store) PutFolder(ctx context.Context, entry *domain.FolderCacheEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = s.timestamp()
	}
	_, err := s.db.ExecContext(ctx, upsertFolderSQL,
		entry.Name, string(entry.Source), entry.ID, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store folder %s: %w", entry.Name, err)
	}
	return nil
}

// PutFolders writes entries in one transaction
func (s *Store) PutFolders(ctx context.Context, entries []*domain.FolderCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertFolderSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := s.timestamp()
	for _, entry := range entries {
		if entry.UpdatedAt.IsZero() {
			entry.UpdatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, entry.Name, string(entry.Source), entry.ID, entry.UpdatedAt); err != nil {
			return fmt.Errorf("failed to store folder %s: %w", entry.Name, err)
		}
	}

	return tx.Commit()
}

// DeleteFolder removes one entry
func (s *Store) DeleteFolder(ctx context.Context, name string, source domain.FolderSource) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM folder_cache WHERE folder_name = ? AND source = ?`, name, string(source))
	return err
}

// ClearFolders removes every entry of a source
func (s *Store) ClearFolders(ctx context.Context, source domain.FolderSource) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM folder_cache WHERE source = ?`, string(source))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListFolders returns every entry ordered by name then source
func (s *Store) ListFolders(ctx context.Context) ([]*domain.FolderCacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT folder_name, folder_id, source, updated_at FROM folder_cache
		ORDER BY folder_name, source
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.FolderCacheEntry
	for rows.Next() {
		e := &domain.FolderCacheEntry{}
		var src string
		if err := rows.Scan(&e.Name, &e.ID, &src, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Source = domain.FolderSource(src)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
