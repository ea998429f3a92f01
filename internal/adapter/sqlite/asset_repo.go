package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

const assetColumns = `id, filename, storage_path, mime_type, size, created_at`

func scanAsset(row rowScanner) (*domain.MediaAsset, error) {
	a := &domain.MediaAsset{}
	if err := row.Scan(&a.ID, &a.Filename, &a.StoragePath, &a.MimeType, &a.Size, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) queryAssets(ctx context.Context, query string, args ...any) ([]*domain.MediaAsset, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*domain.MediaAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// CreateAsset inserts an asset record and sets its ID
func (s *Store) CreateAsset(ctx context.Context, asset *domain.MediaAsset) error {
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = s.timestamp()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO media_assets (filename, storage_path, mime_type, size, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, asset.Filename, asset.StoragePath, asset.MimeType, asset.Size, asset.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	asset.ID = id
	return nil
}

// GetAsset retrieves an asset by id
func (s *Store) GetAsset(ctx context.Context, id int64) (*domain.MediaAsset, error) {
	a, err := scanAsset(s.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM media_assets WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// escapeLike escapes LIKE wildcards with a backslash
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// FindAssetCandidates returns assets whose filename contains stem, newest first.
// LIKE is case-insensitive for ASCII in SQLite; callers apply the exact rules.
func (s *Store) FindAssetCandidates(ctx context.Context, stem string) ([]*domain.MediaAsset, error) {
	if stem == "" {
		return nil, nil
	}
	return s.queryAssets(ctx, `
		SELECT `+assetColumns+` FROM media_assets
		WHERE filename LIKE ? ESCAPE '\'
		ORDER BY id DESC
	`, "%"+escapeLike(stem)+"%")
}

// CountAssets returns the number of stored assets
func (s *Store) CountAssets(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_assets`).Scan(&count)
	return count, err
}

// ListOrphanAssets returns assets with no binding, oldest first
func (s *Store) ListOrphanAssets(ctx context.Context) ([]*domain.MediaAsset, error) {
	return s.queryAssets(ctx, `
		SELECT a.id, a.filename, a.storage_path, a.mime_type, a.size, a.created_at
		FROM media_assets a
		LEFT JOIN media_bindings b ON b.asset_id = a.id
		WHERE b.asset_id IS NULL
		ORDER BY a.id
	`)
}

// GetBinding returns the binding for an entity slot
func (s *Store) GetBinding(ctx context.Context, entityID int64, slot string) (*domain.MediaBinding, error) {
	b := &domain.MediaBinding{}
	err := s.db.QueryRowContext(ctx, `
		SELECT entity_id, slot, asset_id, bound_at FROM media_bindings
		WHERE entity_id = ? AND slot = ?
	`, entityID, slot).Scan(&b.EntityID, &b.Slot, &b.AssetID, &b.BoundAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BindAsset creates or replaces the binding for an entity slot
func (s *Store) BindAsset(ctx context.Context, entityID int64, slot string, assetID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_bindings (entity_id, slot, asset_id, bound_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entity_id, slot) DO UPDATE SET
			asset_id = excluded.asset_id,
			bound_at = excluded.bound_at
	`, entityID, slot, assetID, s.timestamp())
	if err != nil {
		return fmt.Errorf("failed to bind asset: %w", err)
	}
	return nil
}
