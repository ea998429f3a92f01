package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

const entityColumns = `id, entity_type, external_id, attributes, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*domain.Entity, error) {
	e := &domain.Entity{}
	var attrs string
	if err := row.Scan(&e.ID, &e.Type, &e.ExternalID, &attrs, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attrs), &e.Attributes); err != nil {
		return nil, fmt.Errorf("entity %d has malformed attributes: %w", e.ID, err)
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	return e, nil
}

func encodeAttributes(attrs map[string]string) (string, error) {
	clean := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if v != "" {
			clean[k] = v
		}
	}
	b, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("failed to encode attributes: %w", err)
	}
	return string(b), nil
}

// GetEntity retrieves an entity by local id
func (s *Store) GetEntity(ctx context.Context, id int64) (*domain.Entity, error) {
	e, err := scanEntity(s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// GetEntityByExternalID retrieves an entity by (type, external id)
func (s *Store) GetEntityByExternalID(ctx context.Context, entityType, externalID string) (*domain.Entity, error) {
	e, err := scanEntity(s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE entity_type = ? AND external_id = ?`,
		entityType, externalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// FindEntityByAttribute returns the newest entity of a type whose attribute equals value
func (s *Store) FindEntityByAttribute(ctx context.Context, entityType, attribute, value string) (*domain.Entity, error) {
	path := `$."` + strings.ReplaceAll(attribute, `"`, `\"`) + `"`
	e, err := scanEntity(s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE entity_type = ? AND json_extract(attributes, ?) = ?
		 ORDER BY id DESC LIMIT 1`,
		entityType, path, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// UpsertEntity creates the entity for (type, external id) or merges attributes
// into the existing row. The insert runs first inside the transaction so the
// existence check and the create cannot interleave with another writer.
func (s *Store) UpsertEntity(ctx context.Context, entityType, externalID string, attrs map[string]string) (*domain.UpsertResult, error) {
	encoded, err := encodeAttributes(attrs)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.timestamp()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO entities (entity_type, external_id, attributes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, external_id) DO NOTHING
	`, entityType, externalID, encoded, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert entity: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if inserted == 1 {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		keys := make([]string, 0, len(attrs))
		for k, v := range attrs {
			if v != "" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		return &domain.UpsertResult{LocalID: id, Action: domain.ActionCreated, ChangedKeys: keys}, nil
	}

	existing, err := scanEntity(tx.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE entity_type = ? AND external_id = ?`,
		entityType, externalID))
	if err != nil {
		return nil, fmt.Errorf("failed to load existing entity: %w", err)
	}

	changed := domain.DiffAttributes(existing.Attributes, attrs)
	if len(changed) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		return &domain.UpsertResult{LocalID: existing.ID, Action: domain.ActionUnchanged}, nil
	}

	merged, err := encodeAttributes(domain.MergeAttributes(existing.Attributes, attrs))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE entities SET attributes = ?, updated_at = ? WHERE id = ?`,
		merged, now, existing.ID); err != nil {
		return nil, fmt.Errorf("failed to update entity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return &domain.UpsertResult{LocalID: existing.ID, Action: domain.ActionUpdated, ChangedKeys: changed}, nil
}

// MergeAttributes merges attributes into an existing entity
func (s *Store) MergeAttributes(ctx context.Context, id int64, attrs map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanEntity(tx.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	if len(domain.DiffAttributes(existing.Attributes, attrs)) == 0 {
		return nil
	}

	merged, err := encodeAttributes(domain.MergeAttributes(existing.Attributes, attrs))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE entities SET attributes = ?, updated_at = ? WHERE id = ?`,
		merged, s.timestamp(), id); err != nil {
		return fmt.Errorf("failed to update attributes: %w", err)
	}
	return tx.Commit()
}

// DeleteEntity deletes an entity and its media bindings. Assets are kept.
func (s *Store) DeleteEntity(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM media_bindings WHERE entity_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteEntitiesByType deletes every entity of a type and their bindings
func (s *Store) DeleteEntitiesByType(ctx context.Context, entityType string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM media_bindings
		WHERE entity_id IN (SELECT id FROM entities WHERE entity_type = ?)
	`, entityType); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE entity_type = ?`, entityType)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// CountEntities returns the number of entities of a type ("" for all)
func (s *Store) CountEntities(ctx context.Context, entityType string) (int, error) {
	var count int
	var err error
	if entityType == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE entity_type = ?`, entityType).Scan(&count)
	}
	return count, err
}
