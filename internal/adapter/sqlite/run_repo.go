package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// SaveRun inserts or replaces a run summary
func (s *Store) SaveRun(ctx context.Context, run *domain.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_runs (
			id, entity_type, dry_run, created, updated, unchanged, skipped, media_failed, failed,
			started_at, finished_at, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.EntityType, run.DryRun, run.Created, run.Updated, run.Unchanged, run.Skipped,
		run.MediaFailed, run.Failed, millis(run.StartedAt), millis(run.FinishedAt), run.Error)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(ctx context.Context, entityType string, limit int) ([]*domain.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, entity_type, dry_run, created, updated, unchanged, skipped, media_failed, failed,
			started_at, finished_at, error
		FROM sync_runs`
	args := []any{}
	if entityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.SyncRun
	for rows.Next() {
		r := &domain.SyncRun{}
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.EntityType, &r.DryRun, &r.Created, &r.Updated, &r.Unchanged, &r.Skipped,
			&r.MediaFailed, &r.Failed, &started, &finished, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt = fromMillis(started)
		r.FinishedAt = fromMillis(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRunsBefore prunes history older than the cutoff
func (s *Store) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_runs WHERE started_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
