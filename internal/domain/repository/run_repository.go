package repository

import (
	"context"
	"time"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// RunRepository stores sync run history
type RunRepository interface {
	// SaveRun inserts or replaces a run summary
	SaveRun(ctx context.Context, run *domain.SyncRun) error

	// ListRuns returns the most recent runs, newest first ("" type for all)
	ListRuns(ctx context.Context, entityType string, limit int) ([]*domain.SyncRun, error)

	// DeleteRunsBefore prunes history older than the cutoff
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)
}
