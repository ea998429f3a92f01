package repository

import (
	"context"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// StatsRepository provides aggregate statistics
type StatsRepository interface {
	// GetStats returns counts across entities, assets, folders and locks
	GetStats(ctx context.Context) (*domain.StoreStats, error)
}
