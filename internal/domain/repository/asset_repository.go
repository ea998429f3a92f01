package repository

import (
	"context"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// AssetRepository defines operations on the media asset index and bindings
type AssetRepository interface {
	// CreateAsset inserts an asset record and sets its ID
	CreateAsset(ctx context.Context, asset *domain.MediaAsset) error

	// GetAsset retrieves an asset by id. Returns nil, nil when absent.
	GetAsset(ctx context.Context, id int64) (*domain.MediaAsset, error)

	// FindAssetCandidates returns assets whose filename contains the given
	// stem (case-insensitive), newest first.
	FindAssetCandidates(ctx context.Context, stem string) ([]*domain.MediaAsset, error)

	// CountAssets returns the number of stored assets
	CountAssets(ctx context.Context) (int, error)

	// ListOrphanAssets returns assets with no binding
	ListOrphanAssets(ctx context.Context) ([]*domain.MediaAsset, error)

	// GetBinding returns the binding for an entity slot. Returns nil, nil when absent.
	GetBinding(ctx context.Context, entityID int64, slot string) (*domain.MediaBinding, error)

	// BindAsset creates or replaces the binding for an entity slot
	BindAsset(ctx context.Context, entityID int64, slot string, assetID int64) error
}
