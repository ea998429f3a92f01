package repository

import (
	"context"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
)

// EntityRepository defines operations on local entities
type EntityRepository interface {
	// GetEntity retrieves an entity by local id. Returns nil, nil when absent.
	GetEntity(ctx context.Context, id int64) (*domain.Entity, error)

	// GetEntityByExternalID retrieves an entity by its reconciliation key.
	// Returns nil, nil when absent.
	GetEntityByExternalID(ctx context.Context, entityType, externalID string) (*domain.Entity, error)

	// FindEntityByAttribute returns the newest entity of a type whose attribute equals value
	FindEntityByAttribute(ctx context.Context, entityType, attribute, value string) (*domain.Entity, error)

	// UpsertEntity atomically creates the entity for (type, external id) or merges
	// attributes into the existing one.
	UpsertEntity(ctx context.Context, entityType, externalID string, attrs map[string]string) (*domain.UpsertResult, error)

	// MergeAttributes merges attributes into an existing entity; "" deletes a key
	MergeAttributes(ctx context.Context, id int64, attrs map[string]string) error

	// DeleteEntity deletes an entity and its media bindings
	DeleteEntity(ctx context.Context, id int64) error

	// DeleteEntitiesByType deletes every entity of a type
	DeleteEntitiesByType(ctx context.Context, entityType string) (int, error)

	// CountEntities returns the number of entities of a type ("" for all)
	CountEntities(ctx context.Context, entityType string) (int, error)
}
