// Package reconciler maps external records onto local entities and media
// assets without ever creating a second entity or asset for the same source.
package reconciler

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// EntityReconciler upserts entities keyed by (type, external id)
type EntityReconciler struct {
	entities port.EntityRepository
	logger   *zap.Logger
}

// NewEntityReconciler creates a new EntityReconciler
func NewEntityReconciler(entities port.EntityRepository, logger *zap.Logger) *EntityReconciler {
	return &EntityReconciler{
		entities: entities,
		logger:   logger,
	}
}

// Upsert creates or updates the entity for (entityType, externalID). In dry
// run mode it only reports what would change.
func (r *EntityReconciler) Upsert(ctx context.Context, entityType, externalID string, attrs map[string]string, dryRun bool) (*domain.UpsertResult, error) {
	if externalID == "" {
		return nil, &domain.RecordError{Err: domain.ErrMissingExternalID}
	}

	if dryRun {
		return r.plan(ctx, entityType, externalID, attrs)
	}

	result, err := r.entities.UpsertEntity(ctx, entityType, externalID, attrs)
	if err != nil {
		return nil, &domain.PersistenceError{
			EntityType: entityType,
			ExternalID: externalID,
			Op:         "upsert",
			Err:        err,
		}
	}

	if result.Action != domain.ActionUnchanged {
		r.logger.Debug("entity reconciled",
			zap.String("entity_type", entityType),
			zap.String("external_id", externalID),
			zap.Int64("entity_id", result.LocalID),
			zap.String("action", string(result.Action)),
			zap.Strings("changed", result.ChangedKeys))
	}
	return result, nil
}

func (r *EntityReconciler) plan(ctx context.Context, entityType, externalID string, attrs map[string]string) (*domain.UpsertResult, error) {
	existing, err := r.entities.GetEntityByExternalID(ctx, entityType, externalID)
	if err != nil {
		return nil, &domain.PersistenceError{
			EntityType: entityType,
			ExternalID: externalID,
			Op:         "lookup",
			Err:        err,
		}
	}

	if existing == nil {
		keys := make([]string, 0, len(attrs))
		for k, v := range attrs {
			if v != "" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		return &domain.UpsertResult{Action: domain.ActionWouldCreate, ChangedKeys: keys}, nil
	}

	changed := domain.DiffAttributes(existing.Attributes, attrs)
	if len(changed) == 0 {
		return &domain.UpsertResult{LocalID: existing.ID, Action: domain.ActionUnchanged}, nil
	}
	return &domain.UpsertResult{LocalID: existing.ID, Action: domain.ActionWouldUpdate, ChangedKeys: changed}, nil
}
