// Package syncer runs entity type syncs: it fetches list items, reconciles
// them into local entities and attaches their media.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
	"github.com/vertextoedge/sharepoint-list-sync/internal/service/reconciler"
)

// Config contains syncer configuration
type Config struct {
	Interval    time.Duration // scheduled SyncAll; 0 disables
	Parallelism int           // entity types synced concurrently by SyncAll
	LockTTL     time.Duration
}

// DefaultConfig returns default syncer configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:    0,
		Parallelism: 1,
		LockTTL:     30 * time.Minute,
	}
}

// Store is the persistence the syncer needs
type Store interface {
	port.EntityRepository
	port.LockRepository
	port.RunRepository
}

// EntityUpserter reconciles one record into a local entity
type EntityUpserter interface {
	Upsert(ctx context.Context, entityType, externalID string, attrs map[string]string, dryRun bool) (*domain.UpsertResult, error)
}

// MediaReconciler attaches one media slot
type MediaReconciler interface {
	Reconcile(ctx context.Context, req reconciler.MediaRequest) (int64, error)
}

// ProgressFunc is called after each record of a run
type ProgressFunc = func(entityType string, done, total int)

// Syncer orchestrates entity type syncs
type Syncer struct {
	config   *Config
	types    *domain.TypeRegistry
	lists    port.ListClient
	store    Store
	entities EntityUpserter
	media    MediaReconciler
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	typeLocks map[string]*sync.Mutex
	running   bool
	cancel    context.CancelFunc
}

// New creates a new Syncer
func New(cfg *Config, types *domain.TypeRegistry, lists port.ListClient, store Store, entities EntityUpserter, media MediaReconciler, logger *zap.Logger) *Syncer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}

	return &Syncer{
		config:    cfg,
		types:     types,
		lists:     lists,
		store:     store,
		entities:  entities,
		media:     media,
		logger:    logger,
		now:       time.Now,
		typeLocks: make(map[string]*sync.Mutex),
	}
}

// Types returns the registered entity type names
func (s *Syncer) Types() []string {
	return s.types.Names()
}

// Sync runs one entity type
func (s *Syncer) Sync(ctx context.Context, entityType string, dryRun bool) (*domain.SyncRun, error) {
	return s.SyncWithProgress(ctx, entityType, dryRun, nil)
}

// SyncWithProgress runs one entity type and reports per-record progress
func (s *Syncer) SyncWithProgress(ctx context.Context, entityType string, dryRun bool, progress ProgressFunc) (*domain.SyncRun, error) {
	return s.syncType(ctx, entityType, dryRun, newListCache(s.lists), progress)
}

// SyncAll runs every registered type. Types run concurrently up to the
// configured parallelism; records within a type never do. An auth failure
// cancels the remaining types.
func (s *Syncer) SyncAll(ctx context.Context, dryRun bool, progress ProgressFunc) ([]*domain.SyncRun, error) {
	names := s.types.Names()
	runs := make([]*domain.SyncRun, len(names))
	lists := newListCache(s.lists)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Parallelism)

	for i, name := range names {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			run, err := s.syncType(gctx, name, dryRun, lists, progress)
			runs[i] = run
			if err != nil && domain.IsAuthError(err) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()

	var out []*domain.SyncRun
	for _, r := range runs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, err
}

func (s *Syncer) typeLock(entityType string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.typeLocks[entityType]
	if !ok {
		m = &sync.Mutex{}
		s.typeLocks[entityType] = m
	}
	return m
}

// LockName returns the advisory lock guarding an entity type
func LockName(entityType string) string {
	return "sync:" + entityType
}

func (s *Syncer) syncType(ctx context.Context, entityType string, dryRun bool, lists *listCache, progress ProgressFunc) (*domain.SyncRun, error) {
	spec, err := s.types.Get(entityType)
	if err != nil {
		return nil, err
	}

	run := &domain.SyncRun{
		ID:         uuid.NewString(),
		EntityType: entityType,
		DryRun:     dryRun,
		StartedAt:  s.now().UTC(),
	}
	log := s.logger.With(
		zap.String("run_id", run.ID),
		zap.String("entity_type", entityType),
		zap.Bool("dry_run", dryRun))

	// Dry runs write nothing and take no locks
	if !dryRun {
		local := s.typeLock(entityType)
		if !local.TryLock() {
			return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, entityType)
		}
		defer local.Unlock()

		ok, err := s.store.AcquireLock(ctx, LockName(entityType), run.ID, s.config.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, entityType)
		}
		defer func() {
			if err := s.store.ReleaseLock(context.WithoutCancel(ctx), LockName(entityType), run.ID); err != nil {
				log.Warn("failed to release lock", zap.Error(err))
			}
		}()
	}

	log.Info("sync started", zap.String("list", spec.ListName))

	err = s.runRecords(ctx, &spec, run, lists, progress, log)
	run.FinishedAt = s.now().UTC()
	if err != nil {
		run.Error = err.Error()
	}

	if saveErr := s.store.SaveRun(context.WithoutCancel(ctx), run); saveErr != nil {
		log.Warn("failed to save run history", zap.Error(saveErr))
	}

	fields := []zap.Field{
		zap.Int("created", run.Created),
		zap.Int("updated", run.Updated),
		zap.Int("unchanged", run.Unchanged),
		zap.Int("skipped", run.Skipped),
		zap.Int("media_failed", run.MediaFailed),
		zap.Int("failed", run.Failed),
		zap.Duration("duration", run.Duration()),
	}
	if err != nil {
		log.Error("sync aborted", append(fields, zap.Error(err))...)
		return run, err
	}
	log.Info("sync completed", fields...)
	return run, nil
}

func (s *Syncer) runRecords(ctx context.Context, spec *domain.TypeSpec, run *domain.SyncRun, lists *listCache, progress ProgressFunc, log *zap.Logger) error {
	listID, err := lists.resolve(ctx, spec.ListName)
	if err != nil {
		return err
	}

	records, err := s.lists.FetchItems(ctx, listID, spec.ProjectedFields())
	if err != nil {
		return err
	}
	log.Info("fetched records", zap.Int("count", len(records)))

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.processRecord(ctx, spec, &records[i], run, log); err != nil {
			return err
		}

		if !run.DryRun {
			if err := s.store.RefreshLock(ctx, LockName(spec.Name), run.ID, s.config.LockTTL); err != nil {
				log.Warn("failed to refresh lock", zap.Error(err))
			}
		}
		if progress != nil {
			progress(spec.Name, i+1, len(records))
		}
	}
	return nil
}

// processRecord reconciles one record. Only fatal errors are returned; record
// level failures are counted on the run.
func (s *Syncer) processRecord(ctx context.Context, spec *domain.TypeSpec, rec *domain.ExternalRecord, run *domain.SyncRun, log *zap.Logger) error {
	externalID := ExtractExternalID(spec, rec)
	if externalID == "" {
		run.Skipped++
		log.Warn("skipping record", zap.Error(&domain.RecordError{Err: domain.ErrMissingExternalID}))
		return nil
	}
	log = log.With(zap.String("external_id", externalID))

	attrs, err := ExtractAttributes(spec, rec, externalID)
	if err != nil {
		if !domain.IsSkippable(err) {
			return err
		}
		run.Skipped++
		log.Warn("skipping record", zap.Error(err), zap.Strings("fields", rec.FieldNames()))
		return nil
	}

	if err := s.resolveReferences(ctx, spec, attrs); err != nil {
		run.Failed++
		log.Error("failed to resolve references", zap.Error(err))
		return nil
	}

	result, err := s.entities.Upsert(ctx, spec.Name, externalID, attrs, run.DryRun)
	if err != nil {
		if !domain.IsSkippable(err) {
			return err
		}
		if domain.IsPersistenceError(err) {
			run.Failed++
		} else {
			run.Skipped++
		}
		log.Error("failed to reconcile record", zap.Error(err))
		return nil
	}

	switch result.Action {
	case domain.ActionCreated, domain.ActionWouldCreate:
		run.Created++
	case domain.ActionUpdated, domain.ActionWouldUpdate:
		run.Updated++
	default:
		run.Unchanged++
	}

	if run.DryRun || result.LocalID == 0 {
		return nil
	}

	for _, slot := range spec.Media {
		sourceURL := ExtractMediaURL(slot, rec)
		if sourceURL == "" {
			continue
		}
		_, err := s.media.Reconcile(ctx, reconciler.MediaRequest{
			EntityID:   result.LocalID,
			EntityType: spec.Name,
			ExternalID: externalID,
			Slot:       slot.Name,
			SourceURL:  sourceURL,
		})
		if err == nil {
			continue
		}
		if domain.IsAuthError(err) {
			return err
		}
		run.MediaFailed++
		log.Warn("media slot failed", zap.String("slot", slot.Name), zap.Error(err))
	}
	return nil
}

// resolveReferences stores the local id of each referenced entity as
// "<attribute>_id", or clears it when the target is not known locally.
func (s *Syncer) resolveReferences(ctx context.Context, spec *domain.TypeSpec, attrs map[string]string) error {
	for _, ref := range spec.References {
		key := ref.Attribute + "_id"
		value := attrs[ref.Attribute]
		if value == "" {
			attrs[key] = ""
			continue
		}
		target, err := s.store.FindEntityByAttribute(ctx, ref.TargetType, ref.TargetAttribute, value)
		if err != nil {
			return fmt.Errorf("lookup %s by %s: %w", ref.TargetType, ref.TargetAttribute, err)
		}
		if target == nil {
			attrs[key] = ""
			continue
		}
		attrs[key] = strconv.FormatInt(target.ID, 10)
	}
	return nil
}

// Runs returns recent run history, newest first
func (s *Syncer) Runs(ctx context.Context, entityType string, limit int) ([]*domain.SyncRun, error) {
	if entityType != "" {
		if _, err := s.types.Get(entityType); err != nil {
			return nil, err
		}
	}
	return s.store.ListRuns(ctx, entityType, limit)
}

// Purge deletes every local entity of a type along with its media bindings.
// Assets stay behind as orphans so a later sync reattaches them.
func (s *Syncer) Purge(ctx context.Context, entityType string) (int, error) {
	if _, err := s.types.Get(entityType); err != nil {
		return 0, err
	}

	local := s.typeLock(entityType)
	if !local.TryLock() {
		return 0, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, entityType)
	}
	defer local.Unlock()

	owner := uuid.NewString()
	ok, err := s.store.AcquireLock(ctx, LockName(entityType), owner, s.config.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, entityType)
	}
	defer s.store.ReleaseLock(context.WithoutCancel(ctx), LockName(entityType), owner)

	n, err := s.store.DeleteEntitiesByType(ctx, entityType)
	if err != nil {
		return 0, &domain.PersistenceError{EntityType: entityType, Op: "purge", Err: err}
	}
	s.logger.Info("purged entities", zap.String("entity_type", entityType), zap.Int("count", n))
	return n, nil
}

// Start runs SyncAll on the configured interval until the context is canceled
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("syncer already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if s.config.Interval <= 0 {
		s.logger.Info("scheduled sync disabled")
		<-ctx.Done()
		return nil
	}

	s.logger.Info("syncer started", zap.Duration("interval", s.config.Interval))

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("syncer stopped")
			return nil
		case <-ticker.C:
			if _, err := s.SyncAll(ctx, false, nil); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("scheduled sync failed", zap.Error(err))
			}
		}
	}
}

// Stop stops the scheduler
func (s *Syncer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}
