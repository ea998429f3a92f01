package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// LockCheckInterval is how often to release expired advisory locks
	LockCheckInterval time.Duration

	// CleanupInterval is how often to run cleanup tasks
	CleanupInterval time.Duration

	// TempFileMaxAge is the maximum age of partial uploads before cleanup
	TempFileMaxAge time.Duration

	// RunRetention is how long sync run history is kept
	RunRetention time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		LockCheckInterval: time.Minute,
		CleanupInterval:   10 * time.Minute,
		TempFileMaxAge:    time.Hour,
		RunRetention:      30 * 24 * time.Hour,
	}
}

// Store is the persistence maintenance needs
type Store interface {
	ReleaseExpiredLocks(ctx context.Context) (int, error)
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Service handles periodic maintenance tasks
type Service struct {
	config  *Config
	store   Store
	storage port.AssetStorage
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, store Store, storage port.AssetStorage, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.LockCheckInterval == 0 {
		cfg.LockCheckInterval = time.Minute
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = time.Hour
	}
	if cfg.RunRetention == 0 {
		cfg.RunRetention = 30 * 24 * time.Hour
	}

	return &Service{
		config:  cfg,
		store:   store,
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// Start starts the maintenance service
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("lock_check_interval", s.config.LockCheckInterval),
		zap.Duration("cleanup_interval", s.config.CleanupInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// RunOnce performs every maintenance task immediately
func (s *Service) RunOnce(ctx context.Context) {
	s.releaseExpiredLocks(ctx)
	s.cleanupRuns(ctx)
	s.cleanupTempFiles(ctx)
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	lockTicker := time.NewTicker(s.config.LockCheckInterval)
	defer lockTicker.Stop()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lockTicker.C:
			s.releaseExpiredLocks(ctx)
		case <-cleanupTicker.C:
			s.cleanupRuns(ctx)
			s.cleanupTempFiles(ctx)
		}
	}
}

// releaseExpiredLocks frees locks left behind by crashed processes
func (s *Service) releaseExpiredLocks(ctx context.Context) {
	released, err := s.store.ReleaseExpiredLocks(ctx)
	if err != nil {
		s.logger.Error("failed to release expired locks", zap.Error(err))
	} else if released > 0 {
		s.logger.Info("released expired locks", zap.Int("count", released))
	}
}

func (s *Service) cleanupRuns(ctx context.Context) {
	cutoff := s.now().Add(-s.config.RunRetention)
	deleted, err := s.store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to cleanup run history", zap.Error(err))
	} else if deleted > 0 {
		s.logger.Info("cleaned up run history", zap.Int("count", deleted))
	}
}

func (s *Service) cleanupTempFiles(ctx context.Context) {
	count, err := s.storage.CleanOldTempFiles(ctx, s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old temp files", zap.Error(err))
	} else if count > 0 {
		s.logger.Info("cleaned up old temp files from storage", zap.Int("count", count))
	}
}
