package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
	"github.com/vertextoedge/sharepoint-list-sync/internal/util/ratelimiter"
)

// Config contains HTTP server configuration
type Config struct {
	BindAddr       string
	AdminUsername  string
	AdminPassword  string
	ManualCooldown time.Duration // minimum delay between manual syncs of one type
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		BindAddr:       "127.0.0.1:8080",
		ManualCooldown: 30 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   10 * time.Minute,
		IdleTimeout:    60 * time.Second,
	}
}

// Syncer runs entity type syncs
type Syncer interface {
	Sync(ctx context.Context, entityType string, dryRun bool) (*domain.SyncRun, error)
	SyncAll(ctx context.Context, dryRun bool, progress func(entityType string, done, total int)) ([]*domain.SyncRun, error)
	Runs(ctx context.Context, entityType string, limit int) ([]*domain.SyncRun, error)
}

// Folders manages the media folder cache
type Folders interface {
	DiscoverAll(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) (int, error)
	Status(ctx context.Context) ([]*domain.FolderCacheEntry, error)
	SetOverride(ctx context.Context, name, id string) error
	DeleteOverride(ctx context.Context, name string) error
}

// Store is the read-only store surface used for health and stats
type Store interface {
	Ping(ctx context.Context) error
	GetStats(ctx context.Context) (*domain.StoreStats, error)
}

// Server represents the admin HTTP server
type Server struct {
	config       *Config
	store        Store
	usage        port.UsageReporter
	logger       *zap.Logger
	server       *http.Server
	adminHandler *AdminHandler
	statsHandler *StatsHandler
}

// New creates a new HTTP server. usage may be nil when blobs are not on a
// local disk.
func New(cfg *Config, syncer Syncer, folders Folders, store Store, usage port.UsageReporter, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config: cfg,
		store:  store,
		usage:  usage,
		logger: logger,
	}

	s.adminHandler = NewAdminHandler(syncer, folders, ratelimiter.NewKeyed(cfg.ManualCooldown), logger)
	s.statsHandler = NewStatsHandler(store, usage, logger)

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	adminAuth := BasicAuthMiddleware(cfg.AdminUsername, cfg.AdminPassword, logger)

	mux.HandleFunc("POST /admin/sync", adminAuth(s.adminHandler.HandleSyncAll))
	mux.HandleFunc("POST /admin/sync/{type}", adminAuth(s.adminHandler.HandleSync))
	mux.HandleFunc("GET /admin/runs", adminAuth(s.adminHandler.HandleRuns))
	mux.HandleFunc("GET /admin/folders", adminAuth(s.adminHandler.HandleFolderStatus))
	mux.HandleFunc("POST /admin/folders/refresh", adminAuth(s.adminHandler.HandleFolderRefresh))
	mux.HandleFunc("POST /admin/folders/clear", adminAuth(s.adminHandler.HandleFolderClear))
	mux.HandleFunc("PUT /admin/folders/overrides/{name}", adminAuth(s.adminHandler.HandleSetOverride))
	mux.HandleFunc("DELETE /admin/folders/overrides/{name}", adminAuth(s.adminHandler.HandleDeleteOverride))
	mux.HandleFunc("GET /admin/stats", adminAuth(s.statsHandler.HandleStats))

	s.server = &http.Server{
		Addr:         cfg.BindAddr,
		Handler:      LoggingMiddleware(logger)(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		http.Error(w, "Database connection failed", http.StatusServiceUnavailable)
		return
	}

	response := map[string]any{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}
	if s.usage != nil {
		if usage, err := s.usage.GetDiskUsage(); err == nil {
			response["disk"] = usage
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
