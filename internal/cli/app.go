package cli

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/adapter/filesystem"
	"github.com/vertextoedge/sharepoint-list-sync/internal/adapter/graph"
	miniostore "github.com/vertextoedge/sharepoint-list-sync/internal/adapter/minio"
	"github.com/vertextoedge/sharepoint-list-sync/internal/adapter/sqlite"
	"github.com/vertextoedge/sharepoint-list-sync/internal/config"
	"github.com/vertextoedge/sharepoint-list-sync/internal/domain"
	"github.com/vertextoedge/sharepoint-list-sync/internal/port"
	"github.com/vertextoedge/sharepoint-list-sync/internal/service/folders"
	"github.com/vertextoedge/sharepoint-list-sync/internal/service/reconciler"
	"github.com/vertextoedge/sharepoint-list-sync/internal/service/syncer"
)

// app holds the wired services for one process
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *sqlite.Store
	storage port.AssetStorage
	usage   port.UsageReporter
	tokens  *graph.CredentialProvider
	graph   *graph.Client
	types   *domain.TypeRegistry
	folders *folders.Service
	syncer  *syncer.Syncer
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	types, err := domain.NewTypeRegistry(cfg.Types)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.OpenWithOptions(cfg.Database.Path, sqlite.Options{
		CacheSizeMB:   cfg.Database.CacheSizeMB,
		BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}

	a := &app{cfg: cfg, logger: logger, store: store, types: types}

	if err := a.openStorage(ctx); err != nil {
		store.Close()
		return nil, err
	}

	a.tokens = graph.NewCredentialProvider(graph.CredentialConfig{
		Authority:    cfg.Graph.Authority,
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Scope:        cfg.Graph.Scope,
		SafetyMargin: cfg.Graph.GetTokenMargin(),
	}, &http.Client{Timeout: cfg.Graph.GetTokenTimeout()}, nil)

	a.graph = graph.NewClient(graph.ClientConfig{
		BaseURL:         cfg.Graph.BaseURL,
		SiteID:          cfg.Graph.SiteID,
		MediaListID:     cfg.Graph.MediaListID,
		MediaListName:   cfg.Graph.MediaListName,
		PageSize:        cfg.Graph.PageSize,
		MetadataTimeout: cfg.Graph.GetMetadataTimeout(),
		DownloadTimeout: cfg.Graph.GetDownloadTimeout(),
	}, a.tokens, logger)

	a.folders = folders.New(&folders.Config{
		Marker:          cfg.Media.FolderMarker,
		DiscoverTimeout: cfg.Graph.GetMetadataTimeout(),
	}, a.graph, store, logger.Named("folders"))

	entities := reconciler.NewEntityReconciler(store, logger.Named("entities"))
	media := reconciler.NewMediaReconciler(store, a.storage, a.graph, a.folders, cfg.Media.GetMaxSize(), logger.Named("media"))

	a.syncer = syncer.New(&syncer.Config{
		Interval:    cfg.Sync.GetInterval(),
		Parallelism: cfg.Sync.Parallelism,
		LockTTL:     cfg.Sync.GetLockTTL(),
	}, types, a.graph, store, entities, media, logger.Named("syncer"))

	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	switch a.cfg.Media.Storage {
	case "minio":
		mc := a.cfg.Media.MinIO
		cfg := miniostore.Config{
			Endpoint:  mc.Endpoint,
			AccessKey: mc.AccessKey,
			SecretKey: mc.SecretKey,
			UseSSL:    mc.UseSSL,
			Bucket:    mc.Bucket,
			Region:    mc.Region,
			Prefix:    mc.Prefix,
			Timeout:   mc.GetTimeout(),
		}
		client, err := miniostore.NewClient(cfg)
		if err != nil {
			return err
		}
		storage, err := miniostore.New(ctx, client, cfg)
		if err != nil {
			return err
		}
		a.storage = storage
	default:
		fm, err := filesystem.NewManagerWithBufferSize(a.cfg.Media.RootDir, a.cfg.Media.GetBufferSize())
		if err != nil {
			return fmt.Errorf("failed to create media storage: %w", err)
		}
		a.storage = fm
		a.usage = fm
	}
	return nil
}

func (a *app) Close() error {
	return a.store.Close()
}
