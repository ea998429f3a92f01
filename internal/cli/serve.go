package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/config"
	"github.com/vertextoedge/sharepoint-list-sync/internal/logger"
	"github.com/vertextoedge/sharepoint-list-sync/internal/service/maintenance"
	"github.com/vertextoedge/sharepoint-list-sync/internal/service/server"
)

func newServeCmd(opts *options, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled syncs, housekeeping and the admin HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, version)
		},
	}
}

func runServe(parent context.Context, opts *options, version string) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	log.Info("starting sharepoint-list-sync",
		zap.String("version", version),
		zap.String("config", opts.configPath),
	)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// Hot reload of entity types; other settings need a restart
	loader := config.NewLoader(opts.configPath)
	loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Error("config reload rejected", zap.Error(err))
			return
		}
		if err := a.types.Replace(next.Types); err != nil {
			log.Error("entity type reload rejected", zap.Error(err))
			return
		}
		log.Info("entity types reloaded", zap.Strings("types", a.types.Names()))
	})

	maintenanceService := maintenance.New(&maintenance.Config{
		CleanupInterval: cfg.Maintenance.GetInterval(),
		TempFileMaxAge:  cfg.Maintenance.GetTempFileAge(),
		RunRetention:    cfg.Maintenance.GetRunRetention(),
	}, a.store, a.storage, log.Named("maintenance"))

	httpServer := server.New(&server.Config{
		BindAddr:       cfg.HTTP.BindAddr,
		AdminUsername:  cfg.HTTP.AdminUsername,
		AdminPassword:  cfg.HTTP.AdminPassword,
		ManualCooldown: cfg.Sync.GetManualCooldown(),
		ReadTimeout:    cfg.HTTP.GetReadTimeout(),
		WriteTimeout:   cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:    cfg.HTTP.GetIdleTimeout(),
	}, a.syncer, a.folders, a.store, a.usage, log.Named("http"))

	errCh := make(chan error, 1)

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Start syncer
	go func() {
		if err := a.syncer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("syncer stopped with error", zap.Error(err))
		}
	}()

	// Start maintenance service
	go func() {
		if err := maintenanceService.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	log.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.Strings("types", a.types.Names()),
	)

	select {
	case <-sigChan:
		log.Info("shutdown signal received, stopping services...")
	case err = <-errCh:
		log.Error("HTTP server failed", zap.Error(err))
	case <-parent.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	a.syncer.Stop()
	maintenanceService.Stop()

	if stopErr := httpServer.Stop(shutdownCtx); stopErr != nil {
		log.Error("failed to stop HTTP server gracefully", zap.Error(stopErr))
	}

	log.Info("application stopped")
	return err
}
