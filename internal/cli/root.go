// Package cli implements the sharepoint-list-sync command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vertextoedge/sharepoint-list-sync/internal/config"
	"github.com/vertextoedge/sharepoint-list-sync/internal/logger"
)

// options are the persistent flags shared by every command
type options struct {
	configPath string
	verbose    bool
}

// NewRootCmd builds the command tree
func NewRootCmd(version string) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "sharepoint-list-sync",
		Short: "One-way sync of SharePoint lists and media into a local store",
		Long: `sharepoint-list-sync pulls SharePoint lists through Microsoft Graph,
reconciles each item into a local entity store and attaches its images and
documents from the media library.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to configuration file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newServeCmd(opts, version),
		newSyncCmd(opts),
		newCacheCmd(opts),
		newOverrideCmd(opts),
		newAuthCmd(opts),
		newPurgeCmd(opts),
		newRunsCmd(opts),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and initializes the global logger
func loadConfig(opts *options) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if opts.verbose {
		level = "debug"
	}
	if err := logger.Init(logger.Options{
		Level:      level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.GetZapLogger(), nil
}

// withApp loads configuration, wires the services and runs fn
func withApp(ctx context.Context, opts *options, fn func(ctx context.Context, a *app) error) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
