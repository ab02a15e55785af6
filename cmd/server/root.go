package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/folio-api/internal/config"
	"github.com/phrazzld/folio-api/internal/platform/logger"
	"github.com/phrazzld/folio-api/internal/platform/sqlstore"
	"github.com/spf13/cobra"
)

// newRootCmd builds the folio command tree.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "folio",
		Short:         "JSON:API server for authors, books and comments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"path to a config file (default: ./config.yaml if present)")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newServeCmd(&configPath), newMigrateCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadAppConfig(*configPath)
			if err != nil {
				return err
			}
			db, dialect, err := setupAppDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			app, err := newApplication(cfg, log, db, dialect)
			if err != nil {
				_ = db.Close()
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

// loadAppConfig loads the configuration and sets up structured logging
// from it.
func loadAppConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver)
	return cfg, l, nil
}

// setupAppDatabase opens the configured database and verifies the
// connection.
func setupAppDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*sql.DB, sqlstore.Dialect, error) {
	db, dialect, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL,
		sqlstore.Options{MaxOpenConns: cfg.Database.MaxOpenConns})
	if err != nil {
		return nil, sqlstore.Dialect{}, err
	}
	log.Info("Database connection established", "driver", dialect.Name())
	return db, dialect, nil
}
