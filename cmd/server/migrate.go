package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/phrazzld/folio-api/internal/platform/sqlstore"
	"github.com/spf13/cobra"
)

// newMigrateCmd builds "folio migrate" and its subcommands.
func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		migrateSubcommand(configPath, "up", "Apply all pending migrations",
			func(ctx context.Context, cmd *cobra.Command, m *sqlstore.Migrator, log *slog.Logger) error {
				applied, err := m.Up(ctx)
				if err != nil {
					return err
				}
				log.Info("Migrations applied", "count", len(applied))
				for _, v := range applied {
					cmd.Printf("applied %d\n", v)
				}
				return nil
			}),
		migrateSubcommand(configPath, "down", "Roll back the most recent migration",
			func(ctx context.Context, cmd *cobra.Command, m *sqlstore.Migrator, log *slog.Logger) error {
				v, err := m.Down(ctx)
				if err != nil {
					return err
				}
				log.Info("Migration rolled back", "version", v)
				cmd.Printf("rolled back %d\n", v)
				return nil
			}),
		migrateSubcommand(configPath, "status", "List every migration and whether it is applied",
			func(ctx context.Context, cmd *cobra.Command, m *sqlstore.Migrator, _ *slog.Logger) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					cmd.Printf("%-8s %s\n", state, s.Path)
				}
				return nil
			}),
		migrateSubcommand(configPath, "version", "Print the current schema version",
			func(ctx context.Context, cmd *cobra.Command, m *sqlstore.Migrator, _ *slog.Logger) error {
				v, err := m.Version(ctx)
				if err != nil {
					return err
				}
				cmd.Println(strconv.FormatInt(v, 10))
				return nil
			}),
	)
	return cmd
}

type migrateFunc func(ctx context.Context, cmd *cobra.Command, m *sqlstore.Migrator, log *slog.Logger) error

// migrateSubcommand wraps fn with configuration loading and a database
// connection that is closed afterwards.
func migrateSubcommand(configPath *string, use, short string, fn migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadAppConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, dialect, err := setupAppDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeDB(db, log)

			m, err := sqlstore.NewMigrator(db, dialect, log)
			if err != nil {
				return fmt.Errorf("failed to create migrator: %w", err)
			}
			if err := fn(ctx, cmd, m, log); err != nil {
				return fmt.Errorf("migrate %s failed: %w", use, err)
			}
			return nil
		},
	}
}

func closeDB(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("Failed to close database connection", "error", err)
	}
}
