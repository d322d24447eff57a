package cli

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/sift/internal/store/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd(cfg *Config) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run storage migration",
		Example: heredoc.Doc(`
			$ sift migrate
			$ sift migrate --down
		`),
		Args: cobra.NoArgs,
		Annotations: map[string]string{
			"group": "core",
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrations(cmd.Context(), cfg, down); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the last migration")

	return cmd
}

func runMigrations(ctx context.Context, cfg *Config, down bool) error {
	logger := initLogger(cfg.LogLevel)
	logger.Info("sift is migrating", "version", Version)

	logger.Info("Initiating Postgres client...")
	pgClient, err := postgres.NewClient(ctx, cfg.DB)
	if err != nil {
		logger.Error("failed to prepare migration", "error", err)
		return err
	}
	defer pgClient.Close()

	migrate := pgClient.Migrate
	if down {
		migrate = pgClient.MigrateDown
	}
	ver, err := migrate()
	if err != nil {
		return fmt.Errorf("problem with migration: %w", err)
	}

	logger.Info("Migration Postgres done.", "version", ver)
	return nil
}
