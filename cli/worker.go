package cli

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/sift/internal/workermanager"
	"github.com/goto/sift/pkg/telemetry"
	"github.com/spf13/cobra"
)

func workerCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker <command>",
		Short: "Run sift worker",
		Long:  "Worker management commands.",
		Example: heredoc.Doc(`
			$ sift worker start
			$ sift worker start -c ./config.yaml
		`),
		Annotations: map[string]string{
			"group": "core",
		},
	}

	cmd.AddCommand(workerStartCommand(cfg))

	return cmd
}

func workerStartCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Short:   "Start the worker processing the index jobs and the configured schedules",
		Example: "sift worker start",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runWorker(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("run worker: %w", err)
			}
			return nil
		},
	}
}

func runWorker(ctx context.Context, cfg *Config) error {
	if !cfg.Worker.Enabled {
		return errWorkerDisabled
	}

	logger := initLogger(cfg.LogLevel)
	logger.Info("sift worker starting", "version", Version)

	cfg.Telemetry.AppVersion = Version
	nrApp, cleanUp, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		return err
	}

	defer cleanUp()

	svc, err := initServices(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer svc.close(logger)

	mgr, err := workermanager.New(ctx, workermanager.Deps{
		Config:      cfg.Worker,
		Suggestions: svc.suggestionIndexer(logger),
		Resources:   svc.resourceIndexer(logger),
		NewRelic:    nrApp,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Error("Close worker manager", "err", err)
		}
	}()

	return mgr.Run(ctx)
}
