package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/log"
	"github.com/goto/salt/term"
	"github.com/goto/sift/core/resource"
	"github.com/goto/sift/internal/indexer"
	"github.com/goto/sift/internal/workermanager"
	"github.com/spf13/cobra"
)

// indexJobEnqueuer runs or queues the index jobs.
type indexJobEnqueuer interface {
	EnqueueIndexSuggestionsJob(ctx context.Context, args indexer.SuggestionArgs) error
	EnqueueIndexResourcesJob(ctx context.Context, args indexer.ResourceArgs) error
	Close() error
}

func indexCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <command>",
		Short: "Rebuild the suggestions and search documents",
		Long: heredoc.Doc(`
			Rebuild the suggestions of a suggester or the search documents of an
			engine. The job runs in the foreground unless --async queues it for
			the worker.
		`),
		Example: heredoc.Doc(`
			$ sift index suggestions 1
			$ sift index suggestions 1 --async
			$ sift index resources 1 --start-id 5000 --by-step 200
		`),
		Annotations: map[string]string{
			"group": "core",
		},
	}

	cmd.AddCommand(
		indexSuggestionsCmd(cfg),
		indexResourcesCmd(cfg),
	)

	return cmd
}

func indexSuggestionsCmd(cfg *Config) *cobra.Command {
	var args indexer.SuggestionArgs
	var async bool

	cmd := &cobra.Command{
		Use:   "suggestions <suggester-id>",
		Short: "Rebuild the suggestions of a suggester",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			id, err := strconv.ParseInt(posArgs[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid suggester id %q: %w", posArgs[0], err)
			}
			args.SearchSuggesterID = id

			return runIndex(cmd.Context(), cfg, async, func(ctx context.Context, e indexJobEnqueuer) error {
				return e.EnqueueIndexSuggestionsJob(ctx, args)
			})
		},
	}

	cmd.Flags().BoolVar(&args.Force, "force", false, "Run even if another run of the job is in progress")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the job for the worker instead of running it")

	return cmd
}

func indexResourcesCmd(cfg *Config) *cobra.Command {
	var args indexer.ResourceArgs
	var visibility string
	var async bool

	cmd := &cobra.Command{
		Use:   "resources <engine-id>",
		Short: "Rebuild the search documents of an engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			id, err := strconv.ParseInt(posArgs[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid engine id %q: %w", posArgs[0], err)
			}
			args.SearchEngineID = id

			switch v := resource.Visibility(visibility); v {
			case "any":
				args.Visibility = resource.VisibilityAny
			case resource.VisibilityAny, resource.VisibilityPublic, resource.VisibilityPrivate:
				args.Visibility = v
			default:
				return fmt.Errorf("invalid visibility %q", visibility)
			}

			return runIndex(cmd.Context(), cfg, async, func(ctx context.Context, e indexJobEnqueuer) error {
				return e.EnqueueIndexResourcesJob(ctx, args)
			})
		},
	}

	cmd.Flags().Int64Var(&args.StartResourceID, "start-id", 0, "First resource id to index, the index is not cleared when set")
	cmd.Flags().Int64SliceVar(&args.ResourceIDs, "ids", nil, "Index only these resources")
	cmd.Flags().IntVar(&args.ResourcesByStep, "by-step", indexer.DefaultBatchSize, "Resources indexed per batch")
	cmd.Flags().StringSliceVar(&args.ResourceTypes, "type", nil, "Resource types to index, defaults to the engine types")
	cmd.Flags().StringVar(&visibility, "visibility", "any", "Visibility of the indexed resources (any, public, private)")
	cmd.Flags().BoolVar(&args.Force, "force", false, "Run even if another run of the job is in progress")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the job for the worker instead of running it")

	return cmd
}

func runIndex(ctx context.Context, cfg *Config, async bool, run func(context.Context, indexJobEnqueuer) error) error {
	logger := initLogger(cfg.LogLevel)

	svc, err := initServices(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer svc.close(logger)

	enqueuer, err := newIndexJobEnqueuer(ctx, logger, cfg, svc, async)
	if err != nil {
		return err
	}
	defer func() {
		if err := enqueuer.Close(); err != nil {
			logger.Error("close job enqueuer", "err", err)
		}
	}()

	if err := run(ctx, enqueuer); err != nil {
		return err
	}

	if async {
		fmt.Println(term.Greenf("job queued"))
	} else {
		fmt.Println(term.Greenf("job done"))
	}
	return nil
}

func newIndexJobEnqueuer(ctx context.Context, logger log.Logger, cfg *Config, svc *services, async bool) (indexJobEnqueuer, error) {
	deps := workermanager.Deps{
		Config:      cfg.Worker,
		Suggestions: svc.suggestionIndexer(logger),
		Resources:   svc.resourceIndexer(logger),
		Logger:      logger,
	}
	if !async {
		return workermanager.NewInSituWorker(deps), nil
	}
	if !cfg.Worker.Enabled {
		return nil, errWorkerDisabled
	}

	mgr, err := workermanager.New(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("create worker manager: %w", err)
	}
	return mgr, nil
}
