package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/printer"
	"github.com/goto/salt/term"
	"github.com/goto/sift/core/job"
	"github.com/spf13/cobra"
)

func jobCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job <command>",
		Short: "Manage the runs of the index jobs",
		Example: heredoc.Doc(`
			$ sift job list
			$ sift job list --class index-suggestions --running
			$ sift job stop 42
		`),
		Annotations: map[string]string{
			"group": "core",
		},
	}

	cmd.AddCommand(
		jobListCmd(cfg),
		jobStopCmd(cfg),
	)

	return cmd
}

func jobListCmd(cfg *Config) *cobra.Command {
	var (
		flt     job.Filter
		running bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the job runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if running {
				flt.Statuses = []job.Status{job.StatusStarting, job.StatusInProgress, job.StatusStopping}
			}

			var runs []job.Run
			err := withRunner(cmd.Context(), cfg, func(ctx context.Context, r *job.Runner) (err error) {
				runs, err = r.List(ctx, flt)
				return err
			})
			if err != nil {
				return err
			}

			if asJSON {
				fmt.Println(prettyPrint(runs))
				return nil
			}

			report := [][]string{{"ID", "CLASS", "STATUS", "STARTED", "ENDED", "ARGS"}}
			for _, run := range runs {
				ended := "-"
				if run.EndedAt != nil {
					ended = run.EndedAt.Format(time.RFC3339)
				}
				report = append(report, []string{
					strconv.FormatInt(run.ID, 10),
					run.Class,
					statusColor(run.Status),
					run.StartedAt.Format(time.RFC3339),
					ended,
					string(run.Args),
				})
			}
			printer.Table(os.Stdout, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&flt.Class, "class", "", "Job class (index-suggestions, index-resources)")
	cmd.Flags().BoolVar(&running, "running", false, "List only the runs still in progress")
	cmd.Flags().IntVar(&flt.Size, "size", 20, "Maximum number of runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the runs as JSON")

	return cmd
}

func jobStopCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <run-id>",
		Short: "Ask a running job to stop at its next batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			err = withRunner(cmd.Context(), cfg, func(ctx context.Context, r *job.Runner) error {
				return r.Stop(ctx, id)
			})
			if err != nil {
				return err
			}

			fmt.Println("stopping run", term.Greenf("%d", id))
			return nil
		},
	}
}

func withRunner(ctx context.Context, cfg *Config, f func(context.Context, *job.Runner) error) error {
	logger := initLogger(cfg.LogLevel)

	pgClient, err := initPostgres(ctx, logger, cfg.DB)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	svc := &services{pg: pgClient}
	if err := svc.initRepositories(); err != nil {
		return err
	}
	return f(ctx, svc.runner(logger))
}

func statusColor(s job.Status) string {
	switch s {
	case job.StatusCompleted:
		return term.Greenf("%s", s)
	case job.StatusError:
		return term.Redf("%s", s)
	case job.StatusStopping, job.StatusStopped:
		return term.Yellow(string(s))
	default:
		return term.Cyanf("%s", s)
	}
}
