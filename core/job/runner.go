package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/goto/salt/log"
)

// StopToken is checked by batch jobs at batch boundaries. A stop is never
// preemptive: the job finishes its current batch first.
type StopToken interface {
	StopRequested(ctx context.Context) bool
}

// StopFunc adapts an ordinary function to a StopToken.
type StopFunc func(context.Context) bool

func (f StopFunc) StopRequested(ctx context.Context) bool { return f(ctx) }

// NeverStop is the token of runs that cannot be stopped.
var NeverStop StopToken = StopFunc(func(context.Context) bool { return false })

// Runner records job runs and guards against concurrent runs of the same
// class.
type Runner struct {
	repo   Repository
	logger log.Logger
}

func NewRunner(repo Repository, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewNoop()
	}
	return &Runner{repo: repo, logger: logger}
}

// Start registers a run of class. Unless force is set, the run ends with an
// error status and ErrAlreadyRunning is returned when another run of the same
// class is still running.
func (r *Runner) Start(ctx context.Context, class string, args []byte, force bool) (*Handle, error) {
	run := &Run{Class: class, Status: StatusStarting, Args: args}
	id, err := r.repo.Create(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("start job run: %w", err)
	}
	h := &Handle{ID: id, Class: class, repo: r.repo, logger: r.logger}

	others, err := r.repo.List(ctx, Filter{
		Class:     class,
		Statuses:  []Status{StatusStarting, StatusInProgress, StatusStopping},
		ExcludeID: id,
	})
	if err != nil {
		h.Finish(ctx, StatusError)
		return nil, fmt.Errorf("start job run: list running: %w", err)
	}
	if len(others) > 0 && !force {
		r.logger.Error("cannot start job, another run is in progress",
			"class", class, "run_id", id, "running_id", others[0].ID)
		h.Finish(ctx, StatusError)
		return nil, fmt.Errorf("%w: class '%s' run %d", ErrAlreadyRunning, class, others[0].ID)
	}
	if len(others) > 0 {
		r.logger.Warn("forcing job run while another is in progress",
			"class", class, "run_id", id, "running_id", others[0].ID)
	}

	if err := r.repo.UpdateStatus(ctx, id, StatusInProgress); err != nil {
		h.Finish(ctx, StatusError)
		return nil, fmt.Errorf("start job run: %w", err)
	}
	return h, nil
}

// Stop asks the run to stop at its next batch boundary.
func (r *Runner) Stop(ctx context.Context, id int64) error {
	run, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("stop job run: %w", err)
	}
	if !run.Status.Running() {
		return fmt.Errorf("stop job run %d: %w: status '%s'", id, ErrNotRunning, run.Status)
	}
	if err := r.repo.UpdateStatus(ctx, id, StatusStopping); err != nil {
		return fmt.Errorf("stop job run: %w", err)
	}
	return nil
}

func (r *Runner) List(ctx context.Context, flt Filter) ([]Run, error) {
	return r.repo.List(ctx, flt)
}

// Handle is the running side of a Run.
type Handle struct {
	ID    int64
	Class string

	repo   Repository
	logger log.Logger
}

// StopRequested reports whether the run was asked to stop, either through
// its status or through ctx.
func (h *Handle) StopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	run, err := h.repo.GetByID(ctx, h.ID)
	if err != nil {
		h.logger.Warn("could not read job run status", "run_id", h.ID, "err", err)
		return false
	}
	return run.Status == StatusStopping
}

// Finish records the terminal status of the run. Failures are logged only,
// the outcome of the job itself is what the caller reports.
func (h *Handle) Finish(ctx context.Context, status Status) {
	if err := h.repo.Finish(context.WithoutCancel(ctx), h.ID, status); err != nil {
		h.logger.Error("could not record job run status", "run_id", h.ID, "status", status, "err", err)
	}
}

// StatusFor maps the outcome of a job to the terminal status of its run.
func StatusFor(err error, stopped bool) Status {
	switch {
	case err == nil && stopped:
		return StatusStopped
	case err == nil:
		return StatusCompleted
	case errors.Is(err, context.Canceled):
		return StatusStopped
	default:
		return StatusError
	}
}
