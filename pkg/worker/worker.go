package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/goto/salt/log"
)

var (
	ErrTypeExists  = errors.New("handler for given job type exists")
	ErrUnknownType = errors.New("job type is invalid")
	ErrJobExists   = errors.New("job with id exists")
	ErrNoJob       = errors.New("no job found")
)

const (
	minPollInterval = 100 * time.Millisecond
	maxIdleBackoff  = 5 * time.Second
	// unknownTypeBackoff parks jobs no registered handler can take.
	unknownTypeBackoff = 5 * time.Minute
)

// Worker runs the handlers of the registered job types over the jobs of a
// JobProcessor.
type Worker struct {
	workers           int
	pollInterval      time.Duration
	activePollPercent float64

	processor JobProcessor
	logger    log.Logger

	mu       sync.RWMutex
	handlers map[string]JobHandler
}

type Option func(w *Worker) error

func WithJobHandler(typ string, h JobHandler) Option {
	return func(w *Worker) error {
		return w.Register(typ, h)
	}
}

func WithLogger(l log.Logger) Option {
	return func(w *Worker) error {
		if l == nil {
			l = log.NewNoop()
		}
		w.logger = l
		return nil
	}
}

// WithRunConfig sets the number of polling goroutines and the interval
// between polls.
func WithRunConfig(workers int, pollInterval time.Duration) Option {
	return func(w *Worker) error {
		if workers <= 0 {
			workers = 1
		}
		if pollInterval < minPollInterval {
			pollInterval = minPollInterval
		}
		w.workers = workers
		w.pollInterval = pollInterval
		return nil
	}
}

// WithActivePollPercent sets the share of workers that keep polling at the
// poll interval when the queue is empty. The others slow down.
func WithActivePollPercent(pct float64) Option {
	return func(w *Worker) error {
		w.activePollPercent = pct
		return nil
	}
}

func New(processor JobProcessor, opts ...Option) (*Worker, error) {
	w := &Worker{
		processor: processor,
		handlers:  make(map[string]JobHandler),
	}

	defaults := []Option{
		WithLogger(nil),
		WithRunConfig(1, time.Second),
		WithActivePollPercent(20),
	}
	for _, opt := range append(defaults, opts...) {
		if err := opt(w); err != nil {
			return nil, fmt.Errorf("new worker: %w", err)
		}
	}
	return w, nil
}

func (w *Worker) Register(typ string, h JobHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.handlers[typ]; ok {
		return fmt.Errorf("register handler: %w: type '%s'", ErrTypeExists, typ)
	}
	if err := h.Sanitize(); err != nil {
		return fmt.Errorf("register handler: %w: type '%s'", err, typ)
	}
	w.handlers[typ] = h
	return nil
}

func (w *Worker) Enqueue(ctx context.Context, specs ...JobSpec) error {
	jobs := make([]Job, 0, len(specs))
	for _, spec := range specs {
		j, err := NewJob(spec)
		if err != nil {
			return fmt.Errorf("worker enqueue: %w", err)
		}
		jobs = append(jobs, j)
	}
	return w.processor.Enqueue(ctx, jobs...)
}

// Run polls for ready jobs until ctx is done, then waits for the jobs in
// flight. A cancelled ctx is a clean shutdown.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	active := int(math.Ceil(float64(w.workers) * w.activePollPercent / 100))

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.poll(ctx, id < active)
			w.logger.Info("worker exited", "worker_id", id)
		}(i)
	}
	wg.Wait()

	w.logger.Info("all workers exited")
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func (w *Worker) poll(ctx context.Context, active bool) {
	var backoff BackoffStrategy = ConstBackoff{Delay: w.pollInterval}
	if !active {
		backoff = &ExponentialBackoff{
			Multiplier:   1.6,
			InitialDelay: w.pollInterval,
			MaxDelay:     maxIdleBackoff,
			Jitter:       0.5,
		}
	}

	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()

	idle := 1
	for {
		select {
		case <-ctx.Done():
			return

		case <-timer.C:
			types := w.types()
			if len(types) == 0 {
				w.logger.Warn("no job handler registered, skipping poll")
				timer.Reset(w.pollInterval)
				continue
			}

			err := w.processor.Process(ctx, types, w.attempt)
			switch {
			case errors.Is(err, ErrNoJob):
				idle++
			case err != nil:
				w.logger.Error("process job failed", "err", err)
				idle = 1
			default:
				idle = 1
			}
			timer.Reset(backoff.Backoff(idle))
		}
	}
}

func (w *Worker) attempt(ctx context.Context, job Job) Job {
	start := time.Now()
	w.logger.Info("picked job", "job_id", job.ID, "job_type", job.Type, "attempts_done", job.AttemptsDone)

	h, ok := w.handler(job.Type)
	if !ok {
		job.LastError = ErrUnknownType.Error()
		job.RunAt = time.Now().Add(unknownTypeBackoff)
		return job
	}

	job.Attempt(ctx, time.Now(), h)

	w.logger.Info("job attempted",
		"job_id", job.ID,
		"job_type", job.Type,
		"attempts_done", job.AttemptsDone,
		"job_status", job.Status,
		"last_error", job.LastError,
		"time_ms", time.Since(start).Milliseconds(),
	)
	return job
}

func (w *Worker) handler(typ string) (JobHandler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	h, ok := w.handlers[typ]
	return h, ok
}

// types returns the registered types in a stable order.
func (w *Worker) types() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	types := make([]string, 0, len(w.handlers))
	for typ := range w.handlers {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
