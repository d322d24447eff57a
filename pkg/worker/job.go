package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type JobStatus string

const (
	StatusUnknown JobStatus = ""
	StatusDone    JobStatus = "done"
	StatusDead    JobStatus = "dead"
)

// cancelBackoff delays a job whose attempt was cut short by a shutdown.
const cancelBackoff = 5 * time.Second

var ErrInvalidJob = errors.New("job is not valid")

// JobSpec is what callers enqueue: the handler type, its JSON arguments and
// the earliest time the job may run.
type JobSpec struct {
	Type    string    `json:"type"`
	Payload []byte    `json:"args"`
	RunAt   time.Time `json:"run_at"`
}

// Job is a queued JobSpec with the bookkeeping of its attempts.
type Job struct {
	ID ulid.ULID `json:"id"`
	JobSpec

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AttemptsDone  int       `json:"attempts_done"`
	Status        JobStatus `json:"-"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// JobTypeStats counts the queued and dead jobs of one type.
type JobTypeStats struct {
	Type   string `json:"type"`
	Active int    `json:"active"`
	Dead   int    `json:"dead"`
}

// NewJob normalises the type of spec and stamps a new job with it. A spec
// without RunAt is ready at once.
func NewJob(spec JobSpec) (Job, error) {
	spec.Type = strings.ToLower(strings.TrimSpace(spec.Type))
	if spec.Type == "" {
		return Job{}, fmt.Errorf("%w: job type must be set", ErrInvalidJob)
	}

	now := time.Now()
	if spec.RunAt.IsZero() {
		spec.RunAt = now
	}
	return Job{
		ID:        ulid.Make(),
		JobSpec:   spec,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Attempt runs h for the job and records the outcome on j:
//   - success marks it done;
//   - a RetryableError schedules another attempt while attempts remain;
//   - any other error, an exhausted retry or a panic marks it dead;
//   - an already cancelled ctx reschedules it without running h.
func (j *Job) Attempt(ctx context.Context, now time.Time, h JobHandler) {
	defer func() {
		if v := recover(); v != nil {
			j.LastError = fmt.Sprintf("panic: %v", v)
			j.Status = StatusDead
		}
		j.AttemptsDone++
		j.LastAttemptAt = now
		j.UpdatedAt = now
	}()

	if err := ctx.Err(); err != nil {
		j.RunAt = now.Add(cancelBackoff)
		j.LastError = fmt.Sprintf("canceled: %v", err)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, h.JobOpts.Timeout)
	defer cancel()

	err := h.Handle(runCtx, j.JobSpec)
	if err == nil {
		j.Status = StatusDone
		return
	}

	j.LastError = err.Error()
	if IsRetryable(err) && j.AttemptsDone+1 < h.JobOpts.MaxAttempts {
		j.RunAt = now.Add(h.JobOpts.Backoff(j.AttemptsDone + 1))
		return
	}
	j.Status = StatusDead
}
