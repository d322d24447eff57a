package worker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidJobHandler = errors.New("job handler is not valid")

var (
	DefaultMaxAttempts                     = 3
	DefaultTimeout                         = 30 * time.Minute
	DefaultBackoffStrategy BackoffStrategy = DefaultExponentialBackoff
)

// JobFunc handles one ready job. Returning a RetryableError asks for another
// attempt, any other error or a panic sends the job to the dead jobs.
type JobFunc func(context.Context, JobSpec) error

type JobHandler struct {
	Handle  JobFunc
	JobOpts JobOptions
}

type JobOptions struct {
	MaxAttempts int
	// Timeout bounds one attempt. Reindex jobs read every resource of an
	// engine, so the default is generous.
	Timeout time.Duration
	BackoffStrategy
}

// Sanitize fills the unset options with the defaults.
func (h *JobHandler) Sanitize() error {
	if h.Handle == nil {
		return fmt.Errorf("sanitize job handler: %w: handle function must be set", ErrInvalidJobHandler)
	}

	if h.JobOpts.MaxAttempts <= 0 {
		h.JobOpts.MaxAttempts = DefaultMaxAttempts
	}
	if h.JobOpts.Timeout <= 0 {
		h.JobOpts.Timeout = DefaultTimeout
	}
	if h.JobOpts.BackoffStrategy == nil {
		h.JobOpts.BackoffStrategy = DefaultBackoffStrategy
	}
	return nil
}

// RetryableError marks a failure worth another attempt, such as a lost
// database connection. The job still dies once its attempts are spent.
type RetryableError struct {
	Cause error
}

func (re *RetryableError) Error() string {
	return fmt.Sprintf("retryable-error: %v", re.Cause)
}

func (re *RetryableError) Unwrap() error { return re.Cause }

func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
