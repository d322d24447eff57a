package job

import (
	"context"
	"errors"
	"fmt"
	"time"
)

//go:generate mockery --name=Repository -r --case underscore --with-expecter --structname JobRunRepository --filename job_run_repository_mock.go --output=./mocks

// Repository persists job runs. It backs both the concurrency guard and the
// cooperative stop signal.
type Repository interface {
	Create(ctx context.Context, run *Run) (int64, error)
	GetByID(ctx context.Context, id int64) (Run, error)
	List(ctx context.Context, flt Filter) ([]Run, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Finish(ctx context.Context, id int64, status Status) error
}

// Classes of the batch jobs.
const (
	ClassIndexSuggestions = "index-suggestions"
	ClassIndexResources   = "index-resources"
)

type Status string

const (
	StatusStarting   Status = "starting"
	StatusInProgress Status = "in_progress"
	StatusStopping   Status = "stopping"
	StatusStopped    Status = "stopped"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Running reports whether a run with the status still holds its work.
func (s Status) Running() bool {
	return s == StatusStarting || s == StatusInProgress || s == StatusStopping
}

func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusCompleted || s == StatusError
}

var (
	ErrAlreadyRunning = errors.New("another run of the job is in progress")
	ErrNotRunning     = errors.New("job run is not running")
)

type NotFoundError struct {
	RunID int64
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("could not find job run with id = %d", err.RunID)
}

// Run is one execution of a batch job.
type Run struct {
	ID        int64      `json:"id" db:"id"`
	Class     string     `json:"class" db:"class"`
	Status    Status     `json:"status" db:"status"`
	Args      []byte     `json:"args,omitempty" db:"args"`
	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
}

type Filter struct {
	Class    string
	Statuses []Status
	// ExcludeID leaves one run out, typically the caller's own.
	ExcludeID int64
	Size      int
}
