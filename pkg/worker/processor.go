package worker

import "context"

//go:generate mockery --name=JobProcessor -r --case underscore --with-expecter --structname JobProcessor --filename job_processor_mock.go --output=./mocks

// JobProcessor is the queue behind a Worker.
type JobProcessor interface {
	// Enqueue stores all the jobs or none of them.
	Enqueue(ctx context.Context, jobs ...Job) error

	// Process locks one ready job of the given types, hands it to fn and
	// stores the outcome: done jobs are removed, dead jobs are moved aside
	// and the others are rescheduled. It returns ErrNoJob when nothing is
	// ready.
	Process(ctx context.Context, types []string, fn JobExecutorFunc) error

	Stats(ctx context.Context) ([]JobTypeStats, error)
}

// JobExecutorFunc attempts a locked job and returns it with the result of
// the attempt.
type JobExecutorFunc func(context.Context, Job) Job
