package workermw_test

import (
	"context"
	"testing"
	"time"

	"github.com/goto/sift/pkg/worker"
	"github.com/goto/sift/pkg/worker/mocks"
	"github.com/goto/sift/pkg/worker/workermw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestJobProcessorInstrumentation(t *testing.T) {
	ctx := context.Background()
	job, err := worker.NewJob(worker.JobSpec{Type: "index-suggestions", Payload: []byte(`{"search_suggester_id":1}`)})
	assert.NoError(t, err)

	t.Run("Enqueue", func(t *testing.T) {
		p := mocks.NewJobProcessor(t)
		p.EXPECT().Enqueue(ctx, job).Return(worker.ErrJobExists)

		mw := workermw.WithJobProcessorInstrumentation()(p)
		assert.ErrorIs(t, mw.Enqueue(ctx, job), worker.ErrJobExists)
	})

	t.Run("Process", func(t *testing.T) {
		p := mocks.NewJobProcessor(t)
		p.EXPECT().
			Process(ctx, []string{"index-suggestions"}, mock.AnythingOfType("worker.JobExecutorFunc")).
			Run(func(ctx context.Context, types []string, fn worker.JobExecutorFunc) {
				result := fn(ctx, job)
				assert.Equal(t, worker.StatusDone, result.Status)
				assert.Equal(t, 1, result.AttemptsDone)
			}).
			Return(nil)

		mw := workermw.WithJobProcessorInstrumentation()(p)
		err := mw.Process(ctx, []string{"index-suggestions"}, func(ctx context.Context, job worker.Job) worker.Job {
			job.AttemptsDone++
			job.LastAttemptAt = time.Now()
			job.Status = worker.StatusDone
			return job
		})
		assert.NoError(t, err)
	})

	t.Run("Stats", func(t *testing.T) {
		stats := []worker.JobTypeStats{{Type: "index-resources", Active: 2, Dead: 1}}
		p := mocks.NewJobProcessor(t)
		p.EXPECT().Stats(ctx).Return(stats, nil)

		mw := workermw.WithJobProcessorInstrumentation()(p)
		got, err := mw.Stats(ctx)
		assert.NoError(t, err)
		assert.Equal(t, stats, got)
	})
}
