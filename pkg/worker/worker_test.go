package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goto/sift/pkg/worker"
	"github.com/goto/sift/pkg/worker/mocks"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func noopHandler() worker.JobHandler {
	return worker.JobHandler{Handle: func(context.Context, worker.JobSpec) error { return nil }}
}

func TestNew(t *testing.T) {
	t.Parallel()

	var p mocks.JobProcessor

	t.Run("DuplicateType", func(t *testing.T) {
		w, err := worker.New(&p,
			worker.WithJobHandler("index-suggestions", noopHandler()),
			worker.WithJobHandler("index-suggestions", noopHandler()),
		)
		assert.EqualError(t, err, "new worker: register handler: handler for given job type exists: type 'index-suggestions'")
		assert.Nil(t, w)
	})

	t.Run("MissingHandleFunc", func(t *testing.T) {
		w, err := worker.New(&p, worker.WithJobHandler("index-suggestions", worker.JobHandler{}))
		assert.ErrorIs(t, err, worker.ErrInvalidJobHandler)
		assert.Nil(t, w)
	})

	t.Run("Success", func(t *testing.T) {
		w, err := worker.New(&p,
			worker.WithJobHandler("index-suggestions", noopHandler()),
			worker.WithRunConfig(0, 0),
		)
		assert.NoError(t, err)
		assert.NotNil(t, w)
	})
}

func TestWorker_Enqueue(t *testing.T) {
	t.Parallel()

	at := time.Unix(1654082526, 0)

	t.Run("WithoutType", func(t *testing.T) {
		w, err := worker.New(mocks.NewJobProcessor(t))
		require.NoError(t, err)

		err = w.Enqueue(ctx, worker.JobSpec{})
		assert.ErrorIs(t, err, worker.ErrInvalidJob)
	})

	t.Run("Success", func(t *testing.T) {
		now := time.Now()
		p := mocks.NewJobProcessor(t)
		p.EXPECT().
			Enqueue(mock.Anything, mock.AnythingOfType("worker.Job"), mock.AnythingOfType("worker.Job")).
			Run(func(ctx context.Context, jobs ...worker.Job) {
				require.Len(t, jobs, 2)
				assert.Equal(t, "index-suggestions", jobs[0].Type)
				assert.Equal(t, []byte(`{"search_suggester_id":1}`), jobs[0].Payload)
				assert.WithinDuration(t, now, jobs[0].RunAt, 5*time.Second)
				assert.Equal(t, "index-resources", jobs[1].Type)
				assert.Equal(t, at, jobs[1].RunAt)
				assert.NotEqual(t, jobs[0].ID, jobs[1].ID)
			}).
			Return(nil).
			Once()

		w, err := worker.New(p)
		require.NoError(t, err)

		err = w.Enqueue(ctx,
			worker.JobSpec{Type: "index-suggestions", Payload: []byte(`{"search_suggester_id":1}`)},
			worker.JobSpec{Type: "index-resources", RunAt: at},
		)
		assert.NoError(t, err)
	})

	t.Run("ProcessorError", func(t *testing.T) {
		p := mocks.NewJobProcessor(t)
		p.EXPECT().Enqueue(mock.Anything, mock.AnythingOfType("worker.Job")).Return(worker.ErrJobExists)

		w, err := worker.New(p)
		require.NoError(t, err)

		err = w.Enqueue(ctx, worker.JobSpec{Type: "index-resources"})
		assert.True(t, errors.Is(err, worker.ErrJobExists))
	})
}

func TestWorker_Run(t *testing.T) {
	t.Parallel()

	opts := []worker.Option{
		worker.WithJobHandler("index-suggestions", noopHandler()),
		worker.WithRunConfig(1, 10*time.Millisecond),
	}

	t.Run("ContextCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		w, err := worker.New(mocks.NewJobProcessor(t), opts...)
		require.NoError(t, err)
		assert.NoError(t, w.Run(ctx))
	})

	t.Run("ContextDeadline", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Unix(0, 0))
		defer cancel()

		w, err := worker.New(mocks.NewJobProcessor(t), opts...)
		require.NoError(t, err)
		assert.NoError(t, w.Run(ctx))
	})

	t.Run("UnknownType", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var attempted int
		p := mocks.NewJobProcessor(t)
		p.EXPECT().
			Process(mock.Anything, []string{"index-suggestions"}, mock.Anything).
			Run(func(ctx context.Context, types []string, fn worker.JobExecutorFunc) {
				result := fn(ctx, worker.Job{JobSpec: worker.JobSpec{Type: "index-assets"}})
				assert.Equal(t, "job type is invalid", result.LastError)
				assert.WithinDuration(t, time.Now().Add(5*time.Minute), result.RunAt, 5*time.Second)

				attempted++
				cancel()
			}).
			Return(nil)

		w, err := worker.New(p, opts...)
		require.NoError(t, err)
		assert.NoError(t, w.Run(ctx))
		assert.Equal(t, 1, attempted)
	})

	t.Run("Success", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var attempted int
		p := mocks.NewJobProcessor(t)
		p.EXPECT().
			Process(mock.Anything, []string{"index-suggestions"}, mock.Anything).
			Run(func(ctx context.Context, types []string, fn worker.JobExecutorFunc) {
				result := fn(ctx, worker.Job{ID: ulid.Make(), JobSpec: worker.JobSpec{Type: "index-suggestions"}})
				assert.Equal(t, worker.StatusDone, result.Status)

				attempted++
				cancel()
			}).
			Return(nil)

		w, err := worker.New(p, opts...)
		require.NoError(t, err)
		assert.NoError(t, w.Run(ctx))
		assert.Equal(t, 1, attempted)
	})
}
