package job_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goto/sift/core/job"
	"github.com/goto/salt/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]job.Run
}

func newMemRepo() *memRepo {
	return &memRepo{runs: make(map[int64]job.Run)}
}

func (r *memRepo) Create(_ context.Context, run *job.Run) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	run.ID = r.nextID
	run.StartedAt = time.Now()
	r.runs[run.ID] = *run
	return run.ID, nil
}

func (r *memRepo) GetByID(_ context.Context, id int64) (job.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return job.Run{}, job.NotFoundError{RunID: id}
	}
	return run, nil
}

func (r *memRepo) List(_ context.Context, flt job.Filter) ([]job.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var runs []job.Run
	for id := int64(1); id <= r.nextID; id++ {
		run := r.runs[id]
		if run.ID == flt.ExcludeID || (flt.Class != "" && run.Class != flt.Class) {
			continue
		}
		if len(flt.Statuses) > 0 && !hasStatus(flt.Statuses, run.Status) {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id int64, status job.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.runs[id]
	run.Status = status
	r.runs[id] = run
	return nil
}

func (r *memRepo) Finish(ctx context.Context, id int64, status job.Status) error {
	if err := r.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.runs[id]
	now := time.Now()
	run.EndedAt = &now
	r.runs[id] = run
	return nil
}

func hasStatus(statuses []job.Status, s job.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func TestRunner_Start(t *testing.T) {
	t.Run("FirstRunIsInProgress", func(t *testing.T) {
		repo := newMemRepo()
		r := job.NewRunner(repo, log.NewNoop())

		h, err := r.Start(ctx, job.ClassIndexSuggestions, []byte(`{}`), false)
		require.NoError(t, err)

		run, err := repo.GetByID(ctx, h.ID)
		require.NoError(t, err)
		assert.Equal(t, job.StatusInProgress, run.Status)
	})

	t.Run("ConcurrentRunIsRejected", func(t *testing.T) {
		repo := newMemRepo()
		r := job.NewRunner(repo, log.NewNoop())

		_, err := r.Start(ctx, job.ClassIndexSuggestions, nil, false)
		require.NoError(t, err)

		h, err := r.Start(ctx, job.ClassIndexSuggestions, nil, false)
		assert.ErrorIs(t, err, job.ErrAlreadyRunning)
		assert.Nil(t, h)

		rejected, err := repo.GetByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, job.StatusError, rejected.Status)
		assert.NotNil(t, rejected.EndedAt)
	})

	t.Run("OtherClassDoesNotConflict", func(t *testing.T) {
		repo := newMemRepo()
		r := job.NewRunner(repo, log.NewNoop())

		_, err := r.Start(ctx, job.ClassIndexResources, nil, false)
		require.NoError(t, err)
		_, err = r.Start(ctx, job.ClassIndexSuggestions, nil, false)
		assert.NoError(t, err)
	})

	t.Run("ForcedRunProceeds", func(t *testing.T) {
		repo := newMemRepo()
		r := job.NewRunner(repo, log.NewNoop())

		_, err := r.Start(ctx, job.ClassIndexSuggestions, nil, false)
		require.NoError(t, err)
		h, err := r.Start(ctx, job.ClassIndexSuggestions, nil, true)
		require.NoError(t, err)
		assert.Equal(t, int64(2), h.ID)
	})

	t.Run("FinishedRunDoesNotConflict", func(t *testing.T) {
		repo := newMemRepo()
		r := job.NewRunner(repo, log.NewNoop())

		h, err := r.Start(ctx, job.ClassIndexSuggestions, nil, false)
		require.NoError(t, err)
		h.Finish(ctx, job.StatusCompleted)

		_, err = r.Start(ctx, job.ClassIndexSuggestions, nil, false)
		assert.NoError(t, err)
	})
}

func TestRunner_Stop(t *testing.T) {
	repo := newMemRepo()
	r := job.NewRunner(repo, log.NewNoop())

	h, err := r.Start(ctx, job.ClassIndexResources, nil, false)
	require.NoError(t, err)
	assert.False(t, h.StopRequested(ctx))

	require.NoError(t, r.Stop(ctx, h.ID))
	assert.True(t, h.StopRequested(ctx))

	h.Finish(ctx, job.StatusStopped)
	assert.ErrorIs(t, r.Stop(ctx, h.ID), job.ErrNotRunning)

	var nf job.NotFoundError
	assert.ErrorAs(t, r.Stop(ctx, 42), &nf)
}

func TestHandle_StopRequestedOnCancel(t *testing.T) {
	repo := newMemRepo()
	r := job.NewRunner(repo, log.NewNoop())

	h, err := r.Start(ctx, job.ClassIndexResources, nil, false)
	require.NoError(t, err)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.True(t, h.StopRequested(cctx))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, job.StatusCompleted, job.StatusFor(nil, false))
	assert.Equal(t, job.StatusStopped, job.StatusFor(nil, true))
	assert.Equal(t, job.StatusStopped, job.StatusFor(context.Canceled, false))
	assert.Equal(t, job.StatusError, job.StatusFor(job.ErrAlreadyRunning, false))
}
