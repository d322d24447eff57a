package pgq_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goto/salt/log"
	"github.com/goto/sift/internal/testutils"
	"github.com/goto/sift/pkg/worker"
	"github.com/goto/sift/pkg/worker/pgq"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/suite"
)

type ProcessorTestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *sql.DB
	pgPort int
}

func TestProcessor(t *testing.T) {
	suite.Run(t, &ProcessorTestSuite{})
}

func (s *ProcessorTestSuite) SetupSuite() {
	logger := log.NewLogrus()
	port, err := testutils.RunTestPG(s.T(), logger)
	s.Require().NoError(err)
	s.pgPort = port

	db, err := sql.Open("pgx", s.testDBConfig().ConnectionString())
	s.Require().NoError(err)

	s.T().Cleanup(func() {
		s.Require().NoError(db.Close())
	})

	s.ctx = context.Background()
	s.db = db
}

func (s *ProcessorTestSuite) TestNewProcessor() {
	s.Run("InvalidConfig", func() {
		cfg := s.testDBConfig()
		cfg.Port++

		p, err := pgq.NewProcessor(s.ctx, cfg)
		s.ErrorContains(err, "new pgq processor: failed to connect")
		s.Nil(p)
	})

	s.Run("Success", func() {
		p, err := pgq.NewProcessor(s.ctx, s.testDBConfig())
		s.NoError(err)
		s.NotNil(p)
		s.NoError(p.Close())
	})
}

func (s *ProcessorTestSuite) TestEnqueue() {
	jobs := s.newJobs(3)
	p := pgq.NewProcessorWithDB(s.db)

	cases := []struct {
		name        string
		jobs        []worker.Job
		expected    []worker.Job
		expectedErr error
	}{
		{
			name:     "SingleJob",
			jobs:     []worker.Job{jobs[0]},
			expected: []worker.Job{jobs[0]},
		},
		{
			name:     "MultipleJobs",
			jobs:     jobs,
			expected: jobs,
		},
		{
			name:        "DuplicateJobs",
			jobs:        []worker.Job{jobs[0], jobs[1], jobs[0]},
			expectedErr: worker.ErrJobExists,
		},
		{
			name: "NoJobs",
		},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.Require().NoError(testutils.RunMigrations(s.T(), s.db))

			if err := p.Enqueue(s.ctx, tc.jobs...); tc.expectedErr != nil {
				s.ErrorIs(err, tc.expectedErr)
			} else {
				s.NoError(err)
			}

			s.Equal(tc.expected, s.queuedJobs("ORDER BY id"))
		})
	}
}

func (s *ProcessorTestSuite) TestProcess() {
	frozenTime := time.Unix(1654082526, 0).UTC()

	job, err := worker.NewJob(worker.JobSpec{Type: "index-suggestions", Payload: []byte(`{"search_suggester_id":1}`)})
	s.Require().NoError(err)

	job.RunAt = frozenTime
	job.CreatedAt = frozenTime
	job.UpdatedAt = frozenTime

	p := pgq.NewProcessorWithDB(s.db)
	unexpected := func(ctx context.Context, job worker.Job) worker.Job {
		s.Fail("unexpected job invocation")
		return job
	}

	s.Run("NoJobs", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))

		err := p.Process(s.ctx, []string{"index-suggestions"}, unexpected)
		s.ErrorIs(err, worker.ErrNoJob)
	})

	s.Run("ProcessOnlyGivenTypes", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))
		s.Require().NoError(p.Enqueue(s.ctx, job))

		err := p.Process(s.ctx, []string{"index-resources"}, unexpected)
		s.ErrorIs(err, worker.ErrNoJob)
	})

	s.Run("ProcessOnlyReadyJobs", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))

		job := job
		job.RunAt = time.Now().AddDate(0, 0, 1)
		s.Require().NoError(p.Enqueue(s.ctx, job))

		err := p.Process(s.ctx, []string{"index-suggestions"}, unexpected)
		s.ErrorIs(err, worker.ErrNoJob)
	})

	s.Run("JobProcessedSuccessfully", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))
		s.Require().NoError(p.Enqueue(s.ctx, job))

		err := p.Process(s.ctx, []string{"index-suggestions"}, func(ctx context.Context, job worker.Job) worker.Job {
			job.AttemptsDone++
			job.Status = worker.StatusDone
			job.LastAttemptAt = frozenTime.Add(time.Second * 5)
			return job
		})
		s.NoError(err)

		s.Zero(s.count("jobs_queue", job.ID))
		s.Zero(s.count("dead_jobs", job.ID))
	})

	s.Run("DeadJob", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))
		s.Require().NoError(p.Enqueue(s.ctx, job))

		var deadJob worker.Job
		err := p.Process(s.ctx, []string{"index-suggestions"}, func(ctx context.Context, job worker.Job) worker.Job {
			job.AttemptsDone++
			job.Status = worker.StatusDead
			job.LastAttemptAt = frozenTime.Add(time.Second * 5)
			job.LastError = "suggester settings are invalid"
			deadJob = job
			return job
		})
		s.NoError(err)
		s.Zero(s.count("jobs_queue", job.ID))

		dead, err := p.DeadJobs(s.ctx, 10, 0)
		s.Require().NoError(err)
		s.Require().Len(dead, 1)

		deadJob.RunAt = time.Time{}
		deadJob.Status = worker.StatusUnknown
		s.Equal(deadJob, dead[0])
	})

	s.Run("JobRetry", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))
		s.Require().NoError(p.Enqueue(s.ctx, job))

		var retryJob worker.Job
		err := p.Process(s.ctx, []string{"index-suggestions"}, func(ctx context.Context, job worker.Job) worker.Job {
			job.AttemptsDone++
			job.LastAttemptAt = frozenTime.Add(time.Second * 5)
			job.RunAt = frozenTime.Add(time.Second * 10)
			job.LastError = "connection reset"
			retryJob = job
			return job
		})
		s.NoError(err)

		s.Equal([]worker.Job{retryJob}, s.queuedJobs(""))
		s.Zero(s.count("dead_jobs", job.ID))
	})

	s.Run("JobLocking", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))
		s.Require().NoError(p.Enqueue(s.ctx, job))

		var jobInvoked bool
		err := p.Process(s.ctx, []string{"index-suggestions"}, func(ctx context.Context, job worker.Job) worker.Job {
			jobInvoked = true
			err := p.Process(s.ctx, []string{"index-suggestions"}, unexpected)
			s.ErrorIs(err, worker.ErrNoJob)
			return job
		})
		s.NoError(err)
		s.True(jobInvoked)
	})

	s.Run("Rollback", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))
		s.Require().NoError(p.Enqueue(s.ctx, job))

		err := p.Process(s.ctx, []string{"index-suggestions"}, func(ctx context.Context, job worker.Job) worker.Job {
			panic("die")
		})
		s.EqualError(err, "pgq process: panic: die")
		s.Equal(1, s.count("jobs_queue", job.ID))
	})

	s.Run("ClearJobFailure", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))
		s.Require().NoError(p.Enqueue(s.ctx, job))

		err := p.Process(s.ctx, []string{"index-suggestions"}, func(ctx context.Context, job worker.Job) worker.Job {
			job.ID = ulid.Make()
			job.AttemptsDone++
			job.Status = worker.StatusDone
			return job
		})
		s.EqualError(err, "pgq process: run with tx: clear job: rows affected: 0")
	})

	s.Run("DuplicateDeadJob", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))

		kill := func(ctx context.Context, job worker.Job) worker.Job {
			job.AttemptsDone++
			job.Status = worker.StatusDead
			job.LastAttemptAt = frozenTime.Add(time.Second * 5)
			job.LastError = "suggester settings are invalid"
			return job
		}
		s.Require().NoError(p.Enqueue(s.ctx, job))
		s.Require().NoError(p.Process(s.ctx, []string{"index-suggestions"}, kill))

		s.Require().NoError(p.Enqueue(s.ctx, job))
		err := p.Process(s.ctx, []string{"index-suggestions"}, kill)
		s.ErrorContains(err, `mark job as dead: ERROR: duplicate key value violates unique constraint "dead_jobs_pkey"`)
	})

	s.Run("UpdateJobFailure", func() {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))
		s.Require().NoError(p.Enqueue(s.ctx, job))

		err := p.Process(s.ctx, []string{"index-suggestions"}, func(ctx context.Context, job worker.Job) worker.Job {
			job.ID = ulid.Make()
			job.AttemptsDone++
			job.RunAt = frozenTime.Add(time.Second * 10)
			return job
		})
		s.EqualError(err, "pgq process: run with tx: setup job retry: rows affected: 0")
	})
}

func (s *ProcessorTestSuite) TestDeadJobs() {
	p := pgq.NewProcessorWithDB(s.db)
	kill := func(ctx context.Context, job worker.Job) worker.Job {
		job.AttemptsDone++
		job.Status = worker.StatusDead
		job.LastAttemptAt = time.Now()
		job.LastError = "dead"
		return job
	}

	setup := func() []worker.Job {
		s.Require().NoError(testutils.RunMigrations(s.T(), s.db))

		jobs := s.newJobs(3)
		s.Require().NoError(p.Enqueue(s.ctx, jobs...))
		for range jobs {
			s.Require().NoError(p.Process(s.ctx, []string{"index-resources"}, kill))
		}
		return jobs
	}

	s.Run("ListPages", func() {
		jobs := setup()

		page, err := p.DeadJobs(s.ctx, 2, 1)
		s.Require().NoError(err)
		s.Require().Len(page, 2)
		s.Equal(jobs[1].ID, page[0].ID)
		s.Equal(jobs[2].ID, page[1].ID)
		s.Equal("dead", page[0].LastError)
		s.Equal(1, page[0].AttemptsDone)
	})

	s.Run("Resurrect", func() {
		jobs := setup()

		err := p.Resurrect(s.ctx, []string{jobs[0].ID.String(), jobs[2].ID.String()})
		s.Require().NoError(err)

		s.Equal(1, s.count("jobs_queue", jobs[0].ID))
		s.Equal(1, s.count("jobs_queue", jobs[2].ID))
		s.Zero(s.count("dead_jobs", jobs[0].ID))
		s.Equal(1, s.count("dead_jobs", jobs[1].ID))

		var picked worker.Job
		err = p.Process(s.ctx, []string{"index-resources"}, func(ctx context.Context, job worker.Job) worker.Job {
			picked = job
			job.Status = worker.StatusDone
			return job
		})
		s.Require().NoError(err)
		s.Equal(jobs[0].ID, picked.ID)
		s.Zero(picked.AttemptsDone)
		s.Equal(jobs[0].Payload, picked.Payload)
	})

	s.Run("Clear", func() {
		jobs := setup()

		s.Require().NoError(p.ClearDeadJobs(s.ctx, []string{jobs[1].ID.String()}))

		dead, err := p.DeadJobs(s.ctx, 10, 0)
		s.Require().NoError(err)
		s.Len(dead, 2)
		s.Zero(s.count("dead_jobs", jobs[1].ID))
	})

	s.Run("Stats", func() {
		setup()
		jobs := s.newJobs(2)
		jobs[0].Type = "index-suggestions"
		s.Require().NoError(p.Enqueue(s.ctx, jobs...))

		stats, err := p.Stats(s.ctx)
		s.Require().NoError(err)
		s.Equal([]worker.JobTypeStats{
			{Type: "index-resources", Active: 1, Dead: 3},
			{Type: "index-suggestions", Active: 1, Dead: 0},
		}, stats)
	})
}

func (s *ProcessorTestSuite) newJobs(n int) []worker.Job {
	s.T().Helper()

	var jobs []worker.Job
	for i := 0; i < n; i++ {
		job, err := worker.NewJob(worker.JobSpec{
			Type:    "index-resources",
			Payload: []byte(`{"search_engine_id":1}`),
		})
		s.Require().NoError(err)

		job.RunAt = job.RunAt.UTC().Truncate(time.Second)
		job.CreatedAt = job.CreatedAt.UTC().Truncate(time.Second)
		job.UpdatedAt = job.UpdatedAt.UTC().Truncate(time.Second)
		jobs = append(jobs, job)
	}
	return jobs
}

func (s *ProcessorTestSuite) queuedJobs(suffix string) []worker.Job {
	s.T().Helper()

	rows, err := s.db.Query("SELECT id, type, run_at, payload, created_at, " +
		"updated_at, attempts_done, last_attempt_at, last_error " +
		"FROM jobs_queue " + suffix)
	s.Require().NoError(err)
	defer rows.Close()

	var jobs []worker.Job
	for rows.Next() {
		var (
			job           worker.Job
			id            string
			lastErr       sql.NullString
			lastAttemptAt sql.NullTime
		)
		s.Require().NoError(rows.Scan(
			&id, &job.Type, &job.RunAt, &job.Payload, &job.CreatedAt,
			&job.UpdatedAt, &job.AttemptsDone, &lastAttemptAt, &lastErr,
		))

		uid, err := ulid.ParseStrict(id)
		s.Require().NoError(err)

		job.ID = uid
		job.RunAt = job.RunAt.UTC()
		job.CreatedAt = job.CreatedAt.UTC()
		job.UpdatedAt = job.UpdatedAt.UTC()
		job.LastAttemptAt = lastAttemptAt.Time.UTC()
		job.LastError = lastErr.String
		jobs = append(jobs, job)
	}
	s.Require().NoError(rows.Err())
	return jobs
}

func (s *ProcessorTestSuite) count(table string, id ulid.ULID) int {
	s.T().Helper()

	var cnt int
	err := s.db.QueryRow("SELECT count(*) FROM "+table+" WHERE id = $1", id.String()).Scan(&cnt)
	s.Require().NoError(err)
	return cnt
}

func (s *ProcessorTestSuite) testDBConfig() pgq.Config {
	s.T().Helper()

	return pgq.Config{
		Host:     testutils.PGHost,
		Port:     s.pgPort,
		Name:     testutils.PGName,
		Username: testutils.PGUsername,
		Password: testutils.PGPassword,
	}
}
