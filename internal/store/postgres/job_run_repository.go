package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/core/job"
)

const jobRunTable = "job_runs"

// JobRunRepository records the runs of the batch jobs.
type JobRunRepository struct {
	client *Client
}

func NewJobRunRepository(c *Client) (*JobRunRepository, error) {
	if c == nil {
		return nil, errNilDBClient
	}
	return &JobRunRepository{client: c}, nil
}

func (r *JobRunRepository) Create(ctx context.Context, run *job.Run) (int64, error) {
	if run == nil || run.Class == "" {
		return 0, fmt.Errorf("create job run: class is required")
	}
	if run.Status == "" {
		run.Status = job.StatusStarting
	}

	query, args, err := buildSQL(
		sq.Insert(jobRunTable).
			Columns("class", "status", "args").
			Values(run.Class, string(run.Status), string(run.Args)).
			Suffix("RETURNING id, started_at"),
	)
	if err != nil {
		return 0, fmt.Errorf("create job run: %w", err)
	}

	if err := r.client.db.QueryRowxContext(ctx, query, args...).Scan(&run.ID, &run.StartedAt); err != nil {
		return 0, fmt.Errorf("create job run: %w", checkPostgresError(err))
	}
	return run.ID, nil
}

func (r *JobRunRepository) GetByID(ctx context.Context, id int64) (job.Run, error) {
	query, args, err := buildSQL(
		r.selectRuns().Where(sq.Eq{"id": id}),
	)
	if err != nil {
		return job.Run{}, fmt.Errorf("get job run: %w", err)
	}

	var m jobRunModel
	if err := r.client.db.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return job.Run{}, job.NotFoundError{RunID: id}
		}
		return job.Run{}, fmt.Errorf("get job run: %w", err)
	}
	return m.toRun(), nil
}

func (r *JobRunRepository) List(ctx context.Context, flt job.Filter) ([]job.Run, error) {
	builder := r.selectRuns().OrderBy("id DESC")
	if flt.Class != "" {
		builder = builder.Where(sq.Eq{"class": flt.Class})
	}
	if len(flt.Statuses) > 0 {
		statuses := make([]string, len(flt.Statuses))
		for i, s := range flt.Statuses {
			statuses[i] = string(s)
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if flt.ExcludeID != 0 {
		builder = builder.Where(sq.NotEq{"id": flt.ExcludeID})
	}
	if flt.Size > 0 {
		builder = builder.Limit(uint64(flt.Size))
	}

	query, args, err := buildSQL(builder)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}

	var models []jobRunModel
	if err := r.client.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}

	runs := make([]job.Run, 0, len(models))
	for _, m := range models {
		runs = append(runs, m.toRun())
	}
	return runs, nil
}

func (r *JobRunRepository) UpdateStatus(ctx context.Context, id int64, status job.Status) error {
	return r.update(ctx, sq.Update(jobRunTable).
		Set("status", string(status)).
		Where(sq.Eq{"id": id}))
}

// Finish records a terminal status and the end time of the run.
func (r *JobRunRepository) Finish(ctx context.Context, id int64, status job.Status) error {
	return r.update(ctx, sq.Update(jobRunTable).
		Set("status", string(status)).
		Set("ended_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}))
}

func (r *JobRunRepository) update(ctx context.Context, builder sq.UpdateBuilder) error {
	query, args, err := buildSQL(builder)
	if err != nil {
		return fmt.Errorf("update job run: %w", err)
	}

	res, err := r.client.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job run: %w", checkPostgresError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job run: check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update job run: %w", sql.ErrNoRows)
	}
	return nil
}

func (r *JobRunRepository) selectRuns() sq.SelectBuilder {
	return sq.Select("id", "class", "status", "args", "started_at", "ended_at").From(jobRunTable)
}

type jobRunModel struct {
	ID        int64        `db:"id"`
	Class     string       `db:"class"`
	Status    string       `db:"status"`
	Args      string       `db:"args"`
	StartedAt sql.NullTime `db:"started_at"`
	EndedAt   sql.NullTime `db:"ended_at"`
}

func (m jobRunModel) toRun() job.Run {
	run := job.Run{
		ID:        m.ID,
		Class:     m.Class,
		Status:    job.Status(m.Status),
		StartedAt: m.StartedAt.Time,
	}
	if m.Args != "" {
		run.Args = []byte(m.Args)
	}
	if m.EndedAt.Valid {
		t := m.EndedAt.Time
		run.EndedAt = &t
	}
	return run
}
