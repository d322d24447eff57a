package pgq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/pkg/worker"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
)

var (
	jobColumns = []string{
		"id", "type", "run_at", "payload", "created_at",
		"updated_at", "attempts_done", "last_attempt_at", "last_error",
	}
	deadJobColumns = []string{
		"id", "type", "payload", "created_at",
		"updated_at", "attempts_done", "last_attempt_at", "last_error",
	}
)

type jobRow struct {
	ID            string         `db:"id"`
	Type          string         `db:"type"`
	RunAt         sql.NullTime   `db:"run_at"`
	Payload       []byte         `db:"payload"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	AttemptsDone  int            `db:"attempts_done"`
	LastAttemptAt sql.NullTime   `db:"last_attempt_at"`
	LastError     sql.NullString `db:"last_error"`
}

func (r jobRow) toJob() (worker.Job, error) {
	id, err := ulid.ParseStrict(r.ID)
	if err != nil {
		return worker.Job{}, fmt.Errorf("parse job id %q: %w", r.ID, err)
	}

	return worker.Job{
		ID: id,
		JobSpec: worker.JobSpec{
			Type:    r.Type,
			Payload: r.Payload,
			RunAt:   r.RunAt.Time.UTC(),
		},
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		AttemptsDone:  r.AttemptsDone,
		LastAttemptAt: r.LastAttemptAt.Time.UTC(),
		LastError:     r.LastError.String,
	}, nil
}

func (p *Processor) withTx(ctx context.Context, fn func(*sqlx.Tx) error) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("run with tx: %w", err)
	}
	return tx.Commit()
}

// pickupJob locks the oldest ready job of the types, skipping the ones
// locked by other pollers.
func pickupJob(ctx context.Context, tx *sqlx.Tx, types []string) (worker.Job, error) {
	stmt, args, err := sq.Select(jobColumns...).
		From(jobsTable).
		Where(sq.Eq{"type": types}).
		Where(sq.Expr("run_at <= current_timestamp")).
		OrderBy("id ASC").
		Limit(1).
		Suffix("FOR UPDATE SKIP LOCKED").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return worker.Job{}, fmt.Errorf("pickup job: build query: %w", err)
	}

	var row jobRow
	if err := tx.GetContext(ctx, &row, stmt, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.Job{}, fmt.Errorf("pickup job: %w", worker.ErrNoJob)
		}
		return worker.Job{}, fmt.Errorf("pickup job: %w", err)
	}

	job, err := row.toJob()
	if err != nil {
		return worker.Job{}, fmt.Errorf("pickup job: %w", err)
	}
	return job, nil
}

func clearJob(ctx context.Context, tx *sqlx.Tx, id string) error {
	stmt, args, err := sq.Delete(jobsTable).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("clear job: build query: %w", err)
	}

	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("clear job: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("clear job: %w", err)
	}
	return nil
}

func markJobDead(ctx context.Context, tx *sqlx.Tx, job worker.Job) error {
	stmt, args, err := sq.Insert(deadJobsTable).
		Columns(deadJobColumns...).
		Values(
			job.ID.String(), job.Type, job.Payload, job.CreatedAt.UTC(),
			job.UpdatedAt.UTC(), job.AttemptsDone, job.LastAttemptAt.UTC(), job.LastError,
		).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("mark job as dead: build query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("mark job as dead: %w", err)
	}
	if err := clearJob(ctx, tx, job.ID.String()); err != nil {
		return fmt.Errorf("mark job as dead: %w", err)
	}
	return nil
}

func setupRetry(ctx context.Context, tx *sqlx.Tx, job worker.Job) error {
	stmt, args, err := sq.Update(jobsTable).
		Where(sq.Eq{"id": job.ID.String()}).
		Set("run_at", job.RunAt.UTC()).
		Set("updated_at", job.UpdatedAt.UTC()).
		Set("attempts_done", job.AttemptsDone).
		Set("last_error", job.LastError).
		Set("last_attempt_at", job.LastAttemptAt.UTC()).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("setup job retry: build query: %w", err)
	}

	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("setup job retry: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("setup job retry: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("rows affected: %d", n)
	}
	return nil
}
