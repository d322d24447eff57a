package pgq

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/pkg/worker"
	"github.com/jmoiron/sqlx"
)

// DeadJobs lists the dead jobs, oldest first.
func (p *Processor) DeadJobs(ctx context.Context, size, offset int) ([]worker.Job, error) {
	stmt, args, err := sq.Select(deadJobColumns...).
		From(deadJobsTable).
		OrderBy("id ASC").
		Limit(uint64(size)).
		Offset(uint64(offset)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("list dead jobs: build query: %w", err)
	}

	var rows []jobRow
	if err := p.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("list dead jobs: %w", err)
	}

	jobs := make([]worker.Job, 0, len(rows))
	for _, r := range rows {
		job, err := r.toJob()
		if err != nil {
			return nil, fmt.Errorf("list dead jobs: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Resurrect moves the dead jobs back to the queue, ready at once and with
// their attempts reset.
func (p *Processor) Resurrect(ctx context.Context, jobIDs []string) error {
	err := p.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, args, err := sq.Insert(jobsTable).
			Columns("id", "type", "run_at", "payload", "created_at", "updated_at").
			Select(sq.Select("id", "type", "current_timestamp", "payload", "created_at", "current_timestamp").
				From(deadJobsTable).
				Where(sq.Eq{"id": jobIDs})).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("build query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return err
		}
		return deleteDeadJobs(ctx, tx, jobIDs)
	})
	if err != nil {
		return fmt.Errorf("resurrect dead jobs: %w", err)
	}
	return nil
}

func (p *Processor) ClearDeadJobs(ctx context.Context, jobIDs []string) error {
	if err := deleteDeadJobs(ctx, p.db, jobIDs); err != nil {
		return fmt.Errorf("clear dead jobs: %w", err)
	}
	return nil
}

func deleteDeadJobs(ctx context.Context, exec sqlx.ExecerContext, jobIDs []string) error {
	stmt, args, err := sq.Delete(deadJobsTable).
		Where(sq.Eq{"id": jobIDs}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	_, err = exec.ExecContext(ctx, stmt, args...)
	return err
}
