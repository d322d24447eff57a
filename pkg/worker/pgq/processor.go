package pgq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/goto/sift/pkg/worker"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib" // register pgx driver
	"github.com/jmoiron/sqlx"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx" // register instrumented DB driver
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

const (
	pgDriverName  = "nrpgx"
	instanceName  = "pgq"
	jobsTable     = "jobs_queue"
	deadJobsTable = "dead_jobs"
)

// Processor is a worker.JobProcessor keeping its queue in two postgres
// tables: the ready and retried jobs, and the dead ones.
type Processor struct {
	db *sqlx.DB
}

func NewProcessor(ctx context.Context, cfg Config) (*Processor, error) {
	driverName, err := otelsql.Register(
		pgDriverName,
		otelsql.TraceQueryWithoutArgs(),
		otelsql.TraceRowsClose(),
		otelsql.TraceRowsAffected(),
		otelsql.WithSystem(semconv.DBSystemPostgreSQL),
		otelsql.WithInstanceName(instanceName),
	)
	if err != nil {
		return nil, fmt.Errorf("new pgq processor: %w", err)
	}

	sqlDB, err := sql.Open(driverName, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("new pgq processor: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("new pgq processor: %w", err)
	}

	if err := otelsql.RecordStats(
		sqlDB,
		otelsql.WithSystem(semconv.DBSystemPostgreSQL),
		otelsql.WithInstanceName(instanceName),
	); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("new pgq processor: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.MaxIdleConns != 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if maxLifetime := cfg.ConnMaxLifetimeWithJitter(); maxLifetime != 0 {
		sqlDB.SetConnMaxLifetime(maxLifetime)
	}
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return NewProcessorWithDB(sqlDB), nil
}

// NewProcessorWithDB runs the queue over an opened database.
func NewProcessorWithDB(db *sql.DB) *Processor {
	return &Processor{db: sqlx.NewDb(db, "pgx")}
}

func (p *Processor) Enqueue(ctx context.Context, jobs ...worker.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	insert := sq.Insert(jobsTable).
		Columns("id", "type", "run_at", "payload", "created_at", "updated_at")
	for _, j := range jobs {
		insert = insert.Values(
			j.ID.String(), j.Type, j.RunAt.UTC(), j.Payload, j.CreatedAt.UTC(), j.UpdatedAt.UTC(),
		)
	}

	stmt, args, err := insert.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("enqueue jobs: build query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, stmt, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("enqueue jobs: %w: %s", worker.ErrJobExists, err.Error())
		}
		return fmt.Errorf("enqueue jobs: %w", err)
	}
	return nil
}

// Process runs fn inside the transaction holding the row lock of the job so
// that no other poller picks it until the outcome is stored.
func (p *Processor) Process(ctx context.Context, types []string, fn worker.JobExecutorFunc) error {
	err := p.withTx(ctx, func(tx *sqlx.Tx) error {
		job, err := pickupJob(ctx, tx, types)
		if err != nil {
			return err
		}

		result := fn(ctx, job)
		switch result.Status {
		case worker.StatusDone:
			return clearJob(ctx, tx, result.ID.String())

		case worker.StatusDead:
			return markJobDead(ctx, tx, result)

		default:
			return setupRetry(ctx, tx, result)
		}
	})
	if err != nil {
		if errors.Is(err, worker.ErrNoJob) {
			return worker.ErrNoJob
		}
		return fmt.Errorf("pgq process: %w", err)
	}
	return nil
}

func (p *Processor) Stats(ctx context.Context) ([]worker.JobTypeStats, error) {
	const stmt = `SELECT COALESCE(actv.type, dead.type) AS type,
	COALESCE(actv.cnt, 0) AS active,
	COALESCE(dead.cnt, 0) AS dead
FROM (SELECT type, count(id) AS cnt FROM jobs_queue GROUP BY type) AS actv
FULL JOIN (SELECT type, count(id) AS cnt FROM dead_jobs GROUP BY type) AS dead
	ON actv.type = dead.type
ORDER BY 1`

	var stats []worker.JobTypeStats
	if err := p.db.SelectContext(ctx, &stats, stmt); err != nil {
		return nil, fmt.Errorf("pgq stats: %w", err)
	}
	return stats, nil
}

func (p *Processor) Close() error { return p.db.Close() }
