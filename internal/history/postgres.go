// internal/history/postgres.go

// Package history is an optional Postgres sink recording one row per plan
// run. It exists for fleets that run many plans and want queryable history
// beyond the per-run artifact directories; when no DSN is configured the
// engine simply never constructs it.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// PgxIface is the slice of the pgx pool the recorder needs, kept narrow so
// tests can substitute a mock connection.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS plan_runs (
	run_id               TEXT PRIMARY KEY,
	instruction          TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'running',
	checkpoints_executed INT  NOT NULL DEFAULT 0,
	started_at           TIMESTAMPTZ NOT NULL,
	finished_at          TIMESTAMPTZ
);`

// Recorder writes run rows to Postgres.
type Recorder struct {
	logger *zap.Logger
	db     PgxIface
}

// Connect opens a pgx pool for the DSN and returns a recorder plus the pool's
// close function.
func Connect(ctx context.Context, logger *zap.Logger, dsn string) (*Recorder, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to reach history database: %w", err)
	}
	return NewRecorder(logger, pool), pool.Close, nil
}

// NewRecorder wraps an existing connection.
func NewRecorder(logger *zap.Logger, db PgxIface) *Recorder {
	return &Recorder{logger: logger.Named("history"), db: db}
}

// EnsureSchema creates the run table if it does not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return nil
}

// RecordStart inserts the run row before execution begins.
func (r *Recorder) RecordStart(ctx context.Context, runID, instruction string) error {
	const q = `INSERT INTO plan_runs (run_id, instruction, started_at) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, q, runID, instruction, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	r.logger.Debug("Run start recorded", zap.String("run_id", runID))
	return nil
}

// RecordResult finalizes the run row once execution ends.
func (r *Recorder) RecordResult(ctx context.Context, res *schemas.RunResult) error {
	const q = `UPDATE plan_runs SET status = $2, checkpoints_executed = $3, finished_at = $4 WHERE run_id = $1`
	tag, err := r.db.Exec(ctx, q, res.RunID, string(res.Status), res.CheckpointsExecuted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record run result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no history row for run %q", res.RunID)
	}
	return nil
}
