// Package ledger records one row per pipeline invocation in Postgres.
// It is an optional audit surface: failures are logged by callers and
// never affect the invocation outcome.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cortexai/ingest/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS ingestion_runs (
	invocation_id TEXT PRIMARY KEY,
	bucket        TEXT NOT NULL,
	object        TEXT NOT NULL,
	status        TEXT NOT NULL,
	error_kind    TEXT NOT NULL DEFAULT '',
	table_ref     TEXT NOT NULL DEFAULT '',
	cleaned_ref   TEXT NOT NULL DEFAULT '',
	rows_loaded   BIGINT NOT NULL DEFAULT 0,
	cleaned       BOOLEAN NOT NULL DEFAULT FALSE,
	message       TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
)`

// Ledger is a Postgres-backed run history.
type Ledger struct {
	pool *pgxpool.Pool
}

// New opens the pool and ensures the runs table exists.
func New(ctx context.Context, dsn string) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}
	return &Ledger{pool: pool}, nil
}

func (l *Ledger) Close() {
	l.pool.Close()
}

// Record persists the terminal summary of one invocation. Re-delivered
// events overwrite their previous row, keeping the ledger idempotent
// under at-least-once triggering.
func (l *Ledger) Record(ctx context.Context, event models.TriggerEvent, res *models.RunResult, startedAt time.Time) error {
	const q = `
INSERT INTO ingestion_runs
	(invocation_id, bucket, object, status, error_kind, table_ref, cleaned_ref,
	 rows_loaded, cleaned, message, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (invocation_id) DO UPDATE SET
	status = EXCLUDED.status,
	error_kind = EXCLUDED.error_kind,
	table_ref = EXCLUDED.table_ref,
	cleaned_ref = EXCLUDED.cleaned_ref,
	rows_loaded = EXCLUDED.rows_loaded,
	cleaned = EXCLUDED.cleaned,
	message = EXCLUDED.message,
	finished_at = EXCLUDED.finished_at`

	_, err := l.pool.Exec(ctx, q,
		res.InvocationID,
		event.Bucket,
		event.Name,
		string(res.Status),
		string(res.ErrorKind),
		res.TableRef,
		res.CleanedRef,
		res.RowsLoaded,
		res.Cleaned,
		res.Message,
		startedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
