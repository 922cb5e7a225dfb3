package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/review-crawler/internal/store"
)

const runColumns = `id, source, snapshot_id, started_at, finished_at, status, stop_reason, last_page, added, total, error_message`

// RunStore implements store.RunRepository using Postgres.
type RunStore struct {
	pool  dbPool
	table string
}

// NewRunStore wraps an existing pool.
func NewRunStore(pool dbPool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, DefaultRunsTable)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

// EnsureSchema creates the run ledger table when missing.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            UUID PRIMARY KEY,
	source        TEXT NOT NULL,
	snapshot_id   TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	stop_reason   TEXT,
	last_page     INTEGER NOT NULL DEFAULT 0,
	added         INTEGER NOT NULL DEFAULT 0,
	total         INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

// StartRun inserts or refreshes a running row.
func (s *RunStore) StartRun(ctx context.Context, run store.Run) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, source, snapshot_id, started_at, status, total)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status`, s.table)
	_, err := s.pool.Exec(ctx, query, run.ID, run.Source, run.SnapshotID, run.StartedAt, store.RunRunning, run.Total)
	if err != nil {
		return fmt.Errorf("upsert run start: %w", err)
	}
	return nil
}

// RecordPage applies a page delta to a running row.
func (s *RunStore) RecordPage(ctx context.Context, runID uuid.UUID, delta store.PageDelta) error {
	query := fmt.Sprintf(`
UPDATE %s
SET last_page = GREATEST(last_page, $1), added = added + $2, total = $3
WHERE id = $4`, s.table)
	tag, err := s.pool.Exec(ctx, query, delta.Page, delta.Added, delta.Total, runID)
	if err != nil {
		return fmt.Errorf("update run page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompleteRun marks a run finished or failed.
func (s *RunStore) CompleteRun(ctx context.Context, runID uuid.UUID, done store.Completion) error {
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, stop_reason = $3, total = GREATEST(total, $4), error_message = $5
WHERE id = $6`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		done.FinishedAt, done.Status, done.StopReason, done.Total, done.ErrorMessage, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetRun loads a single run.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, runColumns, s.table)
	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, filtered by optional status.
func (s *RunStore) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE ($1::text IS NULL OR status = $1)
ORDER BY started_at DESC
LIMIT $2 OFFSET $3`, runColumns, s.table)
	var statusArg *string
	if status != nil {
		v := string(*status)
		statusArg = &v
	}
	rows, err := s.pool.Query(ctx, query, statusArg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		id     string
		status string
	)
	err := row.Scan(
		&id,
		&run.Source,
		&run.SnapshotID,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.StopReason,
		&run.LastPage,
		&run.Added,
		&run.Total,
		&run.ErrorMessage,
	)
	if err != nil {
		return store.Run{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return store.Run{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	run.ID = parsed
	run.Status = store.RunStatus(status)
	return run, nil
}
