// Package store declares interfaces for persisting collection runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the collection_runs status column.
type RunStatus string

// Run statuses persisted in collection_runs.status.
const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// Run models one collection session for API responses.
type Run struct {
	// ID is the session run ID.
	ID uuid.UUID
	// Source is the host label of the collected source.
	Source string
	// SnapshotID is the snapshot the session wrote to.
	SnapshotID string
	StartedAt  time.Time
	// FinishedAt is nil until the run completes.
	FinishedAt *time.Time
	Status     RunStatus
	// StopReason is set once the run finished normally.
	StopReason *string
	// LastPage is the highest page processed so far.
	LastPage int
	// Added counts records accepted during this run.
	Added int
	// Total is the snapshot length after the latest page.
	Total        int
	ErrorMessage *string
}

// PageDelta is the per-page update applied to a running run.
type PageDelta struct {
	Page  int
	Added int
	Total int
	At    time.Time
}

// Completion describes how a run ended.
type Completion struct {
	FinishedAt   time.Time
	Status       RunStatus
	StopReason   *string
	Total        int
	ErrorMessage *string
}

// RunRepository persists the run ledger.
type RunRepository interface {
	// StartRun inserts (or idempotently refreshes) a running run.
	StartRun(ctx context.Context, run Run) error
	// RecordPage applies a page delta.
	RecordPage(ctx context.Context, runID uuid.UUID, delta PageDelta) error
	// CompleteRun marks the run finished or failed.
	CompleteRun(ctx context.Context, runID uuid.UUID, done Completion) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	// ListRuns returns runs, newest first, filtered by optional status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
}
