package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/progress"
	"github.com/JakeFAU/review-crawler/internal/store"
)

// StoreSink persists session milestones via a store.RunRepository. Page
// deltas within one batch are collapsed per run to reduce write amplification.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies the batch in order. Pending page deltas for a run are
// flushed before that run's completion is written. A failed write for one run
// does not stop the rest of the batch; all failures are joined.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	pending := make(map[uuid.UUID]*store.PageDelta)
	order := make([]uuid.UUID, 0, 1)
	var errs []error

	flush := func(runID uuid.UUID) error {
		delta, ok := pending[runID]
		if !ok {
			return nil
		}
		delete(pending, runID)
		if err := s.repo.RecordPage(ctx, runID, *delta); err != nil {
			return fmt.Errorf("record page: %w", err)
		}
		return nil
	}

	for _, evt := range batch {
		runID := evt.RunUUID()
		switch evt.Stage {
		case progress.StageSessionStart:
			if err := s.repo.StartRun(ctx, runFrom(evt)); err != nil {
				errs = append(errs, fmt.Errorf("start run: %w", err))
			}
		case progress.StagePageDone:
			delta := pending[runID]
			if delta == nil {
				delta = &store.PageDelta{}
				pending[runID] = delta
				order = append(order, runID)
			}
			if evt.Page > delta.Page {
				delta.Page = evt.Page
			}
			delta.Added += evt.Added
			delta.Total = evt.Total
			delta.At = evt.TS
		case progress.StageSessionDone, progress.StageSessionError:
			if err := flush(runID); err != nil {
				errs = append(errs, err)
			}
			if err := s.complete(ctx, evt); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, runID := range order {
		if err := flush(runID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// complete writes the run's completion. A run the repository has never seen
// is started from the terminal event first.
func (s *StoreSink) complete(ctx context.Context, evt progress.Event) error {
	runID := evt.RunUUID()
	err := s.repo.CompleteRun(ctx, runID, completion(evt))
	if !errors.Is(err, store.ErrNotFound) {
		if err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
		return nil
	}
	s.logger.Warn("completing run that was never started", zap.String("run_id", runID.String()))
	if err := s.repo.StartRun(ctx, runFrom(evt)); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	if err := s.repo.CompleteRun(ctx, runID, completion(evt)); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

func runFrom(evt progress.Event) store.Run {
	return store.Run{
		ID:         evt.RunUUID(),
		Source:     evt.Source,
		SnapshotID: evt.SnapshotID,
		StartedAt:  evt.TS,
		Total:      evt.Total,
	}
}

func completion(evt progress.Event) store.Completion {
	done := store.Completion{
		FinishedAt: evt.TS,
		Status:     store.RunFinished,
		Total:      evt.Total,
	}
	if evt.Stage == progress.StageSessionError {
		done.Status = store.RunFailed
		if evt.Note != "" {
			note := evt.Note
			done.ErrorMessage = &note
		}
		return done
	}
	reason := evt.StopReason
	done.StopReason = &reason
	return done
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

var _ progress.Sink = (*StoreSink)(nil)
