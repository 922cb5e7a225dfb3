package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/review-crawler/internal/store"
)

// RunStore keeps the run ledger in-memory.
type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]store.Run
}

// NewRunStore creates an empty ledger.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[uuid.UUID]store.Run)}
}

// StartRun implements store.RunRepository.
func (s *RunStore) StartRun(_ context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Status = store.RunRunning
	s.runs[run.ID] = run
	return nil
}

// RecordPage implements store.RunRepository.
func (s *RunStore) RecordPage(_ context.Context, runID uuid.UUID, delta store.PageDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	if delta.Page > run.LastPage {
		run.LastPage = delta.Page
	}
	run.Added += delta.Added
	run.Total = delta.Total
	s.runs[runID] = run
	return nil
}

// CompleteRun implements store.RunRepository.
func (s *RunStore) CompleteRun(_ context.Context, runID uuid.UUID, done store.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	finished := done.FinishedAt
	run.FinishedAt = &finished
	run.Status = done.Status
	run.StopReason = done.StopReason
	run.ErrorMessage = done.ErrorMessage
	if done.Total > 0 {
		run.Total = done.Total
	}
	s.runs[runID] = run
	return nil
}

// GetRun implements store.RunRepository.
func (s *RunStore) GetRun(_ context.Context, runID uuid.UUID) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns implements store.RunRepository.
func (s *RunStore) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	s.mu.RLock()
	out := make([]store.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if status == nil || run.Status == *status {
			out = append(out, run)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if offset >= len(out) {
		return []store.Run{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
