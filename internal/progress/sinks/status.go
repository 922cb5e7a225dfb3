package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/review-crawler/internal/progress"
)

// SessionStatus is the latest known state of one collection session.
type SessionStatus struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	SnapshotID string    `json:"snapshot_id"`
	State      string    `json:"state"`
	Page       int       `json:"page"`
	Added      int       `json:"added"`
	Total      int       `json:"total"`
	StopReason string    `json:"stop_reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Session states reported by StatusSink.
const (
	StateRunning  = "running"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// StatusSink keeps the most recent session status in memory for the ops API.
type StatusSink struct {
	mu     sync.RWMutex
	latest *SessionStatus
}

// NewStatusSink constructs an empty StatusSink.
func NewStatusSink() *StatusSink {
	return &StatusSink{}
}

// Consume folds the batch into the latest session status.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		runID := evt.RunUUID().String()
		if evt.Stage == progress.StageSessionStart || s.latest == nil || s.latest.RunID != runID {
			s.latest = &SessionStatus{
				RunID:      runID,
				Source:     evt.Source,
				SnapshotID: evt.SnapshotID,
				State:      StateRunning,
				StartedAt:  evt.TS,
			}
		}
		st := s.latest
		st.UpdatedAt = evt.TS
		switch evt.Stage {
		case progress.StagePageDone:
			st.Page = evt.Page
			st.Added += evt.Added
			st.Total = evt.Total
		case progress.StageSessionDone:
			st.State = StateFinished
			st.StopReason = evt.StopReason
			st.Total = evt.Total
		case progress.StageSessionError:
			st.State = StateFailed
			st.Error = evt.Note
		}
	}
	return nil
}

// Latest returns a copy of the most recent session status.
func (s *StatusSink) Latest() (SessionStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return SessionStatus{}, false
	}
	return *s.latest, true
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
