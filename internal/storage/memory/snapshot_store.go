// Package memory keeps snapshots in-memory for tests and dry runs.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage"
)

// SnapshotStore stores snapshots in a map.
type SnapshotStore struct {
	mu    sync.RWMutex
	data  map[string][]review.Record
	order map[string]uint64
	seq   uint64
}

// NewSnapshotStore creates an empty in-memory store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data:  make(map[string][]review.Record),
		order: make(map[string]uint64),
	}
}

// Load returns a copy of snapshot id, or an empty sequence.
func (s *SnapshotStore) Load(_ context.Context, id string) ([]review.Record, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]review.Record{}, s.data[id]...), nil
}

// Save replaces snapshot id with a copy of records.
func (s *SnapshotStore) Save(_ context.Context, id string, records []review.Record) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.data[id] = append([]review.Record{}, records...)
	s.order[id] = s.seq
	return nil
}

// Latest returns the most recently saved id with the given prefix.
func (s *SnapshotStore) Latest(_ context.Context, prefix string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best    string
		bestSeq uint64
	)
	for id, seq := range s.order {
		if strings.HasPrefix(id, prefix) && seq > bestSeq {
			best, bestSeq = id, seq
		}
	}
	return best, best != "", nil
}
