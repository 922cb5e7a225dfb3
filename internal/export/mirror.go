package export

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/review"
)

// MirrorStore wraps a SnapshotStore and rewrites the export files after every
// successful Save. Export failures are logged and never fail the Save.
type MirrorStore struct {
	inner  review.SnapshotStore
	writer *Writer
	logger *zap.Logger
}

// NewMirrorStore decorates inner with writer.
func NewMirrorStore(inner review.SnapshotStore, writer *Writer, logger *zap.Logger) *MirrorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MirrorStore{inner: inner, writer: writer, logger: logger}
}

// Load delegates to the wrapped store.
func (m *MirrorStore) Load(ctx context.Context, id string) ([]review.Record, error) {
	records, err := m.inner.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mirror load: %w", err)
	}
	return records, nil
}

// Save persists through the wrapped store, then refreshes the exports.
func (m *MirrorStore) Save(ctx context.Context, id string, records []review.Record) error {
	if err := m.inner.Save(ctx, id, records); err != nil {
		return fmt.Errorf("mirror save: %w", err)
	}
	if _, err := m.writer.Write(id, records); err != nil {
		m.logger.Warn("export after save failed", zap.String("snapshot_id", id), zap.Error(err))
	}
	return nil
}

// Latest delegates when the wrapped store can list snapshots.
func (m *MirrorStore) Latest(ctx context.Context, prefix string) (string, bool, error) {
	finder, ok := m.inner.(review.LatestFinder)
	if !ok {
		return "", false, nil
	}
	id, found, err := finder.Latest(ctx, prefix)
	if err != nil {
		return "", false, fmt.Errorf("mirror latest: %w", err)
	}
	return id, found, nil
}
