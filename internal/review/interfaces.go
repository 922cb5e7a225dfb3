package review

import (
	"context"
	"time"
)

// PageSource fetches one page of the source. Errors are treated as transient.
type PageSource interface {
	Fetch(ctx context.Context, request PageRequest) (RawPage, error)
}

// Extractor turns a rendered page into raw records. An empty slice is a valid
// "no content" result and is distinct from an error.
type Extractor interface {
	Extract(page RawPage) ([]RawRecord, error)
}

// SnapshotStore persists the full accepted sequence of a session.
// Load returns an empty slice and no error for an unknown identifier.
type SnapshotStore interface {
	Load(ctx context.Context, id string) ([]Record, error)
	Save(ctx context.Context, id string, records []Record) error
}

// LatestFinder is implemented by stores that can list their snapshots.
type LatestFinder interface {
	Latest(ctx context.Context, prefix string) (string, bool, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
