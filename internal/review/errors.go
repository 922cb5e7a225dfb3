package review

import (
	"errors"
	"fmt"
)

var (
	// ErrDateUnparseable marks a raw record whose date could not be read.
	ErrDateUnparseable = errors.New("unparseable record date")
	// ErrSnapshotStore wraps every snapshot load/save failure.
	ErrSnapshotStore = errors.New("snapshot store failure")
	// ErrInvalidCriteria is returned when a Criteria fails validation.
	ErrInvalidCriteria = errors.New("invalid criteria")
)

// FetchError describes a page that could not be fetched after all attempts.
type FetchError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d failed after %d attempts: %v", e.Page, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
