package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageSessionStart Stage = "SESSION_START"
	StagePageDone     Stage = "PAGE_DONE"
	StageSessionDone  Stage = "SESSION_DONE"
	StageSessionError Stage = "SESSION_ERROR"
)

// PageOutcome is a coarse grouping of how a page went.
type PageOutcome string

// Page outcomes reported with StagePageDone.
const (
	PageAdded       PageOutcome = "added"
	PageNoAdditions PageOutcome = "no_additions"
	PageEmpty       PageOutcome = "empty"
	PageFetchFailed PageOutcome = "fetch_failed"
)

// Event captures a single milestone of a collection session.
type Event struct {
	// RunID identifies the session using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Source is the host label of the collected source.
	Source string
	// SnapshotID names the snapshot the session writes to.
	SnapshotID string
	// Page is the page cursor for StagePageDone.
	Page int
	// Outcome groups the page result for StagePageDone.
	Outcome PageOutcome
	// Found counts raw records extracted from the page.
	Found int
	// Added counts records accepted on the page (or in the session for SESSION_DONE).
	Added int
	// Total is the accepted sequence length after the milestone.
	Total int
	// Attempts is the number of fetch attempts used for the page.
	Attempts int
	// StopReason is set on SESSION_DONE.
	StopReason string
	// Dur captures page or session latency.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageSessionError:
	case StagePageDone:
		if e.Page < 1 {
			return errors.New("page done requires page >= 1")
		}
		if e.Outcome == "" {
			return errors.New("page done requires outcome")
		}
	case StageSessionDone:
		if e.StopReason == "" {
			return errors.New("session done requires stop reason")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseRunID converts a textual run ID into the Event form. Unparseable IDs
// yield the zero value, which Validate rejects.
func ParseRunID(id string) [16]byte {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return [16]byte{}
	}
	return UUIDToBytes(parsed)
}
