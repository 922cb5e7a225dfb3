// Package storage holds the on-disk snapshot format shared by every snapshot
// store backend. Backends live in the subpackages (local, memory, gcs,
// postgres) and all implement review.SnapshotStore.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JakeFAU/review-crawler/internal/review"
)

// Backend names accepted by configuration.
const (
	BackendLocal    = "local"
	BackendMemory   = "memory"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
)

// ContentType of encoded snapshots.
const ContentType = "application/json"

type envelope struct {
	Reviews []review.Record `json:"reviews"`
}

// Encode renders records as {"reviews":[...]}.
func Encode(records []review.Record) ([]byte, error) {
	if records == nil {
		records = []review.Record{}
	}
	data, err := json.MarshalIndent(envelope{Reviews: records}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot. It also accepts a bare JSON array of records.
func Decode(data []byte) ([]review.Record, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return []review.Record{}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var records []review.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode snapshot array: %w", err)
		}
		return records, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if env.Reviews == nil {
		env.Reviews = []review.Record{}
	}
	return env.Reviews, nil
}

// ValidateID rejects identifiers that could escape a directory or bucket prefix.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("snapshot id is required")
	case strings.ContainsAny(id, `/\`), strings.Contains(id, ".."):
		return fmt.Errorf("snapshot id %q must not contain path separators", id)
	}
	return nil
}
