// Package publisher announces finished collection sessions to downstream
// consumers. Implementations live in the pubsub and memory subpackages.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/review-crawler/internal/collector"
	"github.com/JakeFAU/review-crawler/internal/review"
)

// Publisher sends a JSON-encodable payload to a topic and returns a message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Completion is the payload published when a session ends normally.
type Completion struct {
	RunID      string    `json:"run_id"`
	SnapshotID string    `json:"snapshot_id"`
	SourceURL  string    `json:"source_url"`
	Mode       string    `json:"mode"`
	Total      int       `json:"total"`
	Added      int       `json:"added"`
	Pages      int       `json:"pages"`
	StopReason string    `json:"stop_reason"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewCompletion builds the payload from a session result.
func NewCompletion(res collector.Result, sourceURL string, mode review.Mode) Completion {
	return Completion{
		RunID:      res.RunID,
		SnapshotID: res.SnapshotID,
		SourceURL:  sourceURL,
		Mode:       string(mode),
		Total:      len(res.Records),
		Added:      res.Added,
		Pages:      res.Pages,
		StopReason: string(res.StopReason),
		FinishedAt: res.FinishedAt.UTC(),
	}
}

// Announce publishes c when both pub and topic are set. It is a no-op otherwise.
func Announce(ctx context.Context, pub Publisher, topic string, c Completion) (string, error) {
	if pub == nil || topic == "" {
		return "", nil
	}
	id, err := pub.Publish(ctx, topic, c)
	if err != nil {
		return "", fmt.Errorf("announce run %s: %w", c.RunID, err)
	}
	return id, nil
}
