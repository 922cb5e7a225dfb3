package collector

import (
	"context"
	"time"
)

// RetryPolicy decides whether a failed page fetch should be attempted again.
// Attempts are counted from 1.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Pacer spaces out page fetches. Wait blocks until the next fetch may start.
type Pacer interface {
	Wait(ctx context.Context) error
}
