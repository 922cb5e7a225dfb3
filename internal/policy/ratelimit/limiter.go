// Package ratelimit paces page fetches against a single source with a token
// bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds pacer configuration.
type Config struct {
	// Interval is the minimum spacing between fetches. Zero disables pacing.
	Interval time.Duration
	// Burst allows this many fetches back to back before spacing applies.
	Burst int
}

// Limiter spaces out page fetches.
type Limiter struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a new Limiter.
func New(cfg Config, logger *zap.Logger) *Limiter {
	r := rate.Every(cfg.Interval)
	if cfg.Interval <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		limiter: rate.NewLimiter(r, burst),
		logger:  logger,
	}
}

// Wait blocks until the next fetch may start, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		l.logger.Debug("paced page fetch", zap.Duration("waited", waited))
	}
	return nil
}
