package queue

import (
	"context"
	"time"
)

// nextBackoff returns the delay to apply after the current one, growing
// multiplicatively and capped at cfg.Max.
func nextBackoff(current time.Duration, cfg BackoffConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.Multiplier)
	if next > cfg.Max {
		next = cfg.Max
	}
	return next
}

// sleepCtx sleeps for d unless the context is cancelled first.
// Returns false when cancellation cut the sleep short.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
