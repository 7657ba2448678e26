// Package pacing holds the courtesy waits used to stay under external rate limits.
package pacing

import (
	"context"
	"time"

	"github.com/coder/quartz"
)

// Wait blocks for d on clock, returning early with the context error if ctx is done.
// A non-positive d returns immediately.
func Wait(ctx context.Context, clock quartz.Clock, d time.Duration, tags ...string) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := clock.NewTimer(d, tags...)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
