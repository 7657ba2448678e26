package ranking

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"rankwatch/internal/pacing"
)

// DefaultPoolSize is the number of keywords refreshed concurrently.
const DefaultPoolSize = 5

// Pool runs tasks with bounded parallelism. Tasks are dispatched in waves of
// Size and the pool pauses for BatchDelay between waves.
type Pool struct {
	size       int
	batchDelay time.Duration
	clock      quartz.Clock
}

// NewPool creates a pool. A non-positive size falls back to DefaultPoolSize.
func NewPool(size int, batchDelay time.Duration, clock quartz.Clock) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{size: size, batchDelay: batchDelay, clock: clock}
}

// Size returns the maximum number of concurrent tasks.
func (p *Pool) Size() int {
	return p.size
}

// Run calls task for indexes 0..n-1 and returns each task's error at its index.
// A task failure never stops its siblings. If ctx is cancelled during an
// inter-batch delay, the undispatched tasks report the context error.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)

	// Errors are collected per index, so the group never cancels.
	var eg errgroup.Group
	eg.SetLimit(p.size)

	for i := 0; i < n; i++ {
		if i > 0 && i%p.size == 0 {
			if err := pacing.Wait(ctx, p.clock, p.batchDelay, "pool", "batch"); err != nil {
				for j := i; j < n; j++ {
					errs[j] = err
				}
				break
			}
		}
		eg.Go(func() error {
			errs[i] = task(ctx, i)
			return nil
		})
	}

	_ = eg.Wait()
	return errs
}
