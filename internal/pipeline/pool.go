package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// PoolOption configures RunAll.
type PoolOption func(*poolOpts)

type poolOpts struct {
	onResult func(done, total int, r ItemResult)
}

// WithOnResult registers a callback invoked after each unit completes,
// serialized, with the running completion count.
func WithOnResult(fn func(done, total int, r ItemResult)) PoolOption {
	return func(o *poolOpts) { o.onResult = fn }
}

// RunAll fans units out to at most concurrency workers and collects the
// results as they complete. It always returns a complete BatchResult: fn
// failures are recorded per unit, and units never started because ctx
// ended are counted as failed.
func RunAll[U Unit](ctx context.Context, units []U, concurrency int, fn func(context.Context, U) ItemResult, opts ...PoolOption) *BatchResult {
	var o poolOpts
	for _, opt := range opts {
		opt(&o)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	result := &BatchResult{Total: len(units), StartedAt: time.Now()}

	var mu sync.Mutex
	record := func(r ItemResult) {
		mu.Lock()
		defer mu.Unlock()
		result.add(r)
		if o.onResult != nil {
			o.onResult(len(result.Items), result.Total, r)
		}
	}

	// Plain errgroup: a failing unit must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, unit := range units {
		if ctx.Err() != nil {
			record(ItemResult{UnitID: unit.Key(), Outcome: Failed, Message: "canceled"})
			continue
		}
		g.Go(func() error {
			record(fn(ctx, unit))
			return nil // don't fail the group
		})
	}
	_ = g.Wait()

	result.FinishedAt = time.Now()
	return result
}
