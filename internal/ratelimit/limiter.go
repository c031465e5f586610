// Package ratelimit paces outbound calls to external dependencies.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Limiter gates calls to one external dependency. Implementations are safe
// for concurrent use; a single instance is shared by every worker that
// talks to the same dependency.
type Limiter interface {
	// Acquire blocks until the caller may proceed or ctx is done.
	Acquire(ctx context.Context) error
}

// Interval enforces a minimum spacing between successive acquisitions.
// Each caller reserves the next free slot under the mutex and then sleeps
// until that slot without holding the lock, so N concurrent callers are
// spread N-1 intervals apart.
type Interval struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time

	nowFunc func() time.Time
}

// NewInterval creates a limiter that admits one call per interval. A
// non-positive interval admits every call immediately.
func NewInterval(interval time.Duration) *Interval {
	return &Interval{interval: interval, nowFunc: time.Now}
}

// MinInterval returns the configured spacing.
func (l *Interval) MinInterval() time.Duration { return l.interval }

// Acquire implements Limiter. A caller whose ctx ends while waiting gives
// up its slot unused; later callers are not moved forward.
func (l *Interval) Acquire(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := l.nowFunc()
	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)
	l.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "ratelimit: acquire")
	case <-t.C:
		return nil
	}
}

// Bucket is a token bucket for dependencies that tolerate short bursts.
type Bucket struct {
	lim *rate.Limiter
}

// NewBucket creates a token bucket refilling perSecond tokens with the
// given burst capacity.
func NewBucket(perSecond float64, burst int) *Bucket {
	if burst < 1 {
		burst = 1
	}
	return &Bucket{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Acquire implements Limiter.
func (b *Bucket) Acquire(ctx context.Context) error {
	if err := b.lim.Wait(ctx); err != nil {
		return eris.Wrap(err, "ratelimit: acquire")
	}
	return nil
}

// Unlimited never blocks.
type Unlimited struct{}

// Acquire implements Limiter.
func (Unlimited) Acquire(ctx context.Context) error { return ctx.Err() }
