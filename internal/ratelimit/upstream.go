package ratelimit

import (
	"context"
	"sync"
	"time"
)

// UpstreamLimiter enforces a minimum interval between calls to one upstream.
//
// All callers share one "last call" timestamp guarded by a mutex, so the
// limiter serializes concurrent requests onto a single cadence: no two calls
// are dispatched closer together than the configured interval. Ordering among
// simultaneously waiting callers is whatever the mutex hands out, not FIFO.
// Go's time package is monotonic, so wall-clock adjustments can't shrink the
// gap.
type UpstreamLimiter struct {
	interval time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewUpstreamLimiter creates a limiter with the given minimum inter-call
// interval.
func NewUpstreamLimiter(interval time.Duration) *UpstreamLimiter {
	return &UpstreamLimiter{interval: interval}
}

// Wait blocks until the caller is allowed to dispatch, or until ctx is
// cancelled. On success the shared clock is advanced, so the caller must
// issue its upstream call immediately.
//
// The mutex is held across the sleep on purpose: a waiter that is in line
// keeps later callers queued behind it, which is what spaces the calls out.
func (l *UpstreamLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastCall.IsZero() {
		if elapsed := time.Since(l.lastCall); elapsed < l.interval {
			select {
			case <-time.After(l.interval - elapsed):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	l.lastCall = time.Now()
	return nil
}
