package ratelimit

import (
	"sync"
	"time"

	"github.com/jmhodges/clock"
)

// ClientLimiter is a sliding-window counter keyed by client identifier.
//
// Each client gets an ordered list of call timestamps. On every check the
// list is trimmed to the trailing window before counting, so it never grows
// past the limit plus whatever fits in one window.
type ClientLimiter struct {
	clk    clock.Clock
	limit  int
	window time.Duration

	mu    sync.Mutex
	calls map[string][]time.Time
}

// NewClientLimiter creates a limiter allowing limit calls per window per
// client.
func NewClientLimiter(limit int, window time.Duration) *ClientLimiter {
	return NewClientLimiterWithClock(limit, window, clock.New())
}

// NewClientLimiterWithClock creates a limiter with an injected clock so the
// window roll-over is testable without sleeping.
func NewClientLimiterWithClock(limit int, window time.Duration, clk clock.Clock) *ClientLimiter {
	return &ClientLimiter{
		clk:    clk,
		limit:  limit,
		window: window,
		calls:  make(map[string][]time.Time),
	}
}

// Allow reports whether clientID may trigger another upstream fetch. An
// allowed call is recorded; a denied call is not, so a throttled client does
// not push its own window forward.
func (l *ClientLimiter) Allow(clientID string) bool {
	now := l.clk.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := trimBefore(l.calls[clientID], cutoff)

	if len(recent) >= l.limit {
		l.calls[clientID] = recent
		return false
	}

	l.calls[clientID] = append(recent, now)
	return true
}

// PruneIdle drops clients whose entire call history has aged out of the
// window, and returns how many were removed. The sliding-window trim keeps
// active clients bounded; this keeps the map itself from accumulating
// one-shot visitors over the process lifetime.
func (l *ClientLimiter) PruneIdle() int {
	cutoff := l.clk.Now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, stamps := range l.calls {
		if len(trimBefore(stamps, cutoff)) == 0 {
			delete(l.calls, id)
			removed++
		}
	}
	return removed
}

// trimBefore returns the suffix of stamps at or after cutoff. Stamps are
// appended in order, so a linear scan from the front finds the boundary.
func trimBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	return stamps[i:]
}
