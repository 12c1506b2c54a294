// Package ratelimit paces outbound upstream calls and throttles dashboard
// clients that trigger them.
package ratelimit

import "time"

// Schedule aggregator pacing
//
// The schedule aggregator bans callers that poll faster than roughly one
// request per second. One shared limiter spaces every outbound call to that
// upstream, across all concurrent dashboard requests.
const (
	// ScheduleMinInterval is the minimum gap between two consecutive calls
	// to the schedule aggregator, process-wide.
	ScheduleMinInterval = 2000 * time.Millisecond
)

// Per-client throttling for the flight-times endpoint
//
// Scraping the tracking page is the most expensive fetch we do, so a single
// dashboard client may only trigger a limited number of cache-miss fetches
// per minute. Counting uses a trailing window, not fixed buckets.
const (
	// ClientRequestLimit is the number of upstream fetches one client may
	// trigger inside ClientRequestWindow.
	ClientRequestLimit = 5

	// ClientRequestWindow is the trailing window over which client calls
	// are counted.
	ClientRequestWindow = 60 * time.Second
)
