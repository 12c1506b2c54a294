// Package schedule acquires flight-schedule data from the paginated
// aggregator upstream.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/skyhub/flightboard/internal/logging"
	"github.com/skyhub/flightboard/internal/ratelimit"
	"github.com/skyhub/flightboard/internal/upstream"
)

const (
	// PageTimeout bounds each page fetch. A page that takes longer aborts
	// the whole aggregation.
	PageTimeout = 8000 * time.Millisecond

	// MaxPages caps how many pages one aggregation will scan, whatever
	// totalPages the upstream claims.
	MaxPages = 20

	// metricsLogWindow is how often the client logs its upstream call rate.
	metricsLogWindow = 60 * time.Second
)

// Record is one normalized flight entry from the schedule upstream.
// Timestamps are epoch seconds; a nil pointer means the upstream had no value
// for that field.
type Record struct {
	FlightNumber       string `json:"flightNumber"`
	AirlineCode        string `json:"airlineCode"`
	ScheduledDeparture *int64 `json:"scheduledDeparture"`
	ScheduledArrival   *int64 `json:"scheduledArrival"`
	Origin             string `json:"origin,omitempty"`
	Destination        string `json:"destination,omitempty"`
	Status             string `json:"status,omitempty"`
}

// Page is one raw upstream page. TotalPages may be absent upstream; callers
// treat a non-positive value as 1.
type Page struct {
	Data       []Record `json:"data"`
	Page       int      `json:"page"`
	TotalPages int      `json:"totalPages"`
}

// clientMetrics tracks upstream call volume.
type clientMetrics struct {
	sync.Mutex
	totalCalls    int64
	callsInWindow int64
	windowStart   time.Time
}

// MetricsSnapshot is a point-in-time copy of the client's call counters.
type MetricsSnapshot struct {
	TotalCalls int64 `json:"totalCalls"`
}

// Client fetches schedule pages through the shared upstream rate limiter.
type Client struct {
	httpClient  *nethttp.Client
	baseURL     string
	limiter     *ratelimit.UpstreamLimiter
	log         *logging.Logger
	pageTimeout time.Duration
	metrics     *clientMetrics
}

// NewClient creates a schedule client. Every page fetch waits on limiter
// before dispatching, so all concurrent aggregations share one upstream
// cadence.
func NewClient(httpClient *nethttp.Client, baseURL string, limiter *ratelimit.UpstreamLimiter, log *logging.Logger) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		limiter:     limiter,
		log:         log,
		pageTimeout: PageTimeout,
		metrics:     &clientMetrics{windowStart: time.Now()},
	}
}

// Metrics returns the client's upstream call counters.
func (c *Client) Metrics() MetricsSnapshot {
	c.metrics.Lock()
	defer c.metrics.Unlock()
	return MetricsSnapshot{TotalCalls: c.metrics.totalCalls}
}

// FetchPage retrieves one upstream page for (hub, dir, dayStart).
//
// The call first waits its turn on the shared rate limiter under the caller's
// context, then runs the HTTP request under the page timeout. Time spent
// queued behind the limiter does not count against the timeout. Errors are
// classified: deadline hits become upstream.ErrTimeout, non-2xx statuses
// become upstream.ErrUnavailable, undecodable bodies become
// upstream.ErrBadPayload.
func (c *Client) FetchPage(ctx context.Context, hub, dir string, dayStart int64, page int) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("hub", hub)
	q.Set("dir", dir)
	q.Set("from", fmt.Sprintf("%d", dayStart))
	q.Set("page", fmt.Sprintf("%d", page))
	reqURL := c.baseURL + "/v1/schedules?" + q.Encode()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building schedule request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.countCall()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: page %d: %v", upstream.ErrTimeout, page, err)
		}
		return nil, fmt.Errorf("schedule page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: schedule page %d returned %d", upstream.ErrUnavailable, page, resp.StatusCode)
	}

	var p Page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decoding schedule page %d: %v", upstream.ErrBadPayload, page, err)
	}

	c.log.Debug().
		Str("hub", hub).
		Str("dir", dir).
		Int("page", page).
		Int("records", len(p.Data)).
		Msg("fetched schedule page")

	return &p, nil
}

// countCall bumps the call counters and logs the observed upstream rate once
// per window.
func (c *Client) countCall() {
	c.metrics.Lock()
	defer c.metrics.Unlock()

	c.metrics.totalCalls++
	c.metrics.callsInWindow++

	if elapsed := time.Since(c.metrics.windowStart); elapsed >= metricsLogWindow {
		rate := float64(c.metrics.callsInWindow) / elapsed.Seconds()
		c.log.Infof("schedule upstream: %.2f req/sec over last %s, %d total calls",
			rate, elapsed.Round(time.Second), c.metrics.totalCalls)
		c.metrics.callsInWindow = 0
		c.metrics.windowStart = time.Now()
	}
}
