package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyhub/flightboard/internal/cache"
	"github.com/skyhub/flightboard/internal/config"
	"github.com/skyhub/flightboard/internal/logging"
	"github.com/skyhub/flightboard/internal/ratelimit"
	"github.com/skyhub/flightboard/internal/schedule"
	"github.com/skyhub/flightboard/internal/tracker"
)

const dayStart = int64(1704067200) // 2024-01-01T00:00:00Z

// testFixture builds a Server wired to fake upstreams.
type testFixture struct {
	server      *Server
	scheduleSrv *httptest.Server
	trackerSrv  *httptest.Server
}

func newFixture(t *testing.T, scheduleHandler, trackerHandler http.HandlerFunc) *testFixture {
	t.Helper()

	if scheduleHandler == nil {
		scheduleHandler = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected schedule call", http.StatusTeapot)
		}
	}
	if trackerHandler == nil {
		trackerHandler = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unexpected tracker call", http.StatusTeapot)
		}
	}

	scheduleSrv := httptest.NewServer(scheduleHandler)
	trackerSrv := httptest.NewServer(trackerHandler)
	t.Cleanup(scheduleSrv.Close)
	t.Cleanup(trackerSrv.Close)

	cfg := config.New()
	cfg.ScheduleBaseURL = scheduleSrv.URL
	cfg.TrackerBaseURL = trackerSrv.URL

	log := logging.NewDefaultLogger()
	srv := New(
		cfg,
		log,
		cache.New(50),
		ratelimit.NewClientLimiter(ratelimit.ClientRequestLimit, ratelimit.ClientRequestWindow),
		schedule.NewClient(scheduleSrv.Client(), scheduleSrv.URL, ratelimit.NewUpstreamLimiter(0), log),
		tracker.NewClient(trackerSrv.Client(), trackerSrv.URL, log),
	)

	return &testFixture{server: srv, scheduleSrv: scheduleSrv, trackerSrv: trackerSrv}
}

func (f *testFixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func scheduleUpstream(pages map[int]schedule.Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		p, ok := pages[page]
		if !ok {
			p = schedule.Page{Data: []schedule.Record{}, Page: page}
		}
		json.NewEncoder(w).Encode(p)
	}
}

func onePageUpstream() http.HandlerFunc {
	dep := dayStart + 3600
	return scheduleUpstream(map[int]schedule.Page{
		1: {TotalPages: 1, Data: []schedule.Record{
			{FlightNumber: "UA100", AirlineCode: "UA", ScheduledDeparture: &dep},
		}},
	})
}

// --- schedule endpoint -----------------------------------------------------

func TestScheduleAggregationAndCacheFlag(t *testing.T) {
	f := newFixture(t, onePageUpstream(), nil)

	url := fmt.Sprintf("/api/schedule?hub=ORD&dir=departures&timestamp=%d", dayStart)

	rec := f.get(t, url)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ORD", body["hub"])
	assert.Equal(t, "departures", body["dir"])
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, float64(1), body["total"])

	rec = f.get(t, url)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, true, body["cached"], "an immediate repeat within the TTL must be served from cache")
}

func TestScheduleDefaultsDirToDepartures(t *testing.T) {
	f := newFixture(t, onePageUpstream(), nil)

	rec := f.get(t, fmt.Sprintf("/api/schedule?hub=ORD&timestamp=%d", dayStart))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "departures", decodeBody(t, rec)["dir"])
}

func TestScheduleValidation(t *testing.T) {
	f := newFixture(t, nil, nil)

	tests := []struct {
		name string
		url  string
	}{
		{"missing hub", fmt.Sprintf("/api/schedule?timestamp=%d", dayStart)},
		{"invalid hub", fmt.Sprintf("/api/schedule?hub=o!&timestamp=%d", dayStart)},
		{"missing timestamp", "/api/schedule?hub=ORD"},
		{"bad timestamp", "/api/schedule?hub=ORD&timestamp=tomorrow"},
		{"bad dir", fmt.Sprintf("/api/schedule?hub=ORD&dir=sideways&timestamp=%d", dayStart)},
		{"bad page", fmt.Sprintf("/api/schedule?hub=ORD&timestamp=%d&page=zero", dayStart)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, tt.url)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestScheduleHistoricalWindowGetsLongerTTL(t *testing.T) {
	f := newFixture(t, onePageUpstream(), nil)

	// 2024 is long past, so the historical TTL applies.
	rec := f.get(t, fmt.Sprintf("/api/schedule?hub=ORD&timestamp=%d", dayStart))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, s-maxage=300, stale-while-revalidate=60", rec.Header().Get("Cache-Control"))
}

func TestScheduleSinglePagePassthrough(t *testing.T) {
	dep := dayStart + 7200
	f := newFixture(t, scheduleUpstream(map[int]schedule.Page{
		2: {Page: 2, TotalPages: 4, Data: []schedule.Record{
			// Passthrough skips the carrier filter.
			{FlightNumber: "AA55", AirlineCode: "AA", ScheduledDeparture: &dep},
		}},
	}), nil)

	url := fmt.Sprintf("/api/schedule?hub=ORD&timestamp=%d&page=2", dayStart)

	rec := f.get(t, url)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, float64(4), body["totalPages"])
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "AA55", data[0].(map[string]interface{})["flightNumber"])

	rec = f.get(t, url)
	assert.Equal(t, true, decodeBody(t, rec)["cached"])
}

func TestScheduleUpstreamFailureIsInternalError(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)

	rec := f.get(t, fmt.Sprintf("/api/schedule?hub=ORD&timestamp=%d", dayStart))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["error"], "the failure message is preserved for diagnosis")
	assert.Empty(t, rec.Header().Get("Cache-Control"),
		"error responses must not be edge cacheable")
}

// --- flight-times endpoint -------------------------------------------------

func trackerPage(blob string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><script>var trackpollBootstrap = %s;</script></html>`, blob)
	}
}

func flightBlob(dest string, scheduledDeparture int64) string {
	return fmt.Sprintf(`{"flights":{"key":{"activityLog":{"flights":[
	  {"origin":{"iata":"ORD"},"destination":{"iata":%q},
	   "gateDepartureTimes":{"scheduled":%d},"flightStatus":"scheduled"}]}}}}`,
		dest, scheduledDeparture)
}

func TestFlightTimesSuccessAndCacheFlag(t *testing.T) {
	f := newFixture(t, nil, trackerPage(flightBlob("DEN", dayStart+3600)))

	rec := f.get(t, "/api/flight-times?flight=ua2221")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, "UAL2221", body["flight"], "designator is normalized before the fetch")
	assert.Equal(t, "s-maxage=120, stale-while-revalidate=300", rec.Header().Get("Cache-Control"))

	rec = f.get(t, "/api/flight-times?flight=UAL2221")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["cached"], "normalized designators share one cache entry")
}

func TestFlightTimesMissingParameter(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.get(t, "/api/flight-times")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
}

func TestFlightTimesInvalidDesignator(t *testing.T) {
	f := newFixture(t, nil, nil)

	for _, bad := range []string{"UAL12345", "!!", "UAXX1"} {
		rec := f.get(t, "/api/flight-times?flight="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "designator %q", bad)
	}
}

func TestFlightTimesNoEmbeddedDataIs404(t *testing.T) {
	f := newFixture(t, nil, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>bot wall</body></html>")
	})

	rec := f.get(t, "/api/flight-times?flight=2221")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No flight data found", body["error"])
}

func TestFlightTimesUpstreamStatusIs502(t *testing.T) {
	f := newFixture(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	rec := f.get(t, "/api/flight-times?flight=2221")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFlightTimesUnparsableBlobIs502(t *testing.T) {
	f := newFixture(t, nil, trackerPage(`{"flights": {oops}}`))

	rec := f.get(t, "/api/flight-times?flight=2221")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFlightTimesRateLimitsCacheMisses(t *testing.T) {
	f := newFixture(t, nil, trackerPage(flightBlob("DEN", dayStart)))

	// Five distinct designators, five cache misses, all from one client.
	for i := 1; i <= ratelimit.ClientRequestLimit; i++ {
		rec := f.get(t, fmt.Sprintf("/api/flight-times?flight=UAL%d", i))
		require.Equal(t, http.StatusOK, rec.Code, "fetch %d should be allowed", i)
	}

	rec := f.get(t, "/api/flight-times?flight=UAL999")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])

	// Cache hits bypass the limiter entirely.
	rec = f.get(t, "/api/flight-times?flight=UAL1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["cached"])
}

func TestFlightTimesCORSPreflight(t *testing.T) {
	f := newFixture(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/flight-times", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"),
		"localhost origins are echoed back")
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestFlightTimesCORSUnknownOriginFallsBack(t *testing.T) {
	f := newFixture(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/flight-times", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, f.server.cfg.CORSOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFlightTimesMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/flight-times?flight=2221", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// --- shared glue -----------------------------------------------------------

func TestClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded single", map[string]string{"X-Forwarded-For": "10.0.0.1"}, "10.0.0.1"},
		{"forwarded multiple uses first", map[string]string{"X-Forwarded-For": "10.0.0.1, 172.16.0.1"}, "10.0.0.1"},
		{"real ip fallback", map[string]string{"X-Real-IP": "192.168.1.9"}, "192.168.1.9"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "10.0.0.2", "X-Real-IP": "192.168.1.9"}, "10.0.0.2"},
		{"no headers", nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientKey(req))
		})
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
