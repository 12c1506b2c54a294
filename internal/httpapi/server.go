package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/skyhub/flightboard/internal/cache"
	"github.com/skyhub/flightboard/internal/config"
	"github.com/skyhub/flightboard/internal/logging"
	"github.com/skyhub/flightboard/internal/ratelimit"
	"github.com/skyhub/flightboard/internal/schedule"
	"github.com/skyhub/flightboard/internal/tracker"
)

// Cache TTLs per call site. Historical day windows are stable so they cache
// longer; live windows and scraped timelines go stale fast.
const (
	scheduleHotTTL        = 60 * time.Second
	scheduleHistoricalTTL = 300 * time.Second
	flightTimesTTL        = 120 * time.Second
)

// Server wires the acquisition pipelines to the HTTP endpoints.
type Server struct {
	cfg      *config.Config
	log      *logging.Logger
	cache    *cache.Store
	clients  *ratelimit.ClientLimiter
	schedule *schedule.Client
	tracker  *tracker.Client
	started  time.Time
}

// New creates the HTTP server glue around the given components.
func New(cfg *config.Config, log *logging.Logger, store *cache.Store,
	clients *ratelimit.ClientLimiter, scheduleClient *schedule.Client,
	trackerClient *tracker.Client) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		cache:    store,
		clients:  clients,
		schedule: scheduleClient,
		tracker:  trackerClient,
		started:  time.Now(),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/schedule", s.handleSchedule)
	mux.HandleFunc("/api/flight-times", s.handleFlightTimes)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"uptimeSeconds": int64(time.Since(s.started).Seconds()),
		"cacheEntries":  s.cache.Len(),
		"schedule":      s.schedule.Metrics(),
	})
}

// clientKey derives the throttling identity of a request: first value of the
// forwarded-address header, else the proxy's real-ip header, else a shared
// sentinel.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return "unknown"
}

// allowOrigin picks the CORS origin to echo: the configured dashboard origin,
// or the request's own origin when it is a localhost variant (dev setups).
func (s *Server) allowOrigin(origin string) string {
	if origin == s.cfg.CORSOrigin {
		return origin
	}
	for _, prefix := range []string{"http://localhost", "https://localhost", "http://127.0.0.1"} {
		if strings.HasPrefix(origin, prefix) {
			return origin
		}
	}
	return s.cfg.CORSOrigin
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
