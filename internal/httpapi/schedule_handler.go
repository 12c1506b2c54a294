package httpapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/skyhub/flightboard/internal/schedule"
	"github.com/skyhub/flightboard/internal/upstream"
)

var hubPattern = regexp.MustCompile(`^[A-Z]{3,4}$`)

// scheduleResponse is the aggregation-mode body.
type scheduleResponse struct {
	Flights      []schedule.Record `json:"flights"`
	Total        int               `json:"total"`
	TotalFetched int               `json:"totalFetched"`
	PagesScanned int               `json:"pagesScanned"`
	TotalPages   int               `json:"totalPages"`
	Cached       bool              `json:"cached"`
	Hub          string            `json:"hub"`
	Dir          string            `json:"dir"`
}

// singlePageResponse is the passthrough-mode body: the raw upstream page plus
// the cached flag.
type singlePageResponse struct {
	*schedule.Page
	Cached bool `json:"cached"`
}

// handleSchedule serves GET /api/schedule.
//
// Query parameters: hub (required airport code), dir (departures|arrivals,
// default departures), timestamp (required epoch seconds, start of the day
// window), page (optional; switches to single-page passthrough).
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	q := r.URL.Query()

	hub := strings.ToUpper(strings.TrimSpace(q.Get("hub")))
	if !hubPattern.MatchString(hub) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMissingHub.Error()})
		return
	}

	dir := q.Get("dir")
	if dir == "" {
		dir = "departures"
	}
	if dir != "departures" && dir != "arrivals" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errInvalidDir.Error()})
		return
	}

	dayStart, err := strconv.ParseInt(q.Get("timestamp"), 10, 64)
	if err != nil || dayStart <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMissingTimestamp.Error()})
		return
	}

	ttl := scheduleHotTTL
	if time.Since(time.Unix(dayStart, 0)) > 24*time.Hour {
		// Historical windows don't change anymore.
		ttl = scheduleHistoricalTTL
	}

	if rawPage := q.Get("page"); rawPage != "" {
		page, err := strconv.Atoi(rawPage)
		if err != nil || page < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": errInvalidPage.Error()})
			return
		}
		s.serveSinglePage(w, r, hub, dir, dayStart, page, ttl)
		return
	}

	s.serveAggregation(w, r, hub, dir, dayStart, ttl)
}

func (s *Server) serveAggregation(w http.ResponseWriter, r *http.Request, hub, dir string, dayStart int64, ttl time.Duration) {
	key := fmt.Sprintf("schedule|%s|%s|%d|all", hub, dir, dayStart)

	if v, ok := s.cache.Get(key); ok {
		agg := v.(*schedule.Aggregation)
		setScheduleCacheHeader(w, ttl)
		writeJSON(w, http.StatusOK, aggregationBody(agg, hub, dir, true))
		return
	}

	agg, err := s.schedule.Aggregate(r.Context(), hub, dir, dayStart)
	if err != nil {
		s.scheduleError(w, hub, dir, err)
		return
	}

	s.cache.Set(key, agg, ttl)
	setScheduleCacheHeader(w, ttl)
	writeJSON(w, http.StatusOK, aggregationBody(agg, hub, dir, false))
}

func (s *Server) serveSinglePage(w http.ResponseWriter, r *http.Request, hub, dir string, dayStart int64, page int, ttl time.Duration) {
	key := fmt.Sprintf("schedule|%s|%s|%d|page%d", hub, dir, dayStart, page)

	if v, ok := s.cache.Get(key); ok {
		setScheduleCacheHeader(w, ttl)
		writeJSON(w, http.StatusOK, singlePageResponse{Page: v.(*schedule.Page), Cached: true})
		return
	}

	p, err := s.schedule.FetchPage(r.Context(), hub, dir, dayStart, page)
	if err != nil {
		s.scheduleError(w, hub, dir, err)
		return
	}

	s.cache.Set(key, p, ttl)
	setScheduleCacheHeader(w, ttl)
	writeJSON(w, http.StatusOK, singlePageResponse{Page: p, Cached: false})
}

// setScheduleCacheHeader marks a successful schedule response as edge
// cacheable. Error responses never carry the header.
func setScheduleCacheHeader(w http.ResponseWriter, ttl time.Duration) {
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=60", int(ttl.Seconds())))
}

// scheduleError maps pipeline failures for the schedule endpoint: timeouts
// get 504, everything else the 500 catch-all with the message preserved for
// diagnosis.
func (s *Server) scheduleError(w http.ResponseWriter, hub, dir string, err error) {
	s.log.Error().Err(err).Str("hub", hub).Str("dir", dir).Msg("schedule fetch failed")

	if upstream.IsTimeout(err) {
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "schedule upstream timed out"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func aggregationBody(agg *schedule.Aggregation, hub, dir string, cached bool) scheduleResponse {
	return scheduleResponse{
		Flights:      agg.Records,
		Total:        len(agg.Records),
		TotalFetched: agg.TotalFetched,
		PagesScanned: agg.PagesScanned,
		TotalPages:   agg.TotalPages,
		Cached:       cached,
		Hub:          hub,
		Dir:          dir,
	}
}
