package httpapi

import (
	"net/http"

	"github.com/skyhub/flightboard/internal/tracker"
)

// flightTimesResponse is the success body: the extracted timeline plus the
// envelope flags.
type flightTimesResponse struct {
	Success bool `json:"success"`
	Cached  bool `json:"cached"`
	*tracker.Flight
}

type flightTimesError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// handleFlightTimes serves GET|OPTIONS /api/flight-times.
func (s *Server) handleFlightTimes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin(r.Header.Get("Origin")))
	w.Header().Set("Vary", "Origin")

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
		// fall through
	default:
		writeJSON(w, http.StatusMethodNotAllowed, flightTimesError{Error: "method not allowed"})
		return
	}

	raw := r.URL.Query().Get("flight") // first value when repeated
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, flightTimesError{Error: errMissingFlight.Error()})
		return
	}

	designator := tracker.NormalizeDesignator(raw)
	if !tracker.ValidDesignator(designator) {
		writeJSON(w, http.StatusBadRequest, flightTimesError{Error: errInvalidFlight.Error()})
		return
	}

	key := "flight|" + designator

	if v, ok := s.cache.Get(key); ok {
		s.writeFlightTimes(w, v.(*tracker.Flight), true)
		return
	}

	// Only a cache miss costs an upstream fetch, so only misses count
	// against the client's window.
	if !s.clients.Allow(clientKey(r)) {
		writeJSON(w, http.StatusTooManyRequests, flightTimesError{Error: "Rate limit exceeded. Try again later."})
		return
	}

	flight, err := s.tracker.FlightTimes(r.Context(), designator)
	if err != nil {
		status := statusForUpstreamError(err)
		s.log.Error().Err(err).Str("flight", designator).Int("status", status).Msg("flight-times fetch failed")
		writeJSON(w, status, flightTimesError{Error: clientMessage(err, status)})
		return
	}

	s.cache.Set(key, flight, flightTimesTTL)
	s.writeFlightTimes(w, flight, false)
}

func (s *Server) writeFlightTimes(w http.ResponseWriter, flight *tracker.Flight, cached bool) {
	w.Header().Set("Cache-Control", "s-maxage=120, stale-while-revalidate=300")
	writeJSON(w, http.StatusOK, flightTimesResponse{Success: true, Cached: cached, Flight: flight})
}
