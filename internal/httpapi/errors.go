// Package httpapi exposes the dashboard-facing HTTP endpoints. Handlers are
// glue: validate input, consult the cache and limiters, call a pipeline, map
// the outcome to a status code.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/skyhub/flightboard/internal/upstream"
)

// Validation and throttling sentinels raised at the handler boundary, before
// any cache or network work happens.
var (
	errMissingHub       = errors.New("missing or invalid hub parameter")
	errMissingTimestamp = errors.New("missing or invalid timestamp parameter")
	errInvalidDir       = errors.New("dir must be departures or arrivals")
	errInvalidPage      = errors.New("page must be a positive integer")
	errMissingFlight    = errors.New("missing flight parameter")
	errInvalidFlight    = errors.New("invalid flight designator")
)

// statusForUpstreamError maps a pipeline error onto an HTTP status.
//
// Taxonomy: timeout -> 504, non-success upstream and unparsable payloads ->
// 502, missing records -> 404, anything else -> 500. The raw error text only
// ever reaches the client inside a 500 body, for diagnosis.
func statusForUpstreamError(err error) int {
	switch {
	case upstream.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errors.Is(err, upstream.ErrUnavailable), errors.Is(err, upstream.ErrBadPayload):
		return http.StatusBadGateway
	case upstream.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the body text for a failed flight-times request.
// Stable strings the dashboard matches on; internals stay out of 4xx/5xx
// bodies except the 500 catch-all.
func clientMessage(err error, status int) string {
	switch status {
	case http.StatusNotFound:
		return "No flight data found"
	case http.StatusGatewayTimeout:
		return "Upstream timed out"
	case http.StatusBadGateway:
		return "Flight data source unavailable"
	default:
		return err.Error()
	}
}
