// Package upstream defines the error kinds shared by the third-party data
// pipelines. Handlers map these onto HTTP statuses; the pipelines themselves
// only classify.
package upstream

import "errors"

var (
	// ErrTimeout means an upstream call exceeded its deadline. Aggregation
	// discards any partial results when this happens.
	ErrTimeout = errors.New("upstream timeout")

	// ErrUnavailable means the upstream answered with a non-success status.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrBadPayload means the upstream answered but the payload could not
	// be parsed. Distinct from ErrNotFound: the data was there, we just
	// couldn't read it.
	ErrBadPayload = errors.New("upstream returned unparsable payload")

	// ErrNotFound means the upstream had no record for the request.
	ErrNotFound = errors.New("no matching record upstream")
)

// IsTimeout reports whether err is (or wraps) an upstream timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotFound reports whether err is (or wraps) a missing-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
