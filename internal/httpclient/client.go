// Package httpclient builds the outbound HTTP client shared by both upstream
// pipelines.
package httpclient

import (
	nethttp "net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"
)

const (
	maxIdleConns        = 32
	maxConnsPerHost     = 8
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

// New creates the HTTP client used for all upstream fetches.
//
// The transport keeps a small connection pool per upstream host and speaks
// HTTP/2 where the peer supports it. Transport-level retries are disabled:
// every response is cached and the dashboard re-polls on the cache headers,
// so a failed fetch surfaces to the caller instead of being retried against
// a rate-limit-sensitive upstream.
func New() *nethttp.Client {
	tr := &nethttp.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxConnsPerHost,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}
	_ = http2.ConfigureTransport(tr)

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &nethttp.Client{Transport: tr}
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	client := retryClient.StandardClient()
	// Per-call deadlines come from the request context, not a client-wide
	// timeout.
	client.Timeout = 0
	return client
}
