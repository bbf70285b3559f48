// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

const (
	defaultTimeout   = 20 * time.Second
	defaultUserAgent = "protocol-analyzer/1.0"
)

// NewClient returns an HTTP client configured from cfg. When limiter is not
// nil every outgoing request, retries included, first waits for a token, so
// a service's published request rate holds across all goroutines sharing the
// client.
func NewClient(cfg types.HTTPConfig, limiter *rate.Limiter) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &transport{
			base:      http.DefaultTransport,
			limiter:   limiter,
			userAgent: ua,
		},
	}
}

// PerSecond builds a limiter allowing n requests per second with a burst of
// one. A non-positive n disables throttling.
func PerSecond(n float64) *rate.Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(n), 1)
}

type transport struct {
	base      http.RoundTripper
	limiter   *rate.Limiter
	userAgent string
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
