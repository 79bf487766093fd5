// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/streamcast/internal/config"
	"github.com/tomtom215/streamcast/internal/metrics"
)

// RateLimitConfig holds rate limiting configuration for an endpoint group.
type RateLimitConfig struct {
	// Requests is the maximum number of requests allowed per window
	Requests int

	// Window is the time window for the rate limit
	Window time.Duration
}

// Predefined rate limit tiers. Health probes come frequently from
// orchestrators, so their tier is generous. The stream tier limits
// connection attempts, not records; a client reconnecting on the backoff
// schedule makes at most a handful of attempts per minute, so sixty per IP
// absorbs multi-tab browsers while still smothering reconnect storms.
var (
	// RateLimitHealth is for health check endpoints (10000 requests per minute)
	RateLimitHealth = RateLimitConfig{Requests: 10000, Window: time.Minute}

	// RateLimitStream is for stream connection attempts (60 per minute per IP)
	RateLimitStream = RateLimitConfig{Requests: 60, Window: time.Minute}
)

// ChiMiddleware provides chi-compatible middleware built from the security
// configuration: CORS, tiered rate limiting, and security headers.
type ChiMiddleware struct {
	corsOrigins []string
	requests    int
	window      time.Duration
	disabled    bool
}

// NewChiMiddleware creates middleware from the security configuration.
// RateLimitReqs and RateLimitWindow drive the default API tier; the fixed
// tiers above are independent of configuration.
func NewChiMiddleware(cfg config.SecurityConfig) *ChiMiddleware {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &ChiMiddleware{
		corsOrigins: origins,
		requests:    cfg.RateLimitReqs,
		window:      cfg.RateLimitWindow,
		disabled:    cfg.RateLimitDisabled,
	}
}

// CORS returns CORS middleware configured with the allowed origins.
//
// Last-Event-ID is in the allowed headers because browsers send it on
// EventSource reconnects and it is not CORS-safelisted; without it a
// cross-origin browser consumer could connect once but never resume.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   m.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Cache-Control", "Last-Event-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// RateLimit returns rate limiting middleware using the configured default
// tier, keyed by client IP. Returns a no-op middleware when rate limiting
// is disabled.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.RateLimitCustom(m.requests, m.window)
}

// RateLimitTier returns rate limiting middleware for a predefined tier.
func (m *ChiMiddleware) RateLimitTier(tier RateLimitConfig) func(http.Handler) http.Handler {
	return m.RateLimitCustom(tier.Requests, tier.Window)
}

// RateLimitCustom returns rate limiting middleware with custom limits,
// keyed by client IP. The RealIP middleware must run earlier in the chain
// so clients behind a proxy are keyed by their forwarded address.
func (m *ChiMiddleware) RateLimitCustom(requests int, window time.Duration) func(http.Handler) http.Handler {
	if m.disabled || requests <= 0 || window <= 0 {
		return noopMiddleware
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(onRateLimited),
	)
}

// onRateLimited counts the rejection and answers with the standard error
// envelope. httprate has already set the Retry-After and X-RateLimit
// headers when this runs.
func onRateLimited(w http.ResponseWriter, r *http.Request) {
	metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
	NewResponseWriter(w, r).TooManyRequests("rate limit exceeded")
}

// SecurityHeaders returns middleware that adds security headers
// appropriate for an API and streaming server.
func (m *ChiMiddleware) SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// Referrer policy
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// HSTS for HTTPS connections
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// noopMiddleware passes requests through unchanged.
func noopMiddleware(next http.Handler) http.Handler {
	return next
}
