// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/streamcast/internal/auth"
	"github.com/tomtom215/streamcast/internal/config"
	"github.com/tomtom215/streamcast/internal/middleware"
)

// NewRouter configures all HTTP routes using Chi router.
//
// Health probes and /metrics are public; everything else passes through the
// auth gate. Stream attachment gets its own rate limit tier because each
// connection is long-lived: the limit bounds reconnect attempts, not record
// throughput.
func NewRouter(cfg *config.Config, h *Handler, gate *auth.Gate) *chi.Mux {
	m := NewChiMiddleware(cfg.Security)

	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	// Applied to ALL routes in order
	r.Use(middleware.RequestID)         // X-Request-ID header plus logging context
	r.Use(chimiddleware.RealIP)         // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)      // Recover from panics
	r.Use(m.CORS())                     // CORS must be global to handle OPTIONS preflight
	r.Use(m.SecurityHeaders())          // Baseline security headers on every response
	r.Use(middleware.PrometheusMetrics) // Request counters and latency histograms
	r.Use(middleware.Compression)       // Skips streaming connections internally
	if h.perfMon != nil {
		r.Use(h.perfMon.Middleware)
	}

	// Chi's stock 404/405 replies are plain text; keep the JSON envelope
	// consistent for clients that only speak it.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	// ========================
	// Health Endpoints
	// ========================
	// Permissive rate limiting so orchestrator probes are never throttled.
	// No auth: probes and load balancers do not carry tokens.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(m.RateLimitTier(RateLimitHealth))
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	// ========================
	// Stream Endpoints
	// ========================
	r.Route("/api/v1/stream", func(r chi.Router) {
		// Attachment endpoints require the consume scope. Rate limiting runs
		// before the gate so credential stuffing is throttled too.
		r.Group(func(r chi.Router) {
			r.Use(m.RateLimitTier(RateLimitStream))
			r.Use(gate.Middleware)
			r.Use(gate.RequireScope(auth.ScopeConsume))

			r.Get("/", h.StreamSSE)
			r.Get("/ws", h.StreamWS)
		})

		// Stats require authentication but no particular scope.
		r.Group(func(r chi.Router) {
			r.Use(m.RateLimit())
			r.Use(gate.Middleware)

			r.Get("/stats", h.StreamStats)
		})
	})

	// ========================
	// Publish Endpoint
	// ========================
	r.Route("/api/v1/publish", func(r chi.Router) {
		r.Use(m.RateLimit())
		r.Use(gate.Middleware)
		r.Use(gate.RequireScope(auth.ScopePublish))

		r.Post("/", h.Publish)
	})

	// ========================
	// Observability
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
