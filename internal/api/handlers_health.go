// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"net/http"
	"time"
)

// serviceVersion is reported by the health endpoint.
const serviceVersion = "1.0.0"

// healthResponse is the payload for the general health endpoint.
type healthResponse struct {
	Status    string  `json:"status"`
	Version   string  `json:"version"`
	Uptime    float64 `json:"uptime_seconds"`
	Consumers int     `json:"consumers"`
	Draining  bool    `json:"draining"`
}

// readyResponse is the payload for the readiness probe.
type readyResponse struct {
	Ready  bool            `json:"ready"`
	Checks map[string]bool `json:"checks"`
	Uptime float64         `json:"uptime_seconds"`
}

// Health reports overall service health.
//
// The service is healthy when the ingest pipeline is accepting events and
// the hub is still admitting consumers. A draining hub or a stopped pipeline
// degrades the status but the endpoint itself always answers 200, so
// monitoring can distinguish "unhealthy" from "unreachable".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ingestReady := h.ingest != nil && h.ingest.Ready()
	stats := h.hub.Stats()

	status := "healthy"
	if !ingestReady || stats.Draining {
		status = "degraded"
	}

	rw.Success(healthResponse{
		Status:    status,
		Version:   serviceVersion,
		Uptime:    time.Since(h.startTime).Seconds(),
		Consumers: stats.Consumers,
		Draining:  stats.Draining,
	})
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	rw.Success(map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 OK only when the service can accept publishers and consumers:
// the ingest pipeline must be running and the hub must not be draining.
// Returns 503 with per-dependency booleans otherwise, so a probe failure
// points at the subsystem that caused it.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ingestReady := h.ingest != nil && h.ingest.Ready()
	hubReady := !h.hub.Stats().Draining

	checks := map[string]bool{
		"ingest": ingestReady,
		"hub":    hubReady,
	}

	ready := ingestReady && hubReady
	if !ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"service is not ready", checks)
		return
	}

	rw.Success(readyResponse{
		Ready:  ready,
		Checks: checks,
		Uptime: time.Since(h.startTime).Seconds(),
	})
}
