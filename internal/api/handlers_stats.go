// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/streamcast/internal/hub"
	"github.com/tomtom215/streamcast/internal/ingest"
	"github.com/tomtom215/streamcast/internal/middleware"
	"github.com/tomtom215/streamcast/internal/notify"
)

// statsResponse aggregates the operational counters of every subsystem.
// Notify and Endpoints are omitted when the respective component is not
// configured.
type statsResponse struct {
	Hub       hub.Stats                  `json:"hub"`
	Ingest    ingest.Stats               `json:"ingest"`
	Notify    *notify.Stats              `json:"notify,omitempty"`
	Endpoints []middleware.EndpointStats `json:"endpoints,omitempty"`
	Uptime    float64                    `json:"uptime_seconds"`
}

// StreamStats reports a snapshot of delivery state: replay buffer bounds,
// per-consumer queue depths and drop counts, publish totals, eviction
// advisory delivery, and per-endpoint latency percentiles. Everything here
// is also exported through Prometheus; this endpoint exists for ad-hoc
// inspection without a metrics stack.
func (h *Handler) StreamStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	resp := statsResponse{
		Hub:    h.hub.Stats(),
		Uptime: time.Since(h.startTime).Seconds(),
	}

	if h.ingest != nil {
		resp.Ingest = h.ingest.Stats()
	}
	if h.notify != nil {
		stats := h.notify.Stats()
		resp.Notify = &stats
	}
	if h.perfMon != nil {
		resp.Endpoints = h.perfMon.GetStats()
	}

	rw.Success(resp)
}
