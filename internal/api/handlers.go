// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/streamcast/internal/auth"
	"github.com/tomtom215/streamcast/internal/config"
	"github.com/tomtom215/streamcast/internal/hub"
	"github.com/tomtom215/streamcast/internal/ingest"
	"github.com/tomtom215/streamcast/internal/metrics"
	"github.com/tomtom215/streamcast/internal/middleware"
	"github.com/tomtom215/streamcast/internal/notify"
	"github.com/tomtom215/streamcast/internal/validation"
)

// Reconnect hints for 503 rejections. A draining server is usually replaced
// within seconds behind a load balancer; a full consumer table rarely frees
// up that fast.
const (
	retryAfterDraining = 5 * time.Second
	retryAfterFull     = 30 * time.Second
)

// Handler holds the dependencies the HTTP handlers operate on.
type Handler struct {
	cfg       *config.Config
	hub       *hub.Hub
	ingest    *ingest.Service
	notify    *notify.Service
	perfMon   *middleware.PerformanceMonitor
	startTime time.Time
}

// NewHandler creates a handler with the given dependencies. notify and
// perfMon may be nil when the corresponding feature is disabled; the
// handlers that would use them degrade to omitting their sections.
func NewHandler(cfg *config.Config, hb *hub.Hub, ing *ingest.Service, ntf *notify.Service, perfMon *middleware.PerformanceMonitor) *Handler {
	metrics.SetAppInfo(serviceVersion)
	return &Handler{
		cfg:       cfg,
		hub:       hb,
		ingest:    ing,
		notify:    ntf,
		perfMon:   perfMon,
		startTime: time.Now(),
	}
}

// registerConsumer validates the session parameters and admits the session,
// or writes the appropriate rejection and returns false. Rejections happen
// before any stream bytes are written, so clients get a regular HTTP error
// with a Retry-After hint their reconnect loop honors.
func (h *Handler) registerConsumer(w http.ResponseWriter, r *http.Request, transport string, out hub.RecordWriter) (*hub.Consumer, bool) {
	rw := NewResponseWriter(w, r)

	cur, opts, err := sessionParams(r)
	if err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			apiErr := verr.ToAPIError()
			rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeBadRequest, apiErr.Message, apiErr.Details)
		} else {
			rw.BadRequest(err.Error())
		}
		return nil, false
	}

	c, err := h.hub.Register(transport, cur, out, opts)
	switch {
	case errors.Is(err, hub.ErrShuttingDown):
		rw.ServiceUnavailableRetry("server is shutting down; reconnect to resume from your cursor", retryAfterDraining)
		return nil, false
	case errors.Is(err, hub.ErrHubFull):
		rw.ServiceUnavailableRetry("consumer limit reached; retry later", retryAfterFull)
		return nil, false
	case err != nil:
		rw.InternalError("failed to open stream session")
		return nil, false
	}
	return c, true
}

// scheduleExpiry arranges for the session to be terminated in-band when the
// bearer token that opened it runs out. The returned stop function releases
// the timer; sessions that end first must call it.
//
// Requests admitted by a disabled gate carry claims without an expiry, so
// their sessions never time out this way.
func scheduleExpiry(ctx context.Context, c *hub.Consumer) func() {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok || claims.ExpiresAt == nil {
		return func() {}
	}
	timer := time.AfterFunc(time.Until(claims.ExpiresAt.Time), c.Expire)
	return func() { timer.Stop() }
}

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
// This includes newlines, carriage returns, tabs, and other control characters that could
// allow attackers to forge log entries or corrupt log files.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		// Replace control characters (0x00-0x1F and 0x7F) with a safe representation
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
