// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/record"
)

// sseWriter frames records as SSE events on the response stream. Every
// record is written under a deadline and flushed immediately, so a client
// never waits on server-side buffering and a stalled client surfaces as a
// deadline error instead of a wedged writer goroutine.
type sseWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
}

func newSSEWriter(w http.ResponseWriter, timeout time.Duration) *sseWriter {
	return &sseWriter{
		w:       w,
		rc:      http.NewResponseController(w),
		timeout: timeout,
	}
}

// WriteRecord implements hub.RecordWriter.
func (sw *sseWriter) WriteRecord(r *record.Record) error {
	// Deadlines are unsupported on some writers, such as test recorders;
	// skipping them there still exercises the framing path.
	if err := sw.rc.SetWriteDeadline(time.Now().Add(sw.timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := record.WriteSSE(sw.w, r); err != nil {
		return err
	}
	if err := sw.rc.Flush(); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}
	return nil
}

// StreamSSE serves GET /api/v1/stream as a Server-Sent Events stream.
//
// The session resumes from the Last-Event-ID header or cursor query
// parameter and honors the buffer and overflow query parameters for
// per-session flow control. Admission errors are regular HTTP responses;
// once the event stream has started, all further conditions arrive in-band
// as protocol records, ending with a stream-end record.
func (h *Handler) StreamSSE(w http.ResponseWriter, r *http.Request) {
	sw := newSSEWriter(w, h.cfg.Stream.WriteTimeout)
	c, ok := h.registerConsumer(w, r, "sse", sw)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	// Proxies that buffer responses would defeat per-record delivery.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := sw.rc.Flush(); err != nil {
		// The transport died before the stream committed; the consumer
		// never ran, so withdraw it directly.
		h.hub.Deregister(c)
		logging.Debug().
			Err(err).
			Str("component", "api").
			Str("stream_id", c.StreamID()).
			Msg("sse stream aborted before first event")
		return
	}

	stopExpiry := scheduleExpiry(r.Context(), c)
	defer stopExpiry()

	logging.Debug().
		Str("component", "api").
		Str("stream_id", c.StreamID()).
		Str("request_id", logging.RequestIDFromContext(r.Context())).
		Msg("sse stream opened")

	// The request context ends when the client disconnects, which is the
	// normal way an SSE session closes.
	if err := c.Run(r.Context()); err != nil {
		logging.Debug().
			Err(err).
			Str("component", "api").
			Str("stream_id", c.StreamID()).
			Msg("sse session ended with transport error")
	}
}
