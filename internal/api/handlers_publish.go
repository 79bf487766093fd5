// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/streamcast/internal/ingest"
)

// publishResponse acknowledges an accepted event with the sequence number
// the buffer assigned to it. Publishers can hand the number to consumers as
// a cursor: a stream resumed from seq-1 delivers this event first.
type publishResponse struct {
	Seq uint64 `json:"seq"`
}

// Publish serves POST /api/v1/publish. The request body is the event
// payload itself, opaque JSON with no envelope. A success response means
// the event is in the buffer and visible to consumers.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	// The limit also guards the read itself: oversized bodies stop
	// transferring at the cap instead of streaming gigabytes to find out.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Stream.MaxPayloadBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			rw.PayloadTooLarge(fmt.Sprintf("payload exceeds the %d byte limit", maxErr.Limit))
			return
		}
		rw.BadRequest("failed to read request body")
		return
	}

	seq, err := h.ingest.Publish(r.Context(), json.RawMessage(payload))
	switch {
	case errors.Is(err, ingest.ErrEmptyPayload):
		rw.BadRequest("payload must not be empty")
	case errors.Is(err, ingest.ErrInvalidPayload):
		rw.BadRequest("payload must be well-formed JSON")
	case errors.Is(err, ingest.ErrNotRunning), errors.Is(err, ingest.ErrClosed):
		rw.ServiceUnavailableRetry("ingest pipeline is not accepting events", retryAfterDraining)
	case errors.Is(err, ingest.ErrPoisoned):
		rw.InternalError("event could not be appended and was parked for inspection")
	case err != nil:
		rw.InternalError("failed to publish event")
	default:
		rw.Success(publishResponse{Seq: seq})
	}
}
