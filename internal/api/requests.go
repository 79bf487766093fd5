// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/tomtom215/streamcast/internal/hub"
	"github.com/tomtom215/streamcast/internal/record"
	"github.com/tomtom215/streamcast/internal/validation"
)

// streamQuery is the validatable form of the client-tunable stream session
// parameters. Cursor holds whichever of the Last-Event-ID header and the
// cursor query parameter was sent: the header wins because browsers set it
// automatically on EventSource reconnects, while the query form serves
// WebSocket clients before the upgrade and manual testing with curl.
type streamQuery struct {
	Cursor   string `validate:"omitempty,cursor"`
	Buffer   string `validate:"omitempty,numeric"`
	Overflow string `validate:"omitempty,oneof=buffer drop-oldest drop-latest error"`
}

// streamQueryFrom collects the raw session parameters from one stream
// request. Absent parameters stay empty and keep the server defaults.
func streamQueryFrom(r *http.Request) streamQuery {
	q := streamQuery{
		Cursor:   r.Header.Get("Last-Event-ID"),
		Buffer:   r.URL.Query().Get("buffer"),
		Overflow: r.URL.Query().Get("overflow"),
	}
	if q.Cursor == "" {
		q.Cursor = r.URL.Query().Get("cursor")
	}
	return q
}

// sessionParams validates the stream query and converts it into the domain
// types the hub consumes. Conversion still rejects what the tags cannot
// express: the numeric tag admits signs and values wider than int, and the
// window size must stay positive.
func sessionParams(r *http.Request) (record.Cursor, hub.SessionOptions, error) {
	q := streamQueryFrom(r)
	if verr := validation.ValidateStruct(&q); verr != nil {
		return record.NoCursor(), hub.SessionOptions{}, verr
	}

	cur, err := record.ParseCursor(q.Cursor)
	if err != nil {
		return record.NoCursor(), hub.SessionOptions{}, err
	}

	var opts hub.SessionOptions
	if q.Buffer != "" {
		size, err := strconv.Atoi(q.Buffer)
		if err != nil || size < 1 {
			return cur, opts, fmt.Errorf("buffer parameter %q must be a positive integer", q.Buffer)
		}
		opts.WindowSize = size
	}
	if q.Overflow != "" {
		policy, err := hub.ParseOverflowPolicy(q.Overflow)
		if err != nil {
			return cur, opts, err
		}
		opts.OverflowPolicy = policy
	}
	return cur, opts, nil
}
