// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package record

import (
	"fmt"
	"strconv"
)

// Cursor is a consumer's resume position: the sequence number of the last
// event it fully processed. Sequence numbering starts at 1, so the zero
// Cursor (Valid=false) is the distinct "no history" sentinel used by
// consumers connecting for the first time or forcing a full resync.
type Cursor struct {
	Seq   uint64
	Valid bool
}

// CursorAt returns a valid cursor positioned after seq.
func CursorAt(seq uint64) Cursor {
	return Cursor{Seq: seq, Valid: true}
}

// NoCursor returns the "no history" sentinel.
func NoCursor() Cursor {
	return Cursor{}
}

// String renders the cursor for the Last-Event-ID header. The sentinel
// renders as the empty string, which SSE clients omit entirely.
func (c Cursor) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatUint(c.Seq, 10)
}

// ParseCursor parses a Last-Event-ID header or cursor query parameter.
// The empty string parses to the "no history" sentinel.
func ParseCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("parse cursor %q: %w", s, err)
	}
	return Cursor{Seq: seq, Valid: true}, nil
}
