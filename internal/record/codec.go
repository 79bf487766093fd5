// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package record

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Marshal converts a record to its JSON wire form. This is the frame body
// for both transports: the data field of an SSE event and the full text
// frame on WebSocket.
func Marshal(r *Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validate record: %w", err)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	return data, nil
}

// Unmarshal converts JSON wire bytes back to a record and validates it.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validate record: %w", err)
	}

	return &r, nil
}
