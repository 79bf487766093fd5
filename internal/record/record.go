// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package record defines the wire-level stream record protocol shared by the
// server delivery path and the client connection manager.
//
// A stream is a sequence of records flowing server-to-client over a single
// connection epoch. Within one epoch data records carry strictly increasing
// sequence numbers, a stream-end record (when present) is the final record,
// and a fatal error record is immediately followed by stream-end.
package record

import (
	"time"

	"github.com/goccy/go-json"
)

// SchemaVersion is the current record schema version.
// Increment this when making breaking changes to Record.
const SchemaVersion = 1

// Kind discriminates the record types that can appear on a stream.
type Kind string

const (
	// KindMetadata is sent once at stream start: accepted resume position
	// and replay backlog estimate.
	KindMetadata Kind = "metadata"
	// KindData carries one application event.
	KindData Kind = "data"
	// KindProgress is an advisory replay progress marker.
	KindProgress Kind = "progress"
	// KindError reports a stream error; fatal errors terminate the epoch.
	KindError Kind = "error"
	// KindHeartbeat is a liveness signal emitted on idle connections.
	KindHeartbeat Kind = "heartbeat"
	// KindStreamEnd closes a connection epoch with a reason.
	KindStreamEnd Kind = "stream-end"
)

// EndReason explains why a stream-end record was emitted.
type EndReason string

const (
	// EndCompleted indicates the stream finished normally.
	EndCompleted EndReason = "completed"
	// EndCancelled indicates the stream was cancelled by request.
	EndCancelled EndReason = "cancelled"
	// EndError indicates the stream terminated after a fatal error record.
	EndError EndReason = "error"
	// EndTimeout indicates the server timed the connection out.
	EndTimeout EndReason = "timeout"
	// EndServerShutdown indicates the server is restarting; clients should
	// reconnect immediately.
	EndServerShutdown EndReason = "server-shutdown"
)

// Machine-readable error codes carried by error records.
const (
	// CodeOverload signals transient server overload; retry_after_ms, when
	// set, overrides the client's next backoff delay.
	CodeOverload = "server-overload"
	// CodeAuthExpired signals rejected or expired credentials.
	CodeAuthExpired = "auth-expired"
	// CodeCursorExpired signals a resume cursor older than buffer retention.
	CodeCursorExpired = "cursor-expired"
	// CodeUnknownCursor signals a resume cursor ahead of anything the server
	// ever assigned, typically after a server restart.
	CodeUnknownCursor = "unknown-cursor"
	// CodeEventsDropped is an advisory that the server dropped events for
	// this consumer under its overflow policy.
	CodeEventsDropped = "events-dropped"
	// CodeOverflow signals a consumer terminated by the error overflow
	// policy.
	CodeOverflow = "consumer-overflow"
	// CodeProtocol signals a protocol violation observed by either side.
	CodeProtocol = "protocol-violation"
)

// Record is the single wire unit of the stream protocol. Kind selects which
// of the optional field groups is meaningful; unrelated fields stay zero and
// are omitted on the wire.
type Record struct {
	// Schema version for forward/backward compatibility
	SchemaVersion int `json:"schema_version,omitempty"`

	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Data records
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata records
	StreamID string `json:"stream_id,omitempty"` // server-assigned consumer identity
	StartSeq uint64 `json:"start_seq,omitempty"` // resume position the server accepted
	Backlog  uint64 `json:"backlog,omitempty"`   // events pending replay at connect

	// Progress records
	Processed uint64 `json:"processed,omitempty"`
	Total     uint64 `json:"total,omitempty"`

	// Error records
	Code         string `json:"code,omitempty"`
	Message      string `json:"message,omitempty"`
	Fatal        bool   `json:"fatal,omitempty"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"` // backoff override hint
	Dropped      uint64 `json:"dropped,omitempty"`        // events-dropped advisory count

	// Stream-end records
	Reason EndReason `json:"reason,omitempty"`
}

// NewData creates a data record for one buffered event.
func NewData(seq uint64, payload json.RawMessage) *Record {
	return &Record{
		SchemaVersion: SchemaVersion,
		Kind:          KindData,
		Timestamp:     time.Now().UTC(),
		Seq:           seq,
		Payload:       payload,
	}
}

// NewMetadata creates the stream-start metadata record.
func NewMetadata(streamID string, startSeq, backlog uint64) *Record {
	return &Record{
		SchemaVersion: SchemaVersion,
		Kind:          KindMetadata,
		Timestamp:     time.Now().UTC(),
		StreamID:      streamID,
		StartSeq:      startSeq,
		Backlog:       backlog,
	}
}

// NewProgress creates an advisory replay progress record.
func NewProgress(processed, total uint64) *Record {
	return &Record{
		SchemaVersion: SchemaVersion,
		Kind:          KindProgress,
		Timestamp:     time.Now().UTC(),
		Processed:     processed,
		Total:         total,
	}
}

// NewError creates an error record. Fatal errors must be followed by a
// stream-end record with reason EndError.
func NewError(code, message string, fatal bool) *Record {
	return &Record{
		SchemaVersion: SchemaVersion,
		Kind:          KindError,
		Timestamp:     time.Now().UTC(),
		Code:          code,
		Message:       message,
		Fatal:         fatal,
	}
}

// NewHeartbeat creates a liveness record.
func NewHeartbeat() *Record {
	return &Record{
		SchemaVersion: SchemaVersion,
		Kind:          KindHeartbeat,
		Timestamp:     time.Now().UTC(),
	}
}

// NewStreamEnd creates the final record of a connection epoch.
func NewStreamEnd(reason EndReason) *Record {
	return &Record{
		SchemaVersion: SchemaVersion,
		Kind:          KindStreamEnd,
		Timestamp:     time.Now().UTC(),
		Reason:        reason,
	}
}

// RetryAfter returns the overload retry hint, or zero when absent.
func (r *Record) RetryAfter() time.Duration {
	if r.RetryAfterMS <= 0 {
		return 0
	}
	return time.Duration(r.RetryAfterMS) * time.Millisecond
}

// IsFatalError reports whether this record is an error record that
// terminates the epoch.
func (r *Record) IsFatalError() bool {
	return r.Kind == KindError && r.Fatal
}

// Validate checks kind-specific required fields and returns an error if
// validation fails.
func (r *Record) Validate() error {
	switch r.Kind {
	case KindData:
		if r.Seq == 0 {
			return &ValidationError{Field: "seq", Message: "required"}
		}
		if len(r.Payload) == 0 {
			return &ValidationError{Field: "payload", Message: "required"}
		}
	case KindError:
		if r.Code == "" {
			return &ValidationError{Field: "code", Message: "required"}
		}
	case KindStreamEnd:
		switch r.Reason {
		case EndCompleted, EndCancelled, EndError, EndTimeout, EndServerShutdown:
		default:
			return &ValidationError{Field: "reason", Message: "unknown value"}
		}
	case KindMetadata, KindProgress, KindHeartbeat:
		// No required fields beyond the kind itself.
	default:
		return &ValidationError{Field: "kind", Message: "unknown value"}
	}
	return nil
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
