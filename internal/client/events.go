// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package client

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// State identifies one phase of the connection lifecycle.
type State string

const (
	// StateDisconnected means no connection exists and no retry is pending.
	// The manager starts here and returns here after a clean stream end, an
	// explicit Disconnect, or a failure that must not be auto-retried.
	StateDisconnected State = "disconnected"

	// StateConnecting means a dial attempt is in flight.
	StateConnecting State = "connecting"

	// StateConnected means a session is established and records are flowing.
	StateConnected State = "connected"

	// StateReconnecting means the last attempt failed and a backoff timer is
	// running before the next dial.
	StateReconnecting State = "reconnecting"

	// StateFailed means the retry budget is exhausted. The manager holds no
	// resources in this state; Connect starts a fresh attempt series.
	StateFailed State = "failed"
)

// EventKind discriminates entries on the manager's notification channel.
type EventKind string

const (
	// EventTransition reports a state change.
	EventTransition EventKind = "transition"

	// EventData delivers the payload of one stream event.
	EventData EventKind = "data"

	// EventInfo reports an advisory the caller may act on but does not have
	// to: session establishment, replay progress, detected gaps, drop
	// notices relayed from the server.
	EventInfo EventKind = "info"
)

// Info codes used on EventInfo notifications that originate in the manager
// itself. Advisories relayed from server error records keep the server's
// code verbatim (for example "events-dropped" or "cursor-expired").
const (
	// InfoEstablished reports that stream metadata arrived and replay, if
	// any, is about to begin. Seq carries the accepted resume position.
	InfoEstablished = "session-established"

	// InfoResync reports that a session established from live after a known
	// gap. Events between the old cursor and Seq were missed for good, so
	// callers holding derived state should rebuild it.
	InfoResync = "resync"

	// InfoGapDetected reports a sequence jump inside a live session. Dropped
	// carries the number of missed sequence numbers.
	InfoGapDetected = "gap-detected"

	// InfoProgress relays a server replay progress record.
	InfoProgress = "progress"
)

// Event is one entry on the manager's notification channel. Kind selects
// which field group is populated; the rest are zero.
//
// The channel carries everything the manager has to say, in order: state
// transitions, delivered data payloads, and informational advisories. There
// are no callbacks, so callers cannot re-enter the manager from delivery
// context.
type Event struct {
	Kind EventKind

	// Transition fields.
	From    State
	To      State
	Cause   string        // short machine-readable reason, e.g. "heartbeat-timeout"
	Attempt int           // consecutive failed attempts so far
	Delay   time.Duration // backoff wait before the next dial, reconnecting only
	Err     error         // terminal failure detail, when one exists

	// Data fields.
	Seq     uint64
	Payload json.RawMessage

	// Info fields. Code is an Info constant or a server error-record code.
	Code      string
	Message   string
	Dropped   uint64
	Processed uint64
	Total     uint64
}

// String renders a compact single-line form for logs and CLIs.
func (e Event) String() string {
	switch e.Kind {
	case EventTransition:
		s := fmt.Sprintf("%s -> %s (%s)", e.From, e.To, e.Cause)
		if e.Delay > 0 {
			s += fmt.Sprintf(", retry in %s", e.Delay)
		}
		if e.Err != nil {
			s += ": " + e.Err.Error()
		}
		return s
	case EventData:
		return fmt.Sprintf("data seq=%d (%d bytes)", e.Seq, len(e.Payload))
	case EventInfo:
		if e.Code == InfoProgress {
			return fmt.Sprintf("progress %d/%d", e.Processed, e.Total)
		}
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.Code, e.Message)
		}
		return e.Code
	default:
		return string(e.Kind)
	}
}
