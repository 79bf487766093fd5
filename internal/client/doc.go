// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package client implements the consumer-side connection manager: a state
// machine that keeps one logical stream subscription alive across
// disconnects, reconnects with decorrelated-jitter backoff, resumes from
// the last delivered position, and reports everything it does on a single
// notification channel.
//
// # Key Components
//
//   - Manager: the lifecycle state machine and its session loop
//   - Event: one notification (state transition, data payload, or advisory)
//   - State: disconnected, connecting, connected, reconnecting, failed
//
// # Lifecycle
//
//	             Connect()                dial ok
//	DISCONNECTED ---------> CONNECTING -----------> CONNECTED
//	     ^                   |   ^                      |
//	     |        dial fail  |   | timer fires          | connection lost
//	     |                   v   |                      v
//	     +---- FAILED <--- RECONNECTING <---------------+
//	            budget       (backoff wait)
//	            spent
//
// Retryable endings (network loss, heartbeat timeout, server shutdown,
// stream timeout) charge the retry budget and schedule a redial. Endings
// the caller has to act on (expired credentials, protocol violations, a
// clean stream completion) stop the loop in the disconnected state instead;
// Connect is valid again once the caller has dealt with the cause. The
// failed state is reached only by exhausting MaxAttempts consecutive
// failures and is left the same way, by calling Connect.
//
// # Cursor and Gap Handling
//
// The manager tracks the highest delivered sequence number and offers it on
// every redial, so a resumed session replays exactly what was missed. The
// cursor advances only after the payload is on the notification channel,
// trading duplicate delivery for never losing an event silently.
//
// When the stream jumps forward (the server dropped events under pressure)
// or the server rejects the resume position (cursor expired or unknown),
// replaying the hole is impossible. The manager then resyncs: the next dial
// carries no cursor, delivery restarts from live, and the caller is told
// through gap-detected and resync advisories so it can rebuild any derived
// state.
//
// # Liveness
//
// WebSocket sessions probe actively with ping/pong and measure RTT. SSE
// sessions are one-directional, so the manager instead watches for the
// server's heartbeat records and declares the connection dead after twice
// the heartbeat interval of silence. Either way a dead connection is closed
// locally, which unblocks the read loop and feeds the normal reconnect
// path.
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use. Notifications are
// produced by one goroutine and consumed from one channel, so their order
// is the processing order.
//
// # See Also
//
//   - internal/transport: the SSE and WebSocket dialers this package drives
//   - internal/backoff: the reconnect delay policy
//   - internal/heartbeat: the liveness monitors
//   - internal/record: the wire protocol being consumed
package client
