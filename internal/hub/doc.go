// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

/*
Package hub fans the shared event buffer out to attached consumers with
per-consumer flow control.

Each consumer session pairs a feeder goroutine, which follows the buffer
from the session's cursor, with a writer goroutine, which owns the
transport. A bounded flow-control window sits between them, so a stalled
client absorbs pressure locally instead of blocking producers or peers.

Key Components:

  - Hub: registry of attached consumers with a shutdown broadcast
  - Consumer: one session; feeder plus writer around a window
  - Window: bounded queue applying one of four overflow policies
  - RecordWriter: transport abstraction implemented by SSE and WebSocket

Architecture:

	            ┌────────────┐
	 producers →│ EventBuffer│
	            └─────┬──────┘
	                  │ ReadAfter / AppendNotify
	      ┌───────────┼───────────┐
	      │           │           │
	   feeder      feeder      feeder     (one per consumer)
	      │           │           │
	   window      window      window     (bounded, per policy)
	      │           │           │
	   writer      writer      writer     (one per transport conn)

Session Flow:

 1. A handler registers the consumer with its resume cursor.
 2. The feeder snapshots the backlog and queues a metadata record first,
    then the replay, then tails live appends.
 3. The writer drains the window, emitting a heartbeat record whenever the
    connection has been idle for the configured interval.
 4. Terminal conditions (cursor expiry, overflow under the error policy,
    server shutdown) deliver a final error record and a stream-end record,
    bypassing the window.

Overflow Policies:

  - buffer: the feeder blocks until the writer frees a slot
  - drop-oldest: the oldest queued data record is discarded
  - drop-latest: the incoming record is discarded
  - error: the session ends with a fatal overflow record

Both drop policies count discarded data records and deliver a single
events-dropped advisory once the window has space again, so clients learn
about the gap without the advisory itself being droppable forever.

Thread Safety:

The hub registry uses a read-write mutex; windows use a mutex with
close-and-replace signal channels; consumer ids come from an atomic
counter. The feeder is the only enqueuer and the writer the only dequeuer
of any given window.

See Also:

  - internal/eventbuffer: retention and cursor semantics
  - internal/record: the wire records the hub emits
  - internal/api: HTTP handlers that register consumers
*/
package hub
