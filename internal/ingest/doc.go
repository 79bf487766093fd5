// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package ingest is the producer-facing entry point of the delivery core.
// Published events flow through a Watermill pipeline before landing in the
// retained-event buffer, which assigns each one its sequence number.
//
// Pipeline:
//
//	Publish(payload)
//	    |
//	    v
//	events.published topic (in-process Go channel Pub/Sub)
//	    |
//	    v
//	router: poison queue -> retry -> recoverer -> buffer-append handler
//	    |                    |
//	    v                    v
//	eventbuffer.Append   events.poison topic -> poison drain (logged, counted)
//
// Publish blocks until the append handler has assigned a sequence number,
// correlating the result back by message ID, so producers get the same
// publish(payload) -> sequenceID contract they would from a direct append
// while the pipeline keeps panic recovery, retry with backoff, and poison
// routing between them and the buffer.
//
// The same bus carries eviction advisories on the events.evicted topic.
// The buffer's unread-eviction hook feeds AnnounceEviction, which never
// blocks the appending goroutine; the notify service subscribes through
// Subscriber() and forwards advisories to the operator webhook.
//
// Key Components:
//   - Service: pipeline lifecycle plus the Publish API
//   - EvictionAdvisory: JSON shape of the events.evicted payload
//   - watermillLogger: zerolog adapter for Watermill's logging interface
//
// See Also:
//   - internal/eventbuffer for sequence assignment and retention
//   - internal/notify for the advisory consumer
package ingest
