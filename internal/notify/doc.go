// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package notify delivers eviction advisories to an operator webhook.
//
// When the retained-event buffer evicts events that no consumer ever read,
// data has been lost silently from the consumers' point of view. The ingest
// pipeline publishes an advisory for each such eviction on its internal
// bus; this package subscribes to that feed and POSTs each advisory to the
// configured webhook so operators learn about the loss.
//
// Delivery Model:
//
//	events.evicted subscription -> bounded queue (drop oldest) -> worker
//	    -> rate limiter -> circuit breaker -> HTTP POST
//
// Every stage is shaped so a failing or slow webhook endpoint cannot reach
// back into the delivery core: the subscription is acked immediately, the
// queue drops its oldest advisory instead of blocking, the rate limiter
// caps outbound pressure, and the circuit breaker stops hammering an
// endpoint that keeps failing. Advisories are best effort; the authoritative
// eviction counters live in the buffer's Prometheus metrics.
//
// Key Components:
//   - Service: subscription, queue, and delivery worker lifecycle
//   - webhookPayload: the JSON body POSTed to the operator endpoint
//
// See Also:
//   - internal/ingest for the advisory producer and wire shape
package notify
