// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the delivery core using the Prometheus client
library, exposing metrics for monitoring throughput, backpressure, and
system health.

# Overview

The package provides metrics for:
  - Replay buffer occupancy, appends, and evictions
  - Per-consumer delivery, drops, and overflow terminations
  - Heartbeat round trips and timeouts
  - Ingest pipeline throughput
  - Eviction webhook deliveries and circuit breaker state
  - HTTP request latency and throughput

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:3857/metrics

# Available Metrics

Buffer Metrics:
  - buffer_events_appended_total: Events appended (counter)
  - buffer_events_evicted_total: Events evicted (counter)
    Labels: cause (capacity, age)
  - buffer_events_evicted_unread_total: Events evicted before any read (counter)
  - buffer_depth: Retained events (gauge)
  - buffer_min_seq / buffer_max_seq: Retention window bounds (gauges)
  - buffer_reads_total: Cursor reads (counter)
    Labels: status (ok, expired, unknown)

Delivery Metrics:
  - consumers_active: Connected consumers (gauge)
  - consumers_total: Consumer connections by transport (counter)
    Labels: transport (sse, websocket)
  - consumers_terminated_total: Terminations by reason (counter)
  - records_sent_total: Records written (counter)
    Labels: kind
  - consumer_events_dropped_total: Overflow drops (counter)
    Labels: policy (drop-oldest, drop-latest)
  - replay_backlog_events: Replay size at resume (histogram)

Heartbeat Metrics:
  - heartbeat_rtt_seconds: Ping/pong round trips (histogram)
  - heartbeat_timeouts_total: Dead connections (counter)

Ingest Metrics:
  - ingest_published_total: Publishes by status (counter)
  - ingest_duration_seconds: Publish latency (histogram)

HTTP Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
  - api_active_requests: Active requests (gauge)
  - api_rate_limit_hits_total: Rate limit rejections (counter)
    Labels: endpoint

# Usage

Metrics are package-level and registered automatically via promauto:

	metrics.RecordEventAppended()
	metrics.RecordDrop("drop-oldest", 3)
	metrics.ObserveHeartbeatRTT(rtt)

Helpers never fail and are safe from any goroutine.
*/
package metrics
