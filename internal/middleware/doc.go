// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression,
performance monitoring, request ID tracking, and Prometheus metrics
integration. These components work alongside the authentication gate to
form the complete middleware stack for HTTP request processing, and all
of them are streaming-aware: a stack built for a streaming server must
never buffer, compress, or mis-measure a connection that is about to
turn into an event stream or a WebSocket.

Key Components:

  - Compression: Gzip compression for JSON responses
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

All middleware uses the standard func(http.Handler) http.Handler shape
so it composes with chi:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Compression)
	r.Use(perfMon.Middleware)

Streaming Awareness:

The streaming endpoints pass through every layer untouched where it
matters:

  - Compression skips WebSocket upgrades and event-stream requests, so
    records are never held back in a gzip buffer.
  - PrometheusMetrics forwards Flush and Hijack to the underlying
    writer, so per-record flushing and connection hijacking still work
    through the instrumented chain.
  - PerformanceMonitor excludes streaming connections from its latency
    window, since an hours-long stream is not a request latency.

Usage Example - Request ID:

	r.Use(middleware.RequestID)

	// Access request ID in a handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    log.Printf("[%s] Processing request", requestID)
	}

Usage Example - Performance Monitoring:

	perfMon := middleware.NewPerformanceMonitor(1000)
	r.Use(perfMon.Middleware)

	// Get performance statistics
	stats := perfMon.GetStats()
	fmt.Printf("p50: %dms, p95: %dms, p99: %dms\n",
	    stats[0].P50Duration, stats[0].P95Duration, stats[0].P99Duration)

Performance Characteristics:

  - Compression: 70-90% size reduction for JSON payloads
  - Compression overhead: ~1-2ms for typical responses
  - Metrics overhead: <0.1ms per request
  - Request ID overhead: <0.01ms (UUID generation)
  - Performance monitor: sliding window of recent request samples

Thread Safety:

All middleware components are thread-safe:
  - Compression uses pooled per-request gzip writers
  - Performance monitor uses sync.RWMutex
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/auth: Authentication gate and scope checks
  - internal/api: HTTP handlers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
