// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// processStart anchors the uptime gauge.
var processStart = time.Now()

// Prometheus instrumentation for the delivery core:
// - Event buffer occupancy and eviction
// - Per-consumer delivery, drops, and overflow terminations
// - Heartbeat liveness
// - Ingest throughput
// - API endpoint latency and throughput

var (
	// Event Buffer Metrics
	BufferEventsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffer_events_appended_total",
			Help: "Total number of events appended to the replay buffer",
		},
	)

	BufferEventsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buffer_events_evicted_total",
			Help: "Total number of events evicted from the replay buffer",
		},
		[]string{"cause"}, // "capacity", "age"
	)

	BufferEventsEvictedUnread = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffer_events_evicted_unread_total",
			Help: "Total number of events evicted before any consumer read them",
		},
	)

	BufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buffer_depth",
			Help: "Current number of events retained in the replay buffer",
		},
	)

	BufferMinSeq = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buffer_min_seq",
			Help: "Oldest sequence number retained in the replay buffer",
		},
	)

	BufferMaxSeq = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "buffer_max_seq",
			Help: "Highest sequence number assigned by the replay buffer",
		},
	)

	BufferReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buffer_reads_total",
			Help: "Total number of cursor reads against the replay buffer",
		},
		[]string{"status"}, // "ok", "expired", "unknown"
	)

	// Delivery Metrics
	ConsumersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "consumers_active",
			Help: "Current number of connected stream consumers",
		},
	)

	ConsumersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumers_total",
			Help: "Total number of consumer connections by transport",
		},
		[]string{"transport"}, // "sse", "websocket"
	)

	ConsumersTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumers_terminated_total",
			Help: "Total number of consumer terminations",
		},
		[]string{"reason"}, // "completed", "cancelled", "error", "timeout", "server-shutdown", "overflow"
	)

	RecordsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_sent_total",
			Help: "Total number of stream records written to consumers",
		},
		[]string{"kind"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_events_dropped_total",
			Help: "Total number of events dropped by per-consumer overflow policies",
		},
		[]string{"policy"}, // "drop-oldest", "drop-latest"
	)

	ReplayBacklog = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "replay_backlog_events",
			Help:    "Number of events replayed when a consumer resumes",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	// Heartbeat Metrics
	HeartbeatRTT = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "heartbeat_rtt_seconds",
			Help:    "Round-trip time of ping/pong heartbeat probes",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	HeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeat_timeouts_total",
			Help: "Total number of connections declared dead by heartbeat timeout",
		},
	)

	// Client Connection Manager Metrics
	ClientReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_reconnects_total",
			Help: "Total number of reconnect attempts scheduled by the connection manager",
		},
		[]string{"cause"},
	)

	ClientSessions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "client_sessions_established_total",
			Help: "Total number of sessions that reached the established state",
		},
	)

	// Ingest Metrics
	IngestPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_published_total",
			Help: "Total number of events accepted through the ingest pipeline",
		},
		[]string{"status"}, // "ok", "error"
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Duration of publish operations through the ingest pipeline",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Eviction Notifier Metrics
	NotifyDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_deliveries_total",
			Help: "Total number of eviction webhook deliveries",
		},
		[]string{"result"}, // "ok", "rejected", "error"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordEventAppended records one event entering the replay buffer.
func RecordEventAppended() {
	BufferEventsAppended.Inc()
}

// RecordEventsEvicted records buffer evictions by cause, plus the subset no
// consumer ever read.
func RecordEventsEvicted(cause string, count, unread int) {
	if count <= 0 {
		return
	}
	BufferEventsEvicted.WithLabelValues(cause).Add(float64(count))
	if unread > 0 {
		BufferEventsEvictedUnread.Add(float64(unread))
	}
}

// UpdateBufferGauges publishes the buffer occupancy snapshot.
func UpdateBufferGauges(depth int, minSeq, maxSeq uint64) {
	BufferDepth.Set(float64(depth))
	BufferMinSeq.Set(float64(minSeq))
	BufferMaxSeq.Set(float64(maxSeq))
}

// RecordBufferRead records the status of one cursor read.
func RecordBufferRead(status string) {
	BufferReads.WithLabelValues(status).Inc()
}

// RecordConsumerConnected records a new consumer by transport.
func RecordConsumerConnected(transport string) {
	ConsumersActive.Inc()
	ConsumersTotal.WithLabelValues(transport).Inc()
}

// RecordConsumerDisconnected records a consumer leaving with its terminal
// reason.
func RecordConsumerDisconnected(reason string) {
	ConsumersActive.Dec()
	ConsumersTerminated.WithLabelValues(reason).Inc()
}

// RecordRecordSent records one stream record written to a consumer.
func RecordRecordSent(kind string) {
	RecordsSent.WithLabelValues(kind).Inc()
}

// RecordDrop records events discarded by a consumer overflow policy.
func RecordDrop(policy string, count int) {
	if count <= 0 {
		return
	}
	EventsDropped.WithLabelValues(policy).Add(float64(count))
}

// RecordReplayBacklog records the replay size at consumer resume.
func RecordReplayBacklog(events int) {
	ReplayBacklog.Observe(float64(events))
}

// ObserveHeartbeatRTT records one ping/pong round trip.
func ObserveHeartbeatRTT(rtt time.Duration) {
	HeartbeatRTT.Observe(rtt.Seconds())
}

// RecordHeartbeatTimeout records a connection declared dead by its
// heartbeat monitor.
func RecordHeartbeatTimeout() {
	HeartbeatTimeouts.Inc()
}

// RecordReconnect records one scheduled reconnect attempt and what caused
// the preceding session to fail.
func RecordReconnect(cause string) {
	ClientReconnects.WithLabelValues(cause).Inc()
}

// RecordSessionEstablished records a session reaching the established
// state (metadata received).
func RecordSessionEstablished() {
	ClientSessions.Inc()
}

// RecordPublish records one publish through the ingest pipeline.
func RecordPublish(duration time.Duration, err error) {
	IngestDuration.Observe(duration.Seconds())
	if err != nil {
		IngestPublished.WithLabelValues("error").Inc()
		return
	}
	IngestPublished.WithLabelValues("ok").Inc()
}

// RecordNotifyDelivery records an eviction webhook delivery outcome.
func RecordNotifyDelivery(result string) {
	NotifyDeliveries.WithLabelValues(result).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetAppInfo publishes the running version and Go runtime. Call once at
// startup.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// UpdateUptime refreshes the uptime gauge. The request middleware calls
// this on every request, so /metrics scrapes always observe a current
// value.
func UpdateUptime() {
	AppUptime.Set(time.Since(processStart).Seconds())
}
