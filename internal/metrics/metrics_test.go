// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEventsEvicted(t *testing.T) {
	before := testutil.ToFloat64(BufferEventsEvictedUnread)

	RecordEventsEvicted("capacity", 5, 2)
	RecordEventsEvicted("age", 3, 0)
	RecordEventsEvicted("capacity", 0, 0) // no-op

	after := testutil.ToFloat64(BufferEventsEvictedUnread)
	if after-before != 2 {
		t.Errorf("Expected unread delta 2, got %v", after-before)
	}

	if got := testutil.ToFloat64(BufferEventsEvicted.WithLabelValues("capacity")); got < 5 {
		t.Errorf("Expected capacity evictions >= 5, got %v", got)
	}
}

func TestUpdateBufferGauges(t *testing.T) {
	UpdateBufferGauges(17, 100, 116)

	if got := testutil.ToFloat64(BufferDepth); got != 17 {
		t.Errorf("Expected depth 17, got %v", got)
	}
	if got := testutil.ToFloat64(BufferMinSeq); got != 100 {
		t.Errorf("Expected min seq 100, got %v", got)
	}
	if got := testutil.ToFloat64(BufferMaxSeq); got != 116 {
		t.Errorf("Expected max seq 116, got %v", got)
	}
}

func TestConsumerLifecycleCounters(t *testing.T) {
	base := testutil.ToFloat64(ConsumersActive)

	RecordConsumerConnected("sse")
	RecordConsumerConnected("websocket")
	if got := testutil.ToFloat64(ConsumersActive); got != base+2 {
		t.Errorf("Expected %v active consumers, got %v", base+2, got)
	}

	RecordConsumerDisconnected("completed")
	RecordConsumerDisconnected("overflow")
	if got := testutil.ToFloat64(ConsumersActive); got != base {
		t.Errorf("Expected %v active consumers after disconnects, got %v", base, got)
	}
}

func TestRecordDrop(t *testing.T) {
	before := testutil.ToFloat64(EventsDropped.WithLabelValues("drop-oldest"))

	RecordDrop("drop-oldest", 3)
	RecordDrop("drop-oldest", 0)
	RecordDrop("drop-oldest", -1)

	after := testutil.ToFloat64(EventsDropped.WithLabelValues("drop-oldest"))
	if after-before != 3 {
		t.Errorf("Expected drop delta 3, got %v", after-before)
	}
}

func TestRecordPublish(t *testing.T) {
	okBefore := testutil.ToFloat64(IngestPublished.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(IngestPublished.WithLabelValues("error"))

	RecordPublish(5*time.Millisecond, nil)
	RecordPublish(time.Millisecond, errors.New("buffer unavailable"))

	if got := testutil.ToFloat64(IngestPublished.WithLabelValues("ok")); got-okBefore != 1 {
		t.Errorf("Expected one ok publish, got delta %v", got-okBefore)
	}
	if got := testutil.ToFloat64(IngestPublished.WithLabelValues("error")); got-errBefore != 1 {
		t.Errorf("Expected one error publish, got delta %v", got-errBefore)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	// Should not panic for any label combination.
	RecordAPIRequest("GET", "/api/v1/stream", "200", 25*time.Millisecond)
	RecordAPIRequest("POST", "/api/v1/publish", "413", time.Millisecond)
	RecordAPIRequest("GET", "/api/v1/health", "503", 100*time.Microsecond)
}

func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)

	if got := testutil.ToFloat64(APIActiveRequests); got != base+1 {
		t.Errorf("Expected %v active requests, got %v", base+1, got)
	}
	TrackActiveRequest(false)
}

func TestHeartbeatMetrics(t *testing.T) {
	before := testutil.ToFloat64(HeartbeatTimeouts)

	ObserveHeartbeatRTT(12 * time.Millisecond)
	RecordHeartbeatTimeout()

	if got := testutil.ToFloat64(HeartbeatTimeouts); got-before != 1 {
		t.Errorf("Expected one heartbeat timeout, got delta %v", got-before)
	}
}

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		BufferEventsAppended,
		BufferEventsEvicted,
		BufferEventsEvictedUnread,
		BufferDepth,
		BufferMinSeq,
		BufferMaxSeq,
		BufferReads,
		ConsumersActive,
		ConsumersTotal,
		ConsumersTerminated,
		RecordsSent,
		EventsDropped,
		ReplayBacklog,
		HeartbeatRTT,
		HeartbeatTimeouts,
		IngestPublished,
		IngestDuration,
		NotifyDeliveries,
		CircuitBreakerState,
		CircuitBreakerRequests,
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveRequests,
		APIRateLimitHits,
		AppInfo,
		AppUptime,
	}

	for _, m := range collectors {
		ch := make(chan *prometheus.Desc, 10)
		m.Describe(ch)
		close(ch)

		count := 0
		for range ch {
			count++
		}
		if count == 0 {
			t.Errorf("Metric has no descriptors")
		}
	}
}

func TestMetricGathering(t *testing.T) {
	RecordEventAppended()
	RecordRecordSent("data")
	RecordBufferRead("ok")
	RecordNotifyDelivery("ok")
	RecordReplayBacklog(42)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}

func BenchmarkRecordEventAppended(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordEventAppended()
	}
}

func BenchmarkRecordRecordSent(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordRecordSent("data")
	}
}
