// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package hub

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/streamcast/internal/eventbuffer"
	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/metrics"
	"github.com/tomtom215/streamcast/internal/record"
)

var (
	// ErrHubFull is returned by Register when the consumer limit is
	// reached. Handlers translate it into an overload error with a retry
	// hint.
	ErrHubFull = errors.New("hub: consumer limit reached")

	// ErrShuttingDown is returned by Register once shutdown has begun.
	ErrShuttingDown = errors.New("hub: shutting down")
)

// consumerIDCounter assigns registration ids.
//
// DETERMINISM: a process-wide atomic counter guarantees unique, strictly
// increasing ids without coordination, giving every snapshot of the
// consumer set a reproducible iteration order.
var consumerIDCounter atomic.Uint64

// Config bounds the hub's per-consumer resources.
type Config struct {
	// WindowSize is the per-consumer outbound queue capacity in records.
	WindowSize int

	// OverflowPolicy selects the behavior when a window fills.
	OverflowPolicy OverflowPolicy

	// HeartbeatInterval is how long a connection may sit idle before the
	// writer emits a heartbeat record.
	HeartbeatInterval time.Duration

	// MaxConsumers caps concurrent sessions. Zero means unlimited.
	MaxConsumers int
}

// DefaultConfig returns the hub defaults used when configuration is absent.
func DefaultConfig() Config {
	return Config{
		WindowSize:        256,
		OverflowPolicy:    OverflowBuffer,
		HeartbeatInterval: 15 * time.Second,
		MaxConsumers:      1024,
	}
}

// maxSessionWindow caps client-requested window sizes so a single consumer
// cannot reserve unbounded memory. Oversized requests are clamped rather
// than rejected; the effective size is announced through the stats endpoint.
const maxSessionWindow = 65536

// SessionOptions carries per-session overrides a client supplies at connect
// time, typically through query parameters. Zero values keep the hub
// configuration.
type SessionOptions struct {
	// WindowSize overrides the outbound queue capacity in records. Values
	// above maxSessionWindow are clamped.
	WindowSize int

	// OverflowPolicy overrides the behavior when the window fills. Callers
	// must pass a value obtained from ParseOverflowPolicy, or the empty
	// string to keep the configured default.
	OverflowPolicy OverflowPolicy
}

// windowFor resolves the effective window for one session from the hub
// defaults and the client's overrides.
func (h *Hub) windowFor(opts SessionOptions) *Window {
	size := h.cfg.WindowSize
	if opts.WindowSize > 0 {
		size = opts.WindowSize
	}
	if size > maxSessionWindow {
		size = maxSessionWindow
	}
	policy := h.cfg.OverflowPolicy
	if opts.OverflowPolicy != "" {
		policy = opts.OverflowPolicy
	}
	return NewWindow(size, policy)
}

// Hub tracks attached consumers and fans the shared buffer out to them.
// It never appends events itself; producers write through the buffer and
// each consumer's feeder picks the appends up independently.
type Hub struct {
	cfg Config
	buf *eventbuffer.Buffer

	mu        sync.RWMutex
	consumers map[uint64]*Consumer
	draining  bool
}

// New creates a hub over the shared buffer. Out-of-range configuration
// values are normalized to defaults rather than rejected; strict bounds
// are enforced at configuration load.
func New(cfg Config, buf *eventbuffer.Buffer) *Hub {
	def := DefaultConfig()
	if cfg.WindowSize < 1 {
		cfg.WindowSize = def.WindowSize
	}
	if _, err := ParseOverflowPolicy(string(cfg.OverflowPolicy)); err != nil {
		cfg.OverflowPolicy = def.OverflowPolicy
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.MaxConsumers < 0 {
		cfg.MaxConsumers = 0
	}
	return &Hub{
		cfg:       cfg,
		buf:       buf,
		consumers: make(map[uint64]*Consumer),
	}
}

// Register admits a new consumer session resuming from cur. The returned
// consumer delivers nothing until its Run method is called on the
// transport's goroutine.
func (h *Hub) Register(transport string, cur record.Cursor, out RecordWriter, opts SessionOptions) (*Consumer, error) {
	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if h.cfg.MaxConsumers > 0 && len(h.consumers) >= h.cfg.MaxConsumers {
		h.mu.Unlock()
		return nil, ErrHubFull
	}

	c := &Consumer{
		id:             consumerIDCounter.Add(1),
		streamID:       uuid.NewString(),
		transport:      transport,
		connectedAt:    time.Now().UTC(),
		hub:            h,
		buf:            h.buf,
		window:         h.windowFor(opts),
		out:            out,
		cursor:         cur,
		heartbeatEvery: h.cfg.HeartbeatInterval,
		term:           make(chan terminal, 1),
		feederDone:     make(chan struct{}),
	}
	h.consumers[c.id] = c
	total := len(h.consumers)
	h.mu.Unlock()

	metrics.RecordConsumerConnected(transport)
	logging.Info().
		Str("component", "hub").
		Str("stream_id", c.streamID).
		Str("transport", transport).
		Str("cursor", cur.String()).
		Int("window_size", c.window.Cap()).
		Str("overflow_policy", string(c.window.Policy())).
		Int("total_consumers", total).
		Msg("consumer connected")
	return c, nil
}

// Deregister withdraws a consumer that was admitted by Register but whose
// transport never became ready, such as a failed WebSocket upgrade.
// Sessions whose Run method started tear themselves down instead.
func (h *Hub) Deregister(c *Consumer) {
	c.disconnectCause = "transport-failed"
	h.unregister(c)
}

// unregister removes a finished consumer. Called exactly once from
// Consumer.Run's teardown path.
func (h *Hub) unregister(c *Consumer) {
	h.mu.Lock()
	_, present := h.consumers[c.id]
	delete(h.consumers, c.id)
	total := len(h.consumers)
	h.mu.Unlock()
	if !present {
		return
	}

	cause := c.disconnectCause
	if cause == "" {
		cause = "unknown"
	}
	metrics.RecordConsumerDisconnected(cause)
	logging.Info().
		Str("component", "hub").
		Str("stream_id", c.streamID).
		Str("transport", c.transport).
		Str("cause", cause).
		Uint64("dropped", c.window.TotalDropped()).
		Int("total_consumers", total).
		Msg("consumer disconnected")
}

// ConsumerCount reports the number of attached consumers.
func (h *Hub) ConsumerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.consumers)
}

// Stats is the snapshot served by the stream stats endpoint.
type Stats struct {
	Consumers int               `json:"consumers"`
	Draining  bool              `json:"draining"`
	Buffer    eventbuffer.Stats `json:"buffer"`
	Streams   []ConsumerStats   `json:"streams"`
}

// ConsumerStats describes one attached session. WindowSize and
// OverflowPolicy reflect the effective values after per-session overrides.
type ConsumerStats struct {
	StreamID       string    `json:"stream_id"`
	Transport      string    `json:"transport"`
	WindowSize     int       `json:"window_size"`
	OverflowPolicy string    `json:"overflow_policy"`
	Queued         int       `json:"queued"`
	Dropped        uint64    `json:"dropped"`
	ConnectedAt    time.Time `json:"connected_at"`
}

// Stats returns a point-in-time snapshot of the hub and buffer.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	snapshot := make([]*Consumer, 0, len(h.consumers))
	for _, c := range h.consumers {
		snapshot = append(snapshot, c)
	}
	draining := h.draining
	h.mu.RUnlock()

	// DETERMINISM: sort by registration id so repeated snapshots list
	// sessions in a stable order.
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].id < snapshot[j].id
	})

	stats := Stats{
		Consumers: len(snapshot),
		Draining:  draining,
		Buffer:    h.buf.Stats(),
		Streams:   make([]ConsumerStats, 0, len(snapshot)),
	}
	for _, c := range snapshot {
		stats.Streams = append(stats.Streams, ConsumerStats{
			StreamID:       c.streamID,
			Transport:      c.transport,
			WindowSize:     c.window.Cap(),
			OverflowPolicy: string(c.window.Policy()),
			Queued:         c.window.Len(),
			Dropped:        c.window.TotalDropped(),
			ConnectedAt:    c.connectedAt,
		})
	}
	return stats
}

// Run blocks until the context is canceled, then broadcasts a
// server-shutdown stream end to every attached consumer. It satisfies the
// supervisor's service contract; returning the context error tells the
// supervisor the stop was orderly.
func (h *Hub) Run(ctx context.Context) error {
	logging.Info().
		Str("component", "hub").
		Int("window_size", h.cfg.WindowSize).
		Str("overflow_policy", string(h.cfg.OverflowPolicy)).
		Dur("heartbeat_interval", h.cfg.HeartbeatInterval).
		Int("max_consumers", h.cfg.MaxConsumers).
		Msg("hub started")

	<-ctx.Done()
	h.shutdown(ctx)
	return ctx.Err()
}

// shutdown flips the hub into draining mode and tells every consumer's
// writer to deliver a final stream-end record. Consumers unregister
// themselves as their Run methods return.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	h.draining = true
	snapshot := make([]*Consumer, 0, len(h.consumers))
	for _, c := range h.consumers {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	// DETERMINISM: notify consumers in registration order.
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].id < snapshot[j].id
	})
	for _, c := range snapshot {
		c.terminate(nil, record.EndServerShutdown)
	}

	reason := "context_canceled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "hub").
		Str("reason", reason).
		Int("consumers_notified", len(snapshot)).
		Msg("hub stopped")
}
