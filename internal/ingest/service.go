// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/streamcast/internal/config"
	"github.com/tomtom215/streamcast/internal/eventbuffer"
	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/metrics"
)

// TopicEvicted carries eviction advisories for events removed before any
// consumer read them. The notify service subscribes to it via Subscriber().
const TopicEvicted = "events.evicted"

// evictionQueueCap bounds the hand-off queue between the buffer's eviction
// hook and the advisory publisher goroutine.
const evictionQueueCap = 64

const (
	appendHandlerName = "buffer-append"
	poisonHandlerName = "poison-drain"
)

var (
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("ingest: service closed")

	// ErrNotRunning is returned by Publish before the router has started.
	// Events published with no running handler would vanish into the
	// non-persistent bus, so the publisher refuses instead.
	ErrNotRunning = errors.New("ingest: pipeline not running")

	// ErrEmptyPayload rejects zero-length payloads.
	ErrEmptyPayload = errors.New("ingest: payload is empty")

	// ErrInvalidPayload rejects payloads that are not well-formed JSON.
	ErrInvalidPayload = errors.New("ingest: payload is not valid JSON")

	// ErrPoisoned is wrapped into the error a publisher receives when its
	// event exhausted pipeline retries and was routed to the poison topic.
	ErrPoisoned = errors.New("ingest: event rejected by pipeline")
)

// EvictionAdvisory is the payload published on TopicEvicted when the buffer
// evicts events no consumer ever read.
type EvictionAdvisory struct {
	FirstSeq  uint64    `json:"first_seq"`
	LastSeq   uint64    `json:"last_seq"`
	Count     int       `json:"count"`
	Unread    int       `json:"unread"`
	Cause     string    `json:"cause"`
	EvictedAt time.Time `json:"evicted_at"`
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	Published         uint64 `json:"published"`
	Poisoned          uint64 `json:"poisoned"`
	AdvisoriesDropped uint64 `json:"advisories_dropped"`
}

// appendResult carries the append handler's outcome back to the waiting
// publisher, correlated by message ID.
type appendResult struct {
	seq uint64
	err error
}

// Service owns the ingest pipeline: an in-process Watermill Pub/Sub, a
// router with recovery/retry/poison middleware, and the append handler
// that lands events in the retained buffer.
//
// Lifecycle: NewService builds the pipeline, Run starts it (blocking until
// the context is cancelled), Close releases it. Publish is safe for
// concurrent use while the pipeline runs.
type Service struct {
	cfg    config.IngestConfig
	buffer *eventbuffer.Buffer
	bus    *gochannel.GoChannel
	router *message.Router

	mu      sync.Mutex
	pending map[string]chan appendResult
	closed  bool

	evictions chan EvictionAdvisory

	published         atomic.Uint64
	poisoned          atomic.Uint64
	advisoriesDropped atomic.Uint64
}

// NewService creates the ingest pipeline around the given buffer.
// Zero-value config fields fall back to the documented defaults.
func NewService(cfg config.IngestConfig, buf *eventbuffer.Buffer) (*Service, error) {
	if buf == nil {
		return nil, errors.New("ingest: buffer is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "events.published"
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	if cfg.PoisonTopic == "" {
		cfg.PoisonTopic = "events.poison"
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	wmLogger := newWatermillLogger()

	bus := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.BufferSize),
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("ingest: create router: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		buffer:    buf,
		bus:       bus,
		router:    router,
		pending:   make(map[string]chan appendResult),
		evictions: make(chan EvictionAdvisory, evictionQueueCap),
	}

	// Middleware order is outermost first: the poison queue sees an error
	// only after the retry middleware has given up, and the innermost
	// recoverer turns handler panics into errors retry and poison can act on.
	if cfg.PoisonEnabled {
		poison, err := middleware.PoisonQueue(bus, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("ingest: create poison queue: %w", err)
		}
		router.AddMiddleware(poison)
	}
	if cfg.RetryCount > 0 {
		retry := middleware.Retry{
			MaxRetries:      cfg.RetryCount,
			InitialInterval: cfg.RetryInterval,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
			Logger:          wmLogger,
		}
		router.AddMiddleware(retry.Middleware)
	}
	router.AddMiddleware(middleware.Recoverer)

	router.AddConsumerHandler(appendHandlerName, cfg.Topic, bus, s.handleAppend)
	if cfg.PoisonEnabled {
		router.AddConsumerHandler(poisonHandlerName, cfg.PoisonTopic, bus, s.handlePoisoned)
	}

	return s, nil
}

// Run starts the pipeline and blocks until the context is cancelled or the
// router fails. The eviction advisory publisher runs for the same span.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.announceLoop(ctx)
	}()

	err := s.router.Run(ctx)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("ingest: router: %w", err)
	}
	return nil
}

// Running returns a channel that closes once all handlers are consuming.
func (s *Service) Running() <-chan struct{} {
	return s.router.Running()
}

// Ready reports whether the pipeline is accepting events. The router's
// running channel stays closed after shutdown, so the closed flag must be
// consulted as well or a stopped pipeline would still report ready.
func (s *Service) Ready() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}

	select {
	case <-s.router.Running():
		return true
	default:
		return false
	}
}

// Close shuts the router and the bus down, draining in-flight messages up
// to the configured close timeout.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	routerErr := s.router.Close()
	busErr := s.bus.Close()
	if routerErr != nil {
		return fmt.Errorf("ingest: close router: %w", routerErr)
	}
	if busErr != nil {
		return fmt.Errorf("ingest: close bus: %w", busErr)
	}
	return nil
}

// Publish sends one event through the pipeline and returns the sequence
// number the buffer assigned to it. It blocks until the append handler has
// run, the context is cancelled, or the event is rejected.
//
// Validation failures are reported synchronously without touching the
// pipeline. A returned sequence number means the event is in the buffer
// and visible to consumers.
func (s *Service) Publish(ctx context.Context, payload json.RawMessage) (uint64, error) {
	start := time.Now()
	seq, err := s.publish(ctx, payload)
	metrics.RecordPublish(time.Since(start), err)
	return seq, err
}

func (s *Service) publish(ctx context.Context, payload json.RawMessage) (uint64, error) {
	if err := validatePayload(payload); err != nil {
		return 0, err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	if !s.Ready() {
		return 0, ErrNotRunning
	}

	msg := message.NewMessage(watermill.NewUUID(), message.Payload(payload))
	msg.SetContext(ctx)

	done := make(chan appendResult, 1)
	s.mu.Lock()
	s.pending[msg.UUID] = done
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, msg.UUID)
		s.mu.Unlock()
	}()

	if err := s.bus.Publish(s.cfg.Topic, msg); err != nil {
		return 0, fmt.Errorf("ingest: enqueue event: %w", err)
	}

	select {
	case res := <-done:
		if res.err != nil {
			return 0, res.err
		}
		return res.seq, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// AnnounceEviction queues an advisory describing an eviction that removed
// unread events. It is the buffer's unread-eviction hook and must never
// block the appending goroutine, so a full queue drops the advisory and
// counts it instead.
func (s *Service) AnnounceEviction(rng eventbuffer.EvictedRange) {
	adv := EvictionAdvisory{
		FirstSeq:  rng.From,
		LastSeq:   rng.To,
		Count:     rng.Count(),
		Unread:    rng.Unread,
		Cause:     rng.Cause,
		EvictedAt: time.Now().UTC(),
	}
	select {
	case s.evictions <- adv:
	default:
		s.advisoriesDropped.Add(1)
		logging.Warn().
			Uint64("first_seq", adv.FirstSeq).
			Uint64("last_seq", adv.LastSeq).
			Msg("advisory queue full, eviction notice dropped")
	}
}

// Subscriber exposes the internal bus for auxiliary subscriptions, such as
// the notify service consuming TopicEvicted.
func (s *Service) Subscriber() message.Subscriber {
	return s.bus
}

// Stats returns current pipeline counters.
func (s *Service) Stats() Stats {
	return Stats{
		Published:         s.published.Load(),
		Poisoned:          s.poisoned.Load(),
		AdvisoriesDropped: s.advisoriesDropped.Load(),
	}
}

// String identifies the service in supervisor logs.
func (s *Service) String() string {
	return "ingest-pipeline"
}

// handleAppend lands one published event in the buffer and resolves the
// waiting publisher with the assigned sequence number. Returning an error
// hands the message to the retry and poison middleware.
func (s *Service) handleAppend(msg *message.Message) error {
	if err := validatePayload(msg.Payload); err != nil {
		return err
	}

	seq := s.buffer.Append(json.RawMessage(msg.Payload))
	s.published.Add(1)
	s.resolve(msg.UUID, appendResult{seq: seq})

	logging.Debug().
		Str("message_id", msg.UUID).
		Uint64("seq", seq).
		Msg("event appended")
	return nil
}

// handlePoisoned drains the poison topic. The message ID is unchanged
// through the poison middleware, so any publisher still waiting on the
// event learns here that the pipeline gave up on it.
func (s *Service) handlePoisoned(msg *message.Message) error {
	reason := msg.Metadata.Get(middleware.ReasonForPoisonedKey)
	s.poisoned.Add(1)
	s.resolve(msg.UUID, appendResult{err: fmt.Errorf("%w: %s", ErrPoisoned, reason)})

	logging.Error().
		Str("message_id", msg.UUID).
		Str("reason", reason).
		Msg("event poisoned, dropped from ingest pipeline")
	return nil
}

// resolve delivers the append outcome to the publisher waiting on the
// message, if one still is. Delete-before-send keeps the buffered send
// from ever blocking.
func (s *Service) resolve(uuid string, res appendResult) {
	s.mu.Lock()
	done, ok := s.pending[uuid]
	if ok {
		delete(s.pending, uuid)
	}
	s.mu.Unlock()

	if ok {
		done <- res
	}
}

// validatePayload enforces the payload contract: non-empty, well-formed
// JSON. The payload is otherwise opaque to the delivery core.
func validatePayload(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if !json.Valid(payload) {
		return ErrInvalidPayload
	}
	return nil
}

// announceLoop publishes queued eviction advisories onto the bus. Runs on
// its own goroutine so a slow or absent advisory consumer never reaches
// the append path.
func (s *Service) announceLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case adv := <-s.evictions:
			s.publishAdvisory(adv)
		}
	}
}

func (s *Service) publishAdvisory(adv EvictionAdvisory) {
	data, err := json.Marshal(adv)
	if err != nil {
		logging.Error().Err(err).Msg("marshal eviction advisory")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := s.bus.Publish(TopicEvicted, msg); err != nil {
		logging.Error().
			Err(err).
			Uint64("first_seq", adv.FirstSeq).
			Uint64("last_seq", adv.LastSeq).
			Msg("publish eviction advisory")
		return
	}

	logging.Info().
		Uint64("first_seq", adv.FirstSeq).
		Uint64("last_seq", adv.LastSeq).
		Int("unread", adv.Unread).
		Str("cause", adv.Cause).
		Msg("eviction advisory published")
}
