// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/streamcast/internal/config"
	"github.com/tomtom215/streamcast/internal/ingest"
	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/metrics"
)

// ErrDisabled is returned by NewService when notifications are turned off.
// The composition root checks Enabled before constructing the service, so
// seeing this error means a wiring mistake.
var ErrDisabled = errors.New("notify: service disabled")

// Breaker thresholds for the webhook endpoint. The breaker trips on
// consecutive failures and probes again after the open timeout.
const (
	breakerName             = "notify-webhook"
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	breakerCountersInterval = time.Minute
)

// webhookPayload is the JSON body delivered to the operator endpoint.
type webhookPayload struct {
	Type     string                  `json:"type"`
	Advisory ingest.EvictionAdvisory `json:"advisory"`
	SentAt   time.Time               `json:"sent_at"`
}

// Stats is a point-in-time snapshot of delivery counters.
type Stats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// Service consumes eviction advisories from the ingest bus and delivers
// them to the configured webhook.
//
// DETERMINISM NOTE: The circuit breaker uses real time (via sony/gobreaker)
// for its open timeout and measurement window. The timing decides when to
// probe a failing endpoint again, not what gets delivered, so tests assert
// on delivery counts rather than breaker timing.
type Service struct {
	cfg     config.NotifyConfig
	sub     message.Subscriber
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[interface{}]
	limiter *rate.Limiter

	queue chan ingest.EvictionAdvisory

	running     chan struct{}
	runningOnce sync.Once

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewService creates the webhook notifier. The subscriber is the ingest
// bus; the service subscribes to the eviction advisory topic when Run
// starts. Returns ErrDisabled when notifications are not enabled.
func NewService(cfg config.NotifyConfig, sub message.Subscriber) (*Service, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if sub == nil {
		return nil, errors.New("notify: subscriber is required")
	}
	if cfg.WebhookURL == "" {
		return nil, errors.New("notify: webhook URL is required")
	}
	parsed, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("notify: invalid webhook URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("notify: webhook URL must be http or https, got %q", parsed.Scheme)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	s := &Service{
		cfg:     cfg,
		sub:     sub,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		queue:   make(chan ingest.EvictionAdvisory, cfg.QueueSize),
		running: make(chan struct{}),
	}

	// Initialize circuit breaker state metrics
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	s.breaker = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    breakerCountersInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("webhook circuit state changed")
		},
	})

	return s, nil
}

// Run subscribes to the advisory feed and delivers until the context is
// cancelled. The subscription is acked unconditionally; advisories the
// queue cannot hold are dropped oldest-first and counted.
func (s *Service) Run(ctx context.Context) error {
	messages, err := s.sub.Subscribe(ctx, ingest.TopicEvicted)
	if err != nil {
		return fmt.Errorf("notify: subscribe: %w", err)
	}
	s.runningOnce.Do(func() { close(s.running) })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.deliverLoop(ctx)
	}()

	for msg := range messages {
		s.enqueue(msg)
		msg.Ack()
	}

	// Subscription closed with the context; let the worker wind down.
	wg.Wait()
	return nil
}

// Running returns a channel that closes once the subscription is active.
func (s *Service) Running() <-chan struct{} {
	return s.running
}

// Stats returns current delivery counters.
func (s *Service) Stats() Stats {
	return Stats{
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
		Dropped:   s.dropped.Load(),
	}
}

// String identifies the service in supervisor logs.
func (s *Service) String() string {
	return "notify-webhook"
}

// enqueue decodes one advisory and queues it for delivery, dropping the
// oldest queued advisory when full. The newest advisory describes the most
// recent loss, which is the one an operator acts on.
func (s *Service) enqueue(msg *message.Message) {
	var adv ingest.EvictionAdvisory
	if err := json.Unmarshal(msg.Payload, &adv); err != nil {
		logging.Warn().
			Err(err).
			Str("message_id", msg.UUID).
			Msg("malformed eviction advisory, skipped")
		return
	}

	for {
		select {
		case s.queue <- adv:
			return
		default:
		}
		select {
		case old := <-s.queue:
			s.dropped.Add(1)
			logging.Warn().
				Uint64("first_seq", old.FirstSeq).
				Uint64("last_seq", old.LastSeq).
				Msg("advisory queue full, oldest dropped")
		default:
		}
	}
}

func (s *Service) deliverLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case adv := <-s.queue:
			s.deliver(ctx, adv)
		}
	}
}

// deliver pushes one advisory through the rate limiter, the breaker, and
// the webhook POST, recording the outcome.
func (s *Service) deliver(ctx context.Context, adv ingest.EvictionAdvisory) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, adv)
	})

	switch {
	case err == nil:
		s.delivered.Add(1)
		metrics.RecordNotifyDelivery("ok")
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
		logging.Info().
			Uint64("first_seq", adv.FirstSeq).
			Uint64("last_seq", adv.LastSeq).
			Int("unread", adv.Unread).
			Msg("eviction advisory delivered")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		s.failed.Add(1)
		metrics.RecordNotifyDelivery("rejected")
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		logging.Warn().
			Err(err).
			Uint64("first_seq", adv.FirstSeq).
			Msg("advisory delivery rejected, webhook circuit open")
	default:
		s.failed.Add(1)
		metrics.RecordNotifyDelivery("error")
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		logging.Error().
			Err(err).
			Uint64("first_seq", adv.FirstSeq).
			Msg("advisory delivery failed")
	}
}

func (s *Service) post(ctx context.Context, adv ingest.EvictionAdvisory) error {
	body, err := json.Marshal(webhookPayload{
		Type:     ingest.TopicEvicted,
		Advisory: adv,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "streamcast-notify")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// stateToFloat converts circuit breaker state to the gauge encoding
// (0=closed, 1=half-open, 2=open).
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
