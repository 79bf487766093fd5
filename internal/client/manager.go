// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/streamcast/internal/backoff"
	"github.com/tomtom215/streamcast/internal/heartbeat"
	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/metrics"
	"github.com/tomtom215/streamcast/internal/record"
	"github.com/tomtom215/streamcast/internal/transport"
)

// ErrAlreadyRunning is returned by Connect while a session loop is active.
var ErrAlreadyRunning = errors.New("client: already connected or connecting")

// defaultEventBuffer is the notification channel capacity when the config
// does not set one.
const defaultEventBuffer = 256

// Transition causes that originate in the manager itself. Causes derived
// from transport failures and server records use transport.Cause values and
// record codes verbatim.
const (
	causeConnect     = "connect"
	causeReconnect   = "reconnect"
	causeConnected   = "connected"
	causeCancelled   = "cancelled"
	causeRejected    = "rejected"
	causeExhausted   = "retries-exhausted"
	causeAuth        = "auth-expired"
	causeProtocol    = "fatal-protocol"
	causeHeartbeat   = "heartbeat-timeout"
	causeEndComplete = "stream-completed"
	causeEndCancel   = "stream-cancelled"
	causeEndTimeout  = "stream-timeout"
	causeEndShutdown = "server-shutdown"
	causeEndError    = "stream-error"
)

// Config holds the connection manager settings.
type Config struct {
	// Dialer establishes transport connections. Required.
	Dialer transport.Dialer

	// Backoff shapes reconnect delays. Zero fields take package defaults.
	Backoff backoff.Config

	// MaxAttempts is the consecutive-failure budget before the manager gives
	// up and enters the failed state. Zero means retry forever.
	MaxAttempts int

	// Heartbeat sets liveness probe timing. On transports that expose a
	// probe surface (WebSocket) the manager pings actively; on
	// one-directional transports (SSE) it expects server heartbeat records
	// and treats twice PingInterval of silence as a dead connection.
	Heartbeat heartbeat.Config

	// EventBuffer is the notification channel capacity. Zero means 256.
	EventBuffer int
}

// Manager drives one logical stream subscription through connection loss,
// backoff and resume. It owns the cursor, the retry budget and the
// notification channel; the caller owns only the channel's read end.
//
// Thread Safety: all exported methods are safe for concurrent use. Events
// are produced by a single goroutine, so channel order is the delivery
// order. The cursor advances only after the corresponding data event has
// been handed to the channel, which is what makes delivery at-least-once
// rather than at-most-once across reconnects.
type Manager struct {
	cfg Config

	events chan Event

	mu           sync.Mutex
	state        State
	cursor       record.Cursor
	gapped       bool
	attempt      int
	lastActivity time.Time
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
}

// New creates a manager in the disconnected state. Call Connect to start.
func New(cfg Config) (*Manager, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("client: dialer is required")
	}
	def := heartbeat.DefaultConfig()
	if cfg.Heartbeat.PingInterval <= 0 {
		cfg.Heartbeat.PingInterval = def.PingInterval
	}
	if cfg.Heartbeat.PongTimeout <= 0 {
		cfg.Heartbeat.PongTimeout = def.PongTimeout
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}

	return &Manager{
		cfg:    cfg,
		events: make(chan Event, cfg.EventBuffer),
		state:  StateDisconnected,
		cursor: record.NoCursor(),
	}, nil
}

// Events returns the notification channel. The channel is never closed and
// survives Disconnect/Connect cycles, so a caller loop can span sessions.
// Data events block the manager when the channel is full; drain it.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Cursor returns the last delivered position. Invalid until the first
// session establishes.
func (m *Manager) Cursor() record.Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// LastActivity returns when the last record arrived on the wire, zero
// before the first one.
func (m *Manager) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// Connect starts the session loop. Valid from the disconnected and failed
// states; the attempt counter resets so a recovered caller gets a full
// retry budget. Returns ErrAlreadyRunning while a previous loop is active.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	from := m.state
	cur := m.cursor
	m.state = StateConnecting
	m.attempt = 0
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	logging.Info().
		Str("component", "client").
		Str("cursor", cur.String()).
		Msg("connecting")

	go m.run(ctx, from, done)
	return nil
}

// Disconnect stops the session loop and waits for it to exit. A pending
// backoff timer is cancelled rather than waited out. Safe to call in any
// state, including repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
}

// run is the session loop: dial, consume, classify the ending, retry or
// stop. It is the only goroutine that sends on the events channel.
func (m *Manager) run(ctx context.Context, from State, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		close(done)
	}()

	pol := backoff.New(m.cfg.Backoff)
	m.send(ctx, Event{Kind: EventTransition, From: from, To: StateConnecting, Cause: causeConnect})

	for {
		if m.State() != StateConnecting {
			m.transition(ctx, StateConnecting, causeReconnect, nil)
		}

		conn, err := m.cfg.Dialer.Dial(ctx, m.resumeCursor())
		if err != nil {
			if ctx.Err() != nil {
				m.finish(ctx, StateDisconnected, causeCancelled, nil)
				return
			}
			end := m.classifyDialError(err, pol)
			if !end.retry {
				m.finish(ctx, StateDisconnected, end.cause, end.err)
				return
			}
			if !m.awaitRetry(ctx, pol, end.cause) {
				return
			}
			continue
		}

		// The server accepted the connection, so the failure series is over
		// and the next failure starts a fresh backoff ramp.
		m.mu.Lock()
		m.attempt = 0
		m.mu.Unlock()
		pol.Reset()
		m.transition(ctx, StateConnected, causeConnected, nil)

		end := m.session(ctx, conn, pol)
		_ = conn.Close()

		if ctx.Err() != nil {
			m.finish(ctx, StateDisconnected, causeCancelled, nil)
			return
		}
		if !end.retry {
			m.finish(ctx, StateDisconnected, end.cause, end.err)
			return
		}
		if !m.awaitRetry(ctx, pol, end.cause) {
			return
		}
	}
}

// classifyDialError maps a dial failure to a session ending, arming any
// server-provided retry hint first. Authentication rejections and other
// fatal rejections are surfaced without retrying: redialing with the same
// credentials or the same malformed request would fail the same way.
func (m *Manager) classifyDialError(err error, pol *backoff.Policy) sessionEnd {
	if hint, ok := transport.RetryAfterHint(err); ok {
		pol.Hint(hint)
	}
	switch {
	case transport.IsAuthRejection(err):
		return sessionEnd{cause: causeAuth, err: fmt.Errorf("client: authentication rejected: %w", err)}
	case transport.IsFatalDial(err):
		return sessionEnd{cause: causeRejected, err: fmt.Errorf("client: connection rejected: %w", err)}
	default:
		return sessionEnd{retry: true, cause: transport.Cause(err)}
	}
}

// awaitRetry charges one failure against the retry budget, enters the
// reconnecting state and waits out the backoff delay. It returns false when
// the loop must exit because the budget is exhausted or the caller
// cancelled the wait.
func (m *Manager) awaitRetry(ctx context.Context, pol *backoff.Policy, cause string) bool {
	m.mu.Lock()
	m.attempt++
	attempt := m.attempt
	m.mu.Unlock()

	if m.cfg.MaxAttempts > 0 && attempt >= m.cfg.MaxAttempts {
		m.finish(ctx, StateFailed, causeExhausted,
			fmt.Errorf("client: giving up after %d attempts, last cause %s", attempt, cause))
		return false
	}

	delay := pol.Next()
	metrics.RecordReconnect(cause)

	m.mu.Lock()
	from := m.state
	m.state = StateReconnecting
	m.mu.Unlock()

	logging.Info().
		Str("component", "client").
		Str("cause", cause).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("reconnect scheduled")

	m.send(ctx, Event{
		Kind:    EventTransition,
		From:    from,
		To:      StateReconnecting,
		Cause:   cause,
		Attempt: attempt,
		Delay:   delay,
	})

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		m.finish(ctx, StateDisconnected, causeCancelled, nil)
		return false
	case <-timer.C:
		return true
	}
}

// transition flips the state and reports it on the notification channel.
func (m *Manager) transition(ctx context.Context, to State, cause string, err error) {
	m.mu.Lock()
	from := m.state
	m.state = to
	attempt := m.attempt
	m.mu.Unlock()

	logging.Debug().
		Str("component", "client").
		Str("from", string(from)).
		Str("to", string(to)).
		Str("cause", cause).
		Msg("state change")

	m.send(ctx, Event{Kind: EventTransition, From: from, To: to, Cause: cause, Attempt: attempt, Err: err})
}

// finish moves to a terminal state. Once the context is cancelled the
// report is best-effort: the channel may be full with nobody left reading.
func (m *Manager) finish(ctx context.Context, to State, cause string, err error) {
	m.mu.Lock()
	from := m.state
	m.state = to
	attempt := m.attempt
	m.mu.Unlock()

	logging.Info().
		Str("component", "client").
		Str("state", string(to)).
		Str("cause", cause).
		Int("attempt", attempt).
		Msg("session loop stopped")

	ev := Event{Kind: EventTransition, From: from, To: to, Cause: cause, Attempt: attempt, Err: err}
	if ctx.Err() != nil {
		m.trySend(ev)
		return
	}
	m.send(ctx, ev)
}

// send delivers one event in channel order, blocking when the buffer is
// full. It returns false when the session context ended before space freed.
// A data event lost that way is redelivered after the next connect, because
// the cursor only advances on delivery.
func (m *Manager) send(ctx context.Context, ev Event) bool {
	select {
	case m.events <- ev:
		return true
	default:
	}
	select {
	case m.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// trySend delivers without blocking, for reports after cancellation.
func (m *Manager) trySend(ev Event) {
	select {
	case m.events <- ev:
	default:
		logging.Debug().
			Str("component", "client").
			Str("kind", string(ev.Kind)).
			Msg("notification dropped, channel full")
	}
}

// resumeCursor is the position offered on the next dial. A session that
// observed a gap resyncs from live instead of resuming: resuming past a gap
// would paper over the missed range forever, while a resync makes the loss
// explicit to the caller.
func (m *Manager) resumeCursor() record.Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gapped {
		return record.NoCursor()
	}
	return m.cursor
}

func (m *Manager) isGapped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gapped
}

func (m *Manager) markGapped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gapped = true
}

func (m *Manager) setCursor(c record.Cursor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursor = c
}

func (m *Manager) touchActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now().UTC()
}
