// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package heartbeat detects silently dead connections.
//
// Two monitors are provided, matching the two transport families:
//
//   - Monitor (active): sends a probe every PingInterval and arms a
//     PongTimeout timer per probe. A matching response cancels the timer and
//     records round-trip latency. If the timer fires first the connection is
//     declared dead and the timeout callback runs exactly once. Used over
//     WebSocket, where both directions can signal.
//
//   - PassiveMonitor: one-directional transports (SSE) cannot answer probes,
//     so any received record counts as liveness. Absence of all traffic for
//     2*PingInterval is the timeout trigger.
//
// Both monitors run a single goroutine with cancellable timers tied to the
// connection lifetime: Stop releases all scheduled work and waits for the
// goroutine to exit.
package heartbeat

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// passiveTimeoutFactor scales PingInterval into the passive idle deadline.
// One missed server heartbeat is tolerated; two in a row is a dead link.
const passiveTimeoutFactor = 2

// Config holds liveness probe timing.
type Config struct {
	// PingInterval is the gap between probes (active) or the expected
	// server heartbeat cadence (passive).
	PingInterval time.Duration

	// PongTimeout is how long after a probe a response must arrive.
	// Ignored in passive mode.
	PongTimeout time.Duration
}

// DefaultConfig returns probe timing suitable for connections traversing
// proxies that reap idle streams after about a minute.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		PongTimeout:  10 * time.Second,
	}
}

// Callbacks connect a Monitor to its transport and owner. SendProbe and
// OnTimeout are required; OnRTT is optional.
type Callbacks struct {
	// SendProbe writes a liveness probe to the transport. A send error is
	// not treated as a timeout here: the transport's own read loop will
	// surface the broken connection with its real cause.
	SendProbe func() error

	// OnTimeout is invoked exactly once when liveness is lost.
	OnTimeout func()

	// OnRTT receives the measured round-trip time of each answered probe.
	OnRTT func(time.Duration)
}

// Monitor is an active ping/pong liveness watcher for one connection epoch.
type Monitor struct {
	cfg Config
	cb  Callbacks

	pong chan time.Time
	stop chan struct{}
	done chan struct{}

	stopOnce sync.Once
	timedOut atomic.Bool
}

// NewMonitor creates an active monitor. Start must be called to begin
// probing.
func NewMonitor(cfg Config, cb Callbacks) (*Monitor, error) {
	if cfg.PingInterval <= 0 {
		return nil, fmt.Errorf("heartbeat: ping interval must be positive, got %v", cfg.PingInterval)
	}
	if cfg.PongTimeout <= 0 {
		return nil, fmt.Errorf("heartbeat: pong timeout must be positive, got %v", cfg.PongTimeout)
	}
	if cb.SendProbe == nil {
		return nil, fmt.Errorf("heartbeat: SendProbe callback is required")
	}
	if cb.OnTimeout == nil {
		return nil, fmt.Errorf("heartbeat: OnTimeout callback is required")
	}

	return &Monitor{
		cfg:  cfg,
		cb:   cb,
		pong: make(chan time.Time, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// Start launches the probe loop.
func (m *Monitor) Start() {
	go m.run()
}

// Stop cancels all pending timers and waits for the probe loop to exit.
// Safe to call multiple times and after a timeout has fired.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// Pong notifies the monitor that a liveness response arrived. Unsolicited
// responses (no probe outstanding) are ignored.
func (m *Monitor) Pong() {
	select {
	case m.pong <- time.Now():
	default:
	}
}

// TimedOut reports whether the monitor has declared the connection dead.
func (m *Monitor) TimedOut() bool {
	return m.timedOut.Load()
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	var (
		pongTimer *time.Timer
		pongC     <-chan time.Time
		probeSent time.Time
	)
	cancelPongTimer := func() {
		if pongTimer != nil {
			pongTimer.Stop()
			pongTimer = nil
			pongC = nil
		}
	}
	defer cancelPongTimer()

	for {
		select {
		case <-m.stop:
			return

		case <-ticker.C:
			if pongC != nil {
				// Previous probe still outstanding; its timer decides.
				continue
			}
			if err := m.cb.SendProbe(); err != nil {
				continue
			}
			probeSent = time.Now()
			pongTimer = time.NewTimer(m.cfg.PongTimeout)
			pongC = pongTimer.C

		case at := <-m.pong:
			if pongC == nil {
				continue
			}
			cancelPongTimer()
			if m.cb.OnRTT != nil {
				m.cb.OnRTT(at.Sub(probeSent))
			}

		case <-pongC:
			pongTimer = nil
			pongC = nil
			m.fireTimeout()
			return
		}
	}
}

func (m *Monitor) fireTimeout() {
	if m.timedOut.CompareAndSwap(false, true) {
		m.cb.OnTimeout()
	}
}

// PassiveMonitor watches for any inbound traffic on a one-directional
// transport. Data records and server heartbeats both count.
type PassiveMonitor struct {
	idleTimeout time.Duration
	onTimeout   func()

	traffic chan struct{}
	stop    chan struct{}
	done    chan struct{}

	stopOnce sync.Once
	timedOut atomic.Bool
}

// NewPassiveMonitor creates a passive monitor with an idle deadline of
// 2*pingInterval, matching the server's heartbeat emission cadence.
func NewPassiveMonitor(pingInterval time.Duration, onTimeout func()) (*PassiveMonitor, error) {
	if pingInterval <= 0 {
		return nil, fmt.Errorf("heartbeat: ping interval must be positive, got %v", pingInterval)
	}
	if onTimeout == nil {
		return nil, fmt.Errorf("heartbeat: OnTimeout callback is required")
	}

	return &PassiveMonitor{
		idleTimeout: passiveTimeoutFactor * pingInterval,
		onTimeout:   onTimeout,
		traffic:     make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start launches the idle watch loop.
func (m *PassiveMonitor) Start() {
	go m.run()
}

// Stop cancels the idle timer and waits for the watch loop to exit.
func (m *PassiveMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// Traffic notifies the monitor that a record arrived. Non-blocking.
func (m *PassiveMonitor) Traffic() {
	select {
	case m.traffic <- struct{}{}:
	default:
	}
}

// TimedOut reports whether the idle deadline has been reached.
func (m *PassiveMonitor) TimedOut() bool {
	return m.timedOut.Load()
}

func (m *PassiveMonitor) run() {
	defer close(m.done)

	timer := time.NewTimer(m.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case <-m.stop:
			return

		case <-m.traffic:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.idleTimeout)

		case <-timer.C:
			if m.timedOut.CompareAndSwap(false, true) {
				m.onTimeout()
			}
			return
		}
	}
}
