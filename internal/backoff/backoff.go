// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package backoff implements the reconnect delay policy used by the
// connection manager: decorrelated jitter with a hard cap and support for
// one-shot server retry hints.
//
// Each delay is drawn uniformly from [baseDelay, lastDelay*3] and capped at
// maxDelay, which spreads reconnect storms across clients while still
// growing roughly exponentially under sustained failure.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Config holds the policy bounds.
type Config struct {
	// BaseDelay is the lower bound of every draw and the value lastDelay
	// resets to.
	BaseDelay time.Duration
	// MaxDelay caps every returned delay.
	MaxDelay time.Duration
}

// DefaultConfig returns production delay bounds.
func DefaultConfig() Config {
	return Config{
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  30 * time.Second,
	}
}

// Policy produces reconnect delays. Safe for concurrent use.
type Policy struct {
	cfg Config

	mu   sync.Mutex
	rnd  *rand.Rand
	last time.Duration
	hint time.Duration
	// hintSet distinguishes an armed zero-duration hint (reconnect
	// immediately) from no hint at all.
	hintSet bool
}

// New creates a policy seeded from the current time. Zero or negative
// config values fall back to defaults.
func New(cfg Config) *Policy {
	return NewWithSource(cfg, rand.NewSource(time.Now().UnixNano()))
}

// NewWithSource creates a policy with an explicit random source so tests
// can make the jitter deterministic.
func NewWithSource(cfg Config, src rand.Source) *Policy {
	def := DefaultConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = def.MaxDelay
	}
	return &Policy{
		cfg:  cfg,
		rnd:  rand.New(src),
		last: cfg.BaseDelay,
	}
}

// Next returns the delay to wait before the next connection attempt and
// advances the policy state. An armed hint is consumed and returned
// verbatim; hints do not update lastDelay, so the jitter sequence resumes
// where it left off.
func (p *Policy) Next() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hintSet {
		hint := p.hint
		p.hint = 0
		p.hintSet = false
		return hint
	}

	lo := p.cfg.BaseDelay
	hi := p.last * 3
	if hi > p.cfg.MaxDelay {
		hi = p.cfg.MaxDelay
	}

	delay := lo
	if hi > lo {
		delay = lo + time.Duration(p.rnd.Int63n(int64(hi-lo)+1))
	}

	p.last = delay
	return delay
}

// Hint arms a one-shot override consumed by the next call to Next. Used for
// server-overload retry hints and the immediate reconnect after a
// server-shutdown stream end.
func (p *Policy) Hint(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.mu.Lock()
	p.hint = d
	p.hintSet = true
	p.mu.Unlock()
}

// Reset restores first-attempt behavior after a successful connection and
// discards any armed hint.
func (p *Policy) Reset() {
	p.mu.Lock()
	p.last = p.cfg.BaseDelay
	p.hint = 0
	p.hintSet = false
	p.mu.Unlock()
}

// Last returns the current lastDelay state, used by stats reporting.
func (p *Policy) Last() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
