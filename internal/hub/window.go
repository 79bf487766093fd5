// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/streamcast/internal/metrics"
	"github.com/tomtom215/streamcast/internal/record"
)

// OverflowPolicy selects what happens when a consumer's outbound window is
// full and another record arrives. The string values match the
// STREAM_OVERFLOW_POLICY configuration setting.
type OverflowPolicy string

const (
	// OverflowBuffer blocks the feeder until the writer drains a slot.
	// Backpressure propagates to the shared buffer cursor: a slow consumer
	// falls behind and may find its cursor expired, but no records are lost
	// silently.
	OverflowBuffer OverflowPolicy = "buffer"

	// OverflowDropOldest discards the oldest queued data record to admit
	// the newest. Suits live dashboards where only the latest state
	// matters. Control records are never evicted.
	OverflowDropOldest OverflowPolicy = "drop-oldest"

	// OverflowDropLatest discards the incoming record and keeps the queue
	// intact. Suits replay-heavy consumers that must not lose queued history.
	OverflowDropLatest OverflowPolicy = "drop-latest"

	// OverflowError terminates the consumer with a fatal overflow error
	// record. The client reconnects and resumes from its last cursor.
	OverflowError OverflowPolicy = "error"
)

// ParseOverflowPolicy converts a configuration string into an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(s) {
	case OverflowBuffer, OverflowDropOldest, OverflowDropLatest, OverflowError:
		return OverflowPolicy(s), nil
	}
	return "", fmt.Errorf("unknown overflow policy %q", s)
}

var (
	// ErrWindowClosed is returned by Enqueue after Close. The consumer is
	// tearing down and no further records will be delivered.
	ErrWindowClosed = errors.New("hub: window closed")

	// ErrWindowOverflow is returned by Enqueue under the error policy when
	// the window is full. The caller must terminate the consumer.
	ErrWindowOverflow = errors.New("hub: window overflow")
)

// Window is the bounded per-consumer queue between the feeder goroutine
// (which reads the shared buffer) and the writer goroutine (which owns the
// transport). Exactly one goroutine enqueues and exactly one dequeues; the
// window itself is safe for concurrent use.
//
// Signaling uses the close-and-replace idiom: NotEmpty returns a channel
// that is closed when a record arrives, and Enqueue under the buffer policy
// waits on an internal channel that is closed when a slot frees. Waiters
// re-check state after waking, so spurious wakeups are harmless.
type Window struct {
	policy OverflowPolicy

	mu       sync.Mutex
	ring     []*record.Record
	head     int
	count    int
	closed   bool
	notEmpty chan struct{}
	notFull  chan struct{}

	// droppedPending counts data records discarded since the last advisory
	// was taken. droppedTotal never resets and feeds the stats endpoint.
	droppedPending uint64
	droppedTotal   uint64
}

// NewWindow creates a window holding at most size records. Sizes below one
// are raised to one so that a metadata record can always be queued.
func NewWindow(size int, policy OverflowPolicy) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		policy:   policy,
		ring:     make([]*record.Record, size),
		notEmpty: make(chan struct{}),
		notFull:  make(chan struct{}),
	}
}

// Policy returns the overflow policy the window was created with.
func (w *Window) Policy() OverflowPolicy {
	return w.policy
}

// Cap returns the fixed capacity in records. The ring is allocated once in
// NewWindow and never resized, so no lock is needed.
func (w *Window) Cap() int {
	return len(w.ring)
}

// Enqueue adds a record to the window, applying the overflow policy when
// full. Under the buffer policy it blocks until a slot frees or ctx is
// canceled. Under the error policy a full window yields ErrWindowOverflow.
// The drop policies never fail; they count discarded data records for a
// later advisory instead.
func (w *Window) Enqueue(ctx context.Context, r *record.Record) error {
	for {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return ErrWindowClosed
		}
		if w.count < len(w.ring) {
			w.pushLocked(r)
			w.mu.Unlock()
			return nil
		}

		switch w.policy {
		case OverflowDropOldest:
			victim, ok := w.removeOldestDataLocked()
			if ok {
				dropped := w.noteDropLocked(victim)
				w.pushLocked(r)
				w.mu.Unlock()
				if dropped {
					metrics.RecordDrop(string(w.policy), 1)
				}
				return nil
			}
			// Nothing but control records queued; the incoming record
			// gives way instead.
			dropped := w.noteDropLocked(r)
			w.mu.Unlock()
			if dropped {
				metrics.RecordDrop(string(w.policy), 1)
			}
			return nil
		case OverflowDropLatest:
			dropped := w.noteDropLocked(r)
			w.mu.Unlock()
			if dropped {
				metrics.RecordDrop(string(w.policy), 1)
			}
			return nil
		case OverflowError:
			w.mu.Unlock()
			return ErrWindowOverflow
		}

		// Buffer policy: wait for the writer to drain a slot, then retry.
		notFull := w.notFull
		w.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-notFull:
		}
	}
}

// TryDequeue removes and returns the oldest queued record. It never blocks;
// the second return value is false when the window is empty.
func (w *Window) TryDequeue() (*record.Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.count == 0 {
		return nil, false
	}
	return w.popLocked(), true
}

// NotEmpty returns a channel that is closed once a record is enqueued.
// Callers must obtain a fresh channel after each wakeup.
func (w *Window) NotEmpty() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notEmpty
}

// TakePendingDrops returns the number of data records dropped since the
// last call, or zero while the window is still full. Deferring the handoff
// until a slot is free means the advisory built from it can be queued
// immediately without displacing further records.
func (w *Window) TakePendingDrops() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.count >= len(w.ring) {
		return 0
	}
	n := w.droppedPending
	w.droppedPending = 0
	return n
}

// TotalDropped reports the lifetime count of discarded data records.
func (w *Window) TotalDropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.droppedTotal
}

// Len reports the number of queued records.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close marks the window closed and wakes all waiters. Subsequent Enqueue
// calls fail with ErrWindowClosed; TryDequeue continues to drain whatever
// remains queued. Close is idempotent.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.notEmpty)
	close(w.notFull)
}

// pushLocked appends r and signals waiting dequeuers. Callers hold mu and
// have verified capacity and that the window is open.
func (w *Window) pushLocked(r *record.Record) {
	w.ring[(w.head+w.count)%len(w.ring)] = r
	w.count++
	close(w.notEmpty)
	w.notEmpty = make(chan struct{})
}

// removeOldestDataLocked evicts the oldest queued data record, preserving
// the relative order of everything else. Control records (metadata,
// progress, advisories) are never evicted: dropping the metadata record
// would leave the client without its session identity, and advisories are
// how the client learns about drops in the first place. Returns false when
// no data record is queued. The caller holds mu and does not need a
// space signal because it immediately refills the slot.
func (w *Window) removeOldestDataLocked() (*record.Record, bool) {
	n := len(w.ring)
	for i := 0; i < w.count; i++ {
		idx := (w.head + i) % n
		if w.ring[idx].Kind != record.KindData {
			continue
		}
		victim := w.ring[idx]
		for j := i; j < w.count-1; j++ {
			w.ring[(w.head+j)%n] = w.ring[(w.head+j+1)%n]
		}
		w.ring[(w.head+w.count-1)%n] = nil
		w.count--
		return victim, true
	}
	return nil, false
}

// popLocked removes the oldest record and signals waiting enqueuers.
// Callers hold mu and have verified count > 0.
func (w *Window) popLocked() *record.Record {
	r := w.ring[w.head]
	w.ring[w.head] = nil
	w.head = (w.head + 1) % len(w.ring)
	w.count--
	if !w.closed {
		close(w.notFull)
		w.notFull = make(chan struct{})
	}
	return r
}

// noteDropLocked counts a discarded record. Only data records count:
// heartbeats and advisories carry no event payload, so losing one is not a
// delivery gap the client needs to hear about.
func (w *Window) noteDropLocked(r *record.Record) bool {
	if r == nil || r.Kind != record.KindData {
		return false
	}
	w.droppedPending++
	w.droppedTotal++
	return true
}
