// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package eventbuffer implements the bounded, ordered, replayable event
// store that decouples producers from consumers.
//
// The buffer assigns a process-unique, strictly monotonic sequence number to
// every appended event and retains a bounded window of recent events for
// replay after consumer reconnects. Retention is capped both by entry count
// (maxEntries, oldest evicted first) and by entry age (maxAge).
//
// DETERMINISM: sequence assignment and entry insertion happen under one
// mutex acquisition, so a sequence number is never observable without its
// entry. Identical ReadAfter calls with no intervening append or expiry
// return identical results.
//
// OBSERVABILITY: appends, evictions (split by cause, with the unread
// subset), occupancy gauges, and per-status read counts are exported via the
// metrics package. Evictions of never-read events can additionally fire a
// registered hook for operator notification.
package eventbuffer

import (
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/streamcast/internal/metrics"
	"github.com/tomtom215/streamcast/internal/record"
)

// Eviction causes, used as metrics labels and in EvictedRange.
const (
	CauseCapacity = "capacity"
	CauseAge      = "age"
)

// Config bounds buffer retention.
type Config struct {
	// MaxEntries caps the number of retained events. Appends beyond the
	// cap evict the oldest entry.
	MaxEntries int
	// MaxAge expires entries by residence time. Zero disables age expiry.
	MaxAge time.Duration
}

// DefaultConfig returns production retention bounds.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 4096,
		MaxAge:     15 * time.Minute,
	}
}

// Event is one immutable buffered event as handed to consumers.
type Event struct {
	Seq        uint64          `json:"seq"`
	Payload    json.RawMessage `json:"payload"`
	ProducedAt time.Time       `json:"produced_at"`
}

// ReadStatus classifies the outcome of a ReadAfter call.
type ReadStatus int

const (
	// ReadOK means the returned events are a complete, gap-free
	// continuation of the cursor.
	ReadOK ReadStatus = iota
	// ReadExpired means events after the cursor were evicted; the consumer
	// must resync to avoid silent gaps.
	ReadExpired
	// ReadUnknown means the cursor is ahead of every sequence this buffer
	// ever assigned, typically a cursor from a previous server run.
	ReadUnknown
)

// String returns the metrics label for the status.
func (s ReadStatus) String() string {
	switch s {
	case ReadOK:
		return "ok"
	case ReadExpired:
		return "expired"
	case ReadUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// EvictedRange describes one contiguous run of evicted events.
type EvictedRange struct {
	From   uint64 // first evicted sequence
	To     uint64 // last evicted sequence
	Unread int    // events in the range never returned by any read
	Cause  string // CauseCapacity or CauseAge
}

// Count returns the number of evicted events in the range.
func (r EvictedRange) Count() int {
	if r.To < r.From {
		return 0
	}
	return int(r.To - r.From + 1)
}

type bufEntry struct {
	ev         Event
	insertedAt time.Time
	read       bool
}

// Stats is a point-in-time snapshot of buffer state.
type Stats struct {
	Count           int    `json:"count"`
	MinSeq          uint64 `json:"min_seq"` // zero when empty
	MaxSeq          uint64 `json:"max_seq"`
	EvictedCapacity uint64 `json:"evicted_capacity"`
	EvictedAge      uint64 `json:"evicted_age"`
	EvictedUnread   uint64 `json:"evicted_unread"`
}

// Buffer is the bounded replay store. Safe for concurrent use by one
// appender and any number of readers; all operations take one short mutex
// acquisition and never block on consumers.
type Buffer struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	ring     []bufEntry
	head     int
	count    int
	lastSeq  uint64
	notifyCh chan struct{}

	evictedCapacity uint64
	evictedAge      uint64
	evictedUnread   uint64

	onEvictUnread func(EvictedRange)
}

// New creates a buffer. Non-positive MaxEntries falls back to the default.
func New(cfg Config) *Buffer {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.MaxAge < 0 {
		cfg.MaxAge = 0
	}
	return &Buffer{
		cfg:      cfg,
		now:      time.Now,
		ring:     make([]bufEntry, cfg.MaxEntries),
		notifyCh: make(chan struct{}),
	}
}

// SetEvictUnreadHook registers a callback fired (outside the buffer lock)
// whenever an eviction removes events that no reader ever received. Must be
// set before the buffer is shared.
func (b *Buffer) SetEvictUnreadHook(fn func(EvictedRange)) {
	b.onEvictUnread = fn
}

// Append stores one event, assigns the next sequence number, and wakes all
// append waiters. It never blocks on consumers; if the buffer is full the
// oldest entry is evicted first.
func (b *Buffer) Append(payload json.RawMessage) uint64 {
	b.mu.Lock()
	now := b.now()

	aged := b.evictLocked(b.agedCountLocked(now), CauseAge)
	var full EvictedRange
	if b.count == len(b.ring) {
		full = b.evictLocked(1, CauseCapacity)
	}

	b.lastSeq++
	seq := b.lastSeq
	b.ring[(b.head+b.count)%len(b.ring)] = bufEntry{
		ev:         Event{Seq: seq, Payload: payload, ProducedAt: now},
		insertedAt: now,
	}
	b.count++

	depth, minSeq, maxSeq := b.count, b.minSeqLocked(), b.lastSeq

	// Close-and-replace broadcast: every goroutine holding the previous
	// channel wakes exactly once.
	close(b.notifyCh)
	b.notifyCh = make(chan struct{})
	b.mu.Unlock()

	metrics.RecordEventAppended()
	metrics.UpdateBufferGauges(depth, minSeq, maxSeq)
	b.reportEviction(aged)
	b.reportEviction(full)

	return seq
}

// ReadAfter returns all retained events with sequence numbers greater than
// the cursor, together with the cursor the consumer holds after consuming
// them.
//
// The "no history" sentinel cursor is valid and returns no events plus a
// cursor at the current maximum sequence, so a brand-new consumer starts
// live without replay. A cursor older than retention reports ReadExpired
// with no events (never partial data); a cursor ahead of every assigned
// sequence reports ReadUnknown.
func (b *Buffer) ReadAfter(c record.Cursor) ([]Event, record.Cursor, ReadStatus) {
	b.mu.Lock()
	aged := b.evictLocked(b.agedCountLocked(b.now()), CauseAge)

	events, next, status := b.readAfterLocked(c)
	b.mu.Unlock()

	b.reportEviction(aged)
	metrics.RecordBufferRead(status.String())
	return events, next, status
}

func (b *Buffer) readAfterLocked(c record.Cursor) ([]Event, record.Cursor, ReadStatus) {
	if !c.Valid {
		return nil, record.CursorAt(b.lastSeq), ReadOK
	}
	if c.Seq > b.lastSeq {
		return nil, c, ReadUnknown
	}
	if c.Seq == b.lastSeq {
		return nil, c, ReadOK
	}

	// c.Seq < lastSeq: events after the cursor exist or existed.
	if b.count == 0 {
		return nil, c, ReadExpired
	}
	minSeq := b.minSeqLocked()
	if c.Seq+1 < minSeq {
		return nil, c, ReadExpired
	}

	n := int(b.lastSeq - c.Seq)
	offset := int(c.Seq + 1 - minSeq)
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (b.head + offset + i) % len(b.ring)
		b.ring[idx].read = true
		events = append(events, b.ring[idx].ev)
	}
	return events, record.CursorAt(b.lastSeq), ReadOK
}

// AppendNotify returns a channel closed on the next append. Obtain the
// channel before reading to avoid missing a wakeup, then select on it
// alongside the caller's cancellation.
func (b *Buffer) AppendNotify() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notifyCh
}

// EvictExpired removes all entries past MaxAge and returns how many were
// evicted. Called periodically by the retention sweeper so idle buffers do
// not hold stale events until the next append.
func (b *Buffer) EvictExpired() int {
	b.mu.Lock()
	rng := b.evictLocked(b.agedCountLocked(b.now()), CauseAge)
	depth, minSeq, maxSeq := b.count, b.minSeqLocked(), b.lastSeq
	b.mu.Unlock()

	metrics.UpdateBufferGauges(depth, minSeq, maxSeq)
	b.reportEviction(rng)
	return rng.Count()
}

// Len returns the number of retained events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// LastSeq returns the highest sequence number assigned so far.
func (b *Buffer) LastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeq
}

// Stats returns a consistent snapshot of buffer state.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:           b.count,
		MinSeq:          b.minSeqLocked(),
		MaxSeq:          b.lastSeq,
		EvictedCapacity: b.evictedCapacity,
		EvictedAge:      b.evictedAge,
		EvictedUnread:   b.evictedUnread,
	}
}

// minSeqLocked returns the oldest retained sequence, or zero when empty.
func (b *Buffer) minSeqLocked() uint64 {
	if b.count == 0 {
		return 0
	}
	return b.lastSeq - uint64(b.count) + 1
}

// agedCountLocked counts leading entries past MaxAge.
func (b *Buffer) agedCountLocked(now time.Time) int {
	if b.cfg.MaxAge <= 0 {
		return 0
	}
	cutoff := now.Add(-b.cfg.MaxAge)
	n := 0
	for n < b.count {
		e := &b.ring[(b.head+n)%len(b.ring)]
		if e.insertedAt.After(cutoff) {
			break
		}
		n++
	}
	return n
}

// evictLocked removes the oldest n entries and returns the evicted range.
// Eviction is always oldest-first, so the range is contiguous.
func (b *Buffer) evictLocked(n int, cause string) EvictedRange {
	if n <= 0 || b.count == 0 {
		return EvictedRange{}
	}
	if n > b.count {
		n = b.count
	}

	from := b.minSeqLocked()
	unread := 0
	for i := 0; i < n; i++ {
		idx := (b.head + i) % len(b.ring)
		if !b.ring[idx].read {
			unread++
		}
		b.ring[idx] = bufEntry{} // release payload reference
	}
	b.head = (b.head + n) % len(b.ring)
	b.count -= n

	switch cause {
	case CauseCapacity:
		b.evictedCapacity += uint64(n)
	case CauseAge:
		b.evictedAge += uint64(n)
	}
	b.evictedUnread += uint64(unread)

	return EvictedRange{
		From:   from,
		To:     from + uint64(n) - 1,
		Unread: unread,
		Cause:  cause,
	}
}

// reportEviction publishes eviction metrics and fires the unread hook.
// Called outside the buffer lock.
func (b *Buffer) reportEviction(rng EvictedRange) {
	n := rng.Count()
	if n == 0 {
		return
	}
	metrics.RecordEventsEvicted(rng.Cause, n, rng.Unread)
	if rng.Unread > 0 && b.onEvictUnread != nil {
		b.onEvictUnread(rng)
	}
}
