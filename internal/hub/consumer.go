// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/streamcast/internal/eventbuffer"
	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/metrics"
	"github.com/tomtom215/streamcast/internal/record"
)

// replayProgressEvery controls how often a progress record is interleaved
// into a large replay so the client can render catch-up state.
const replayProgressEvery = 500

// RecordWriter delivers a single protocol record to a consumer's transport.
// Implementations own framing and write deadlines; a returned error means
// the connection is unusable and the consumer will be torn down.
type RecordWriter interface {
	WriteRecord(r *record.Record) error
}

// terminal carries the optional final error record and the stream-end
// reason from whoever decides to end a session to the writer goroutine.
type terminal struct {
	errRec *record.Record
	reason record.EndReason
}

// cause maps a terminal to the disconnect-reason label used in metrics
// and logs.
func (t terminal) cause() string {
	if t.errRec != nil {
		switch t.errRec.Code {
		case record.CodeOverflow:
			return "overflow"
		case record.CodeCursorExpired:
			return "cursor-expired"
		case record.CodeUnknownCursor:
			return "unknown-cursor"
		case record.CodeAuthExpired:
			return "auth-expired"
		}
	}
	return string(t.reason)
}

// Consumer is one attached client session. Each consumer runs two
// goroutines: a feeder that follows the shared buffer from the consumer's
// cursor and queues records into the flow-control window, and a writer that
// drains the window onto the transport and emits idle heartbeats.
//
// The split means one stalled transport never blocks the buffer or any
// other consumer; pressure is absorbed by the window according to its
// overflow policy.
type Consumer struct {
	// id is a monotonically increasing registration number.
	//
	// DETERMINISM: ids give consumers a stable total order, so shutdown
	// broadcasts and stats snapshots iterate identically on every run.
	id uint64

	streamID    string
	transport   string
	connectedAt time.Time

	hub    *Hub
	buf    *eventbuffer.Buffer
	window *Window
	out    RecordWriter

	// cursor is owned by the feeder goroutine once Run starts.
	cursor record.Cursor

	heartbeatEvery time.Duration

	term       chan terminal
	termOnce   sync.Once
	feederDone chan struct{}

	// disconnectCause is set by the writer goroutine before Run returns
	// and read by unregister afterwards.
	disconnectCause string
}

// StreamID returns the per-session identifier announced in the metadata
// record.
func (c *Consumer) StreamID() string {
	return c.streamID
}

// Transport returns the transport label the consumer attached over.
func (c *Consumer) Transport() string {
	return c.transport
}

// terminate schedules the end of the session. The first caller wins; the
// writer goroutine delivers errRec (if any) followed by a stream-end record
// with the given reason. Terminal records bypass the window because the
// window may be full or closed when the decision is made.
func (c *Consumer) terminate(errRec *record.Record, reason record.EndReason) {
	c.termOnce.Do(func() {
		c.term <- terminal{errRec: errRec, reason: reason}
	})
}

// Expire ends the session because the credentials it was admitted under
// have lapsed. The client receives a fatal auth error followed by a
// stream end, and is expected to reauthenticate and resume from its last
// delivered cursor.
func (c *Consumer) Expire() {
	c.terminate(record.NewError(record.CodeAuthExpired,
		"authorization expired; reauthenticate and resume from your last cursor", true),
		record.EndError)
}

// Run drives the session until the context is canceled, the transport
// fails, or a terminal condition is reached. It always unregisters the
// consumer from the hub before returning. The returned error is nil for
// normal client disconnects and orderly stream ends.
func (c *Consumer) Run(ctx context.Context) error {
	feedCtx, cancelFeed := context.WithCancel(ctx)
	defer func() {
		cancelFeed()
		c.window.Close()
		<-c.feederDone
		c.hub.unregister(c)
	}()

	go c.feed(feedCtx)
	return c.writeLoop(ctx)
}

// feed follows the shared buffer from the consumer's cursor. It emits the
// metadata record first, replays the backlog with interleaved progress
// records, then tails new appends until canceled.
func (c *Consumer) feed(ctx context.Context) {
	defer close(c.feederDone)

	// Subscribe before the first snapshot so appends that land between
	// ReadAfter and the wait below are never missed.
	notify := c.buf.AppendNotify()
	events, next, status := c.buf.ReadAfter(c.cursor)
	if !c.checkReadStatus(status) {
		return
	}

	// A resumed session starts at the accepted cursor; a fresh session
	// starts at the buffer's current position and replays nothing.
	startSeq := c.cursor.Seq
	if !c.cursor.Valid {
		startSeq = next.Seq
	}
	metrics.RecordReplayBacklog(len(events))
	meta := record.NewMetadata(c.streamID, startSeq, uint64(len(events)))
	if err := c.enqueue(ctx, meta); err != nil {
		c.onEnqueueError(err)
		return
	}
	if err := c.enqueueEvents(ctx, events); err != nil {
		c.onEnqueueError(err)
		return
	}
	c.cursor = next

	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
		}

		notify = c.buf.AppendNotify()
		events, next, status = c.buf.ReadAfter(c.cursor)
		if !c.checkReadStatus(status) {
			return
		}
		if err := c.enqueueEvents(ctx, events); err != nil {
			c.onEnqueueError(err)
			return
		}
		c.cursor = next
	}
}

// checkReadStatus terminates the session when the cursor can no longer be
// honored. Mid-session expiry happens when a consumer under the buffer
// policy stalls long enough for retention to pass its position.
func (c *Consumer) checkReadStatus(status eventbuffer.ReadStatus) bool {
	switch status {
	case eventbuffer.ReadExpired:
		c.terminate(record.NewError(record.CodeCursorExpired,
			"cursor is older than buffer retention; reconnect without a cursor to resync", true),
			record.EndError)
		return false
	case eventbuffer.ReadUnknown:
		c.terminate(record.NewError(record.CodeUnknownCursor,
			"cursor was never issued by this stream; reconnect without a cursor to resync", true),
			record.EndError)
		return false
	}
	return true
}

// enqueue pushes one record through the window, preceded by an
// events-dropped advisory whenever discarded records are pending and space
// has freed up.
func (c *Consumer) enqueue(ctx context.Context, r *record.Record) error {
	if n := c.window.TakePendingDrops(); n > 0 {
		adv := record.NewError(record.CodeEventsDropped,
			fmt.Sprintf("%d events dropped under %s overflow policy", n, c.window.Policy()), false)
		adv.Dropped = n
		if err := c.window.Enqueue(ctx, adv); err != nil {
			return err
		}
	}
	return c.window.Enqueue(ctx, r)
}

// enqueueEvents queues a batch of buffer events as data records. Batches
// larger than replayProgressEvery get progress records interleaved.
func (c *Consumer) enqueueEvents(ctx context.Context, events []eventbuffer.Event) error {
	total := uint64(len(events))
	for i, ev := range events {
		if err := c.enqueue(ctx, record.NewData(ev.Seq, ev.Payload)); err != nil {
			return err
		}
		done := uint64(i + 1)
		if total > replayProgressEvery && done%replayProgressEvery == 0 && done < total {
			if err := c.enqueue(ctx, record.NewProgress(done, total)); err != nil {
				return err
			}
		}
	}
	return nil
}

// onEnqueueError classifies a failed enqueue. Only the error overflow
// policy produces a terminal record; cancellation and window closure mean
// the writer side is already tearing the session down.
func (c *Consumer) onEnqueueError(err error) {
	if err == ErrWindowOverflow {
		c.terminate(record.NewError(record.CodeOverflow,
			"outbound window overflowed; resume from your last cursor", true),
			record.EndError)
	}
}

// writeLoop drains the window onto the transport. Termination and
// cancellation take priority over queued records so shutdown stays prompt;
// any records left undelivered are recoverable through the client's cursor.
func (c *Consumer) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.heartbeatEvery)
	defer ticker.Stop()
	lastWrite := time.Now()

	write := func(r *record.Record) error {
		if err := c.out.WriteRecord(r); err != nil {
			return err
		}
		lastWrite = time.Now()
		metrics.RecordRecordSent(string(r.Kind))
		return nil
	}

	for {
		// Priority 1: session end signals, checked without blocking.
		select {
		case <-ctx.Done():
			c.disconnectCause = "cancelled"
			return nil
		case t := <-c.term:
			return c.finish(write, t)
		default:
		}

		// Priority 2: queued records.
		if r, ok := c.window.TryDequeue(); ok {
			if err := write(r); err != nil {
				c.disconnectCause = "write-error"
				return fmt.Errorf("write record: %w", err)
			}
			continue
		}

		// Idle: block until something happens.
		select {
		case <-ctx.Done():
			c.disconnectCause = "cancelled"
			return nil
		case t := <-c.term:
			return c.finish(write, t)
		case <-c.window.NotEmpty():
		case <-ticker.C:
			if time.Since(lastWrite) < c.heartbeatEvery {
				continue
			}
			if err := write(record.NewHeartbeat()); err != nil {
				c.disconnectCause = "write-error"
				return fmt.Errorf("write heartbeat: %w", err)
			}
		}
	}
}

// finish delivers the terminal error record (if any) and the stream-end
// record. Write failures here are logged, not returned: the session is
// over either way and the client recovers through reconnect semantics.
func (c *Consumer) finish(write func(*record.Record) error, t terminal) error {
	c.disconnectCause = t.cause()
	if t.errRec != nil {
		if err := write(t.errRec); err != nil {
			logging.Debug().
				Err(err).
				Str("stream_id", c.streamID).
				Msg("failed to deliver terminal error record")
			return nil
		}
	}
	if err := write(record.NewStreamEnd(t.reason)); err != nil {
		logging.Debug().
			Err(err).
			Str("stream_id", c.streamID).
			Msg("failed to deliver stream-end record")
	}
	return nil
}
