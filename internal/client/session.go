// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package client

import (
	"context"
	"fmt"

	"github.com/tomtom215/streamcast/internal/backoff"
	"github.com/tomtom215/streamcast/internal/heartbeat"
	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/metrics"
	"github.com/tomtom215/streamcast/internal/record"
	"github.com/tomtom215/streamcast/internal/transport"
)

// sessionEnd describes how a connection epoch finished. retry distinguishes
// endings worth another attempt from endings the caller has to act on.
type sessionEnd struct {
	retry bool
	cause string
	err   error
}

// session consumes records from one established connection until the
// connection breaks or a terminal record arrives.
//
// Ordering rules enforced here:
//   - data sequence numbers must strictly increase; a duplicate or
//     regression means the server and client disagree about the stream and
//     the session ends as a protocol failure with no retry
//   - a forward jump is survivable but marks the session gapped, so the
//     next dial resyncs from live instead of resuming over the hole
func (m *Manager) session(ctx context.Context, conn transport.Conn, pol *backoff.Policy) sessionEnd {
	resync := m.isGapped()

	feed, stopLiveness, timedOut, err := m.watchLiveness(conn)
	if err != nil {
		return sessionEnd{cause: causeProtocol, err: fmt.Errorf("client: liveness watcher: %w", err)}
	}
	defer stopLiveness()

	// Closing the connection is the only way to interrupt a blocked read.
	readerDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-readerDone:
		}
	}()
	defer close(readerDone)

	for {
		rec, err := conn.ReadRecord()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return sessionEnd{cause: causeCancelled}
			case timedOut():
				return sessionEnd{retry: true, cause: causeHeartbeat}
			default:
				return sessionEnd{retry: true, cause: transport.Cause(err)}
			}
		}
		m.touchActivity()
		feed()

		if err := rec.Validate(); err != nil {
			return sessionEnd{cause: causeProtocol, err: fmt.Errorf("client: malformed record: %w", err)}
		}

		switch rec.Kind {
		case record.KindMetadata:
			metrics.RecordSessionEstablished()
			m.mu.Lock()
			m.gapped = false
			m.cursor = record.CursorAt(rec.StartSeq)
			m.mu.Unlock()

			code := InfoEstablished
			msg := fmt.Sprintf("stream %s at position %d, %d events to replay", rec.StreamID, rec.StartSeq, rec.Backlog)
			if resync {
				resync = false
				code = InfoResync
				msg = fmt.Sprintf("stream %s resynced from live at position %d", rec.StreamID, rec.StartSeq)
			}
			logging.Info().
				Str("component", "client").
				Str("stream_id", rec.StreamID).
				Uint64("start_seq", rec.StartSeq).
				Uint64("backlog", rec.Backlog).
				Msg("session established")
			if !m.send(ctx, Event{Kind: EventInfo, Code: code, Message: msg, Seq: rec.StartSeq}) {
				return sessionEnd{cause: causeCancelled}
			}

		case record.KindData:
			cur := m.Cursor()
			if cur.Valid && rec.Seq <= cur.Seq {
				return sessionEnd{
					cause: causeProtocol,
					err:   fmt.Errorf("client: sequence %d does not advance cursor %d", rec.Seq, cur.Seq),
				}
			}
			if cur.Valid && rec.Seq > cur.Seq+1 {
				missed := rec.Seq - cur.Seq - 1
				m.markGapped()
				logging.Warn().
					Str("component", "client").
					Uint64("cursor", cur.Seq).
					Uint64("seq", rec.Seq).
					Uint64("missed", missed).
					Msg("sequence gap detected")
				ev := Event{
					Kind:    EventInfo,
					Code:    InfoGapDetected,
					Message: fmt.Sprintf("sequence jumped from %d to %d", cur.Seq, rec.Seq),
					Seq:     rec.Seq,
					Dropped: missed,
				}
				if !m.send(ctx, ev) {
					return sessionEnd{cause: causeCancelled}
				}
			}
			if !m.send(ctx, Event{Kind: EventData, Seq: rec.Seq, Payload: rec.Payload}) {
				return sessionEnd{cause: causeCancelled}
			}
			m.setCursor(record.CursorAt(rec.Seq))

		case record.KindProgress:
			ev := Event{Kind: EventInfo, Code: InfoProgress, Processed: rec.Processed, Total: rec.Total}
			if !m.send(ctx, ev) {
				return sessionEnd{cause: causeCancelled}
			}

		case record.KindHeartbeat:
			// Liveness was fed above; nothing to deliver.

		case record.KindError:
			if end, terminal := m.handleErrorRecord(ctx, rec, pol); terminal {
				return end
			}

		case record.KindStreamEnd:
			return m.handleStreamEnd(rec, pol)
		}
	}
}

// handleErrorRecord applies one server error record. The returned bool says
// whether the session is over.
//
// Cursor rejections deserve their special case: the server is telling us
// our resume position cannot be honored, not that anything is wrong with
// the connection. The manager marks the session gapped and redials without
// a cursor, and the caller hears about it as an advisory rather than a
// failure.
func (m *Manager) handleErrorRecord(ctx context.Context, rec *record.Record, pol *backoff.Policy) (sessionEnd, bool) {
	if hint := rec.RetryAfter(); hint > 0 {
		pol.Hint(hint)
	}

	switch {
	case rec.Code == record.CodeAuthExpired:
		return sessionEnd{cause: causeAuth, err: fmt.Errorf("client: %s", rec.Message)}, true

	case rec.Code == record.CodeCursorExpired || rec.Code == record.CodeUnknownCursor:
		m.markGapped()
		if !m.send(ctx, Event{Kind: EventInfo, Code: rec.Code, Message: rec.Message}) {
			return sessionEnd{cause: causeCancelled}, true
		}
		return sessionEnd{retry: true, cause: rec.Code}, true

	case rec.Code == record.CodeOverflow:
		// The server shed this consumer under pressure. The cursor is still
		// good, so the next session resumes without losing anything.
		if !m.send(ctx, Event{Kind: EventInfo, Code: rec.Code, Message: rec.Message}) {
			return sessionEnd{cause: causeCancelled}, true
		}
		return sessionEnd{retry: true, cause: rec.Code}, true

	case rec.Fatal:
		return sessionEnd{
			cause: rec.Code,
			err:   fmt.Errorf("client: %s: %s", rec.Code, rec.Message),
		}, true

	default:
		if rec.Code == record.CodeEventsDropped {
			m.markGapped()
		}
		ev := Event{Kind: EventInfo, Code: rec.Code, Message: rec.Message, Dropped: rec.Dropped}
		if !m.send(ctx, ev) {
			return sessionEnd{cause: causeCancelled}, true
		}
		return sessionEnd{}, false
	}
}

// handleStreamEnd maps the server's ending to ours. Validate has already
// rejected unknown reasons.
func (m *Manager) handleStreamEnd(rec *record.Record, pol *backoff.Policy) sessionEnd {
	switch rec.Reason {
	case record.EndCompleted:
		return sessionEnd{cause: causeEndComplete}
	case record.EndCancelled:
		return sessionEnd{cause: causeEndCancel}
	case record.EndTimeout:
		return sessionEnd{retry: true, cause: causeEndTimeout}
	case record.EndServerShutdown:
		// The server asked us to come back; skip the first backoff wait so
		// a rolling restart costs one dial, not one dial plus a delay.
		pol.Hint(0)
		return sessionEnd{retry: true, cause: causeEndShutdown}
	default:
		return sessionEnd{retry: true, cause: causeEndError}
	}
}

// watchLiveness starts the liveness watcher appropriate to the transport.
// WebSocket connections expose a probe surface and get an active ping/pong
// monitor. SSE connections are one-directional, so the passive watcher
// treats silence longer than twice the heartbeat cadence as a dead
// connection; the server's heartbeat records are what keep it quiet.
func (m *Manager) watchLiveness(conn transport.Conn) (feed func(), stop func(), timedOut func() bool, err error) {
	onTimeout := func() {
		metrics.RecordHeartbeatTimeout()
		logging.Warn().
			Str("component", "client").
			Msg("heartbeat timeout, closing connection")
		_ = conn.Close()
	}

	if p, ok := conn.(transport.Pinger); ok {
		mon, err := heartbeat.NewMonitor(m.cfg.Heartbeat, heartbeat.Callbacks{
			SendProbe: p.Ping,
			OnTimeout: onTimeout,
			OnRTT:     metrics.ObserveHeartbeatRTT,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		p.OnPong(mon.Pong)
		mon.Start()
		return func() {}, mon.Stop, mon.TimedOut, nil
	}

	pm, err := heartbeat.NewPassiveMonitor(m.cfg.Heartbeat.PingInterval, onTimeout)
	if err != nil {
		return nil, nil, nil, err
	}
	pm.Start()
	return pm.Traffic, pm.Stop, pm.TimedOut, nil
}
