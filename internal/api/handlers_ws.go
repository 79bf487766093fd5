// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/record"
)

const (
	// wsReadLimit bounds inbound frames. Consumers send nothing but
	// control frames on this endpoint, so anything larger is a protocol
	// violation, not a legitimate message.
	wsReadLimit = 1024

	// wsReadWait is how long the connection may go without any inbound
	// frame before the server declares the client dead. Clients ping on
	// their heartbeat cadence, which sits well inside this.
	wsReadWait = 90 * time.Second

	// wsCloseGrace bounds the close handshake write at session end.
	wsCloseGrace = time.Second
)

// wsWriter frames records as WebSocket text messages, one record per
// message, each written under a deadline. It implements hub.RecordWriter.
type wsWriter struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (ww *wsWriter) WriteRecord(r *record.Record) error {
	data, err := record.Marshal(r)
	if err != nil {
		return err
	}
	if err := ww.conn.SetWriteDeadline(time.Now().Add(ww.timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return ww.conn.WriteMessage(websocket.TextMessage, data)
}

// getUpgrader returns a WebSocket upgrader with origin checking configured.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkWebSocketOrigin,
	}
}

// checkWebSocketOrigin validates the Origin header against the configured
// CORS origins.
//
// Requests without an Origin header are allowed: they come from non-browser
// clients, which authenticate like any other request and gain nothing by
// omitting a header a browser would forge anyway. Browser requests must
// match the allowlist, which closes cross-site WebSocket hijacking.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().
		Str("component", "api").
		Str("origin", sanitizeLogValue(origin)).
		Msg("websocket connection rejected: origin not allowed")
	return false
}

// StreamWS serves GET /api/v1/stream/ws as a WebSocket stream.
//
// Cursor, flow control parameters and credentials are carried on the
// upgrade request, so admission errors reject the handshake with a regular
// HTTP response and a Retry-After hint. After the upgrade every record is
// one text message; client pings are answered with pongs automatically
// while the read loop below keeps a read pending.
func (h *Handler) StreamWS(w http.ResponseWriter, r *http.Request) {
	// Admission runs before the upgrade so rejections reach the client as
	// HTTP errors rather than an upgrade followed by an immediate close.
	// The writer's connection is attached after the handshake.
	ww := &wsWriter{timeout: h.cfg.Stream.WriteTimeout}
	c, ok := h.registerConsumer(w, r, "websocket", ww)
	if !ok {
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own handshake error response.
		h.hub.Deregister(c)
		logging.Debug().
			Err(err).
			Str("component", "api").
			Str("stream_id", c.StreamID()).
			Msg("websocket upgrade failed")
		return
	}
	ww.conn = conn

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stopExpiry := scheduleExpiry(r.Context(), c)
	defer stopExpiry()

	logging.Debug().
		Str("component", "api").
		Str("stream_id", c.StreamID()).
		Str("request_id", logging.RequestIDFromContext(r.Context())).
		Msg("websocket stream opened")

	// The server never reads data from consumers, but a pending read is
	// what detects disconnects and lets gorilla answer pings with pongs.
	go h.wsReadLoop(conn, cancel)

	runErr := c.Run(ctx)

	// Best-effort close handshake; the client may already be gone.
	deadline := time.Now().Add(wsCloseGrace)
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	_ = conn.Close()

	if runErr != nil {
		logging.Debug().
			Err(runErr).
			Str("component", "api").
			Str("stream_id", c.StreamID()).
			Msg("websocket session ended with transport error")
	}
}

// wsReadLoop drains inbound frames until the connection dies, then cancels
// the session. The read deadline is pushed forward on every ping, so a
// silently vanished client is reaped after wsReadWait even if the outbound
// side is idle between heartbeats.
func (h *Handler) wsReadLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(wsReadLimit)
	if err := conn.SetReadDeadline(time.Now().Add(wsReadWait)); err != nil {
		return
	}
	conn.SetPingHandler(func(appData string) error {
		if err := conn.SetReadDeadline(time.Now().Add(wsReadWait)); err != nil {
			return err
		}
		// Mirror the default handler's pong reply.
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(wsCloseGrace))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(wsReadWait)); err != nil {
			return
		}
	}
}
