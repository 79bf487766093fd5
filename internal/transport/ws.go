// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/streamcast/internal/record"
)

const (
	// wsHandshakeTimeout bounds the upgrade round trip.
	wsHandshakeTimeout = 10 * time.Second

	// wsControlWait bounds writes of ping and close control frames.
	wsControlWait = 10 * time.Second
)

// WSDialer connects to a stream endpoint over WebSocket. The resume
// cursor and bearer token travel in the upgrade request headers, so the
// server authenticates and positions the session before completing the
// handshake.
type WSDialer struct {
	url   string
	token string
}

// NewWSDialer accepts an http(s) or ws(s) endpoint URL and normalizes the
// scheme for the upgrade.
func NewWSDialer(rawURL, token string) (*WSDialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("stream url scheme must be http, https, ws or wss, got %q", u.Scheme)
	}
	return &WSDialer{url: u.String(), token: token}, nil
}

// Dial performs the WebSocket upgrade and returns the connection. ctx
// bounds the handshake only; once established the connection lives until
// Close.
func (d *WSDialer) Dial(ctx context.Context, cur record.Cursor) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  wsHandshakeTimeout,
		EnableCompression: true,
	}

	header := http.Header{}
	if d.token != "" {
		header.Set("Authorization", "Bearer "+d.token)
	}
	if cur.Valid {
		header.Set("Last-Event-ID", cur.String())
	}

	conn, resp, err := dialer.DialContext(ctx, d.url, header)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, &StatusError{
				Status:     resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header),
				Err:        err,
			}
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	wc := &wsConn{conn: conn}
	conn.SetPongHandler(func(string) error {
		wc.mu.RLock()
		onPong := wc.onPong
		wc.mu.RUnlock()
		if onPong != nil {
			onPong()
		}
		return nil
	})
	return wc, nil
}

// wsConn adapts a gorilla connection to the Conn and Pinger interfaces.
type wsConn struct {
	conn *websocket.Conn

	mu     sync.RWMutex
	onPong func()

	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadRecord() (*record.Record, error) {
	// Pong handlers only run while a read is in flight, which is always
	// the case here: the manager keeps one ReadRecord pending.
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return record.Unmarshal(data)
}

func (c *wsConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsControlWait))
}

func (c *wsConn) OnPong(f func()) {
	c.mu.Lock()
	c.onPong = f
	c.mu.Unlock()
}

// Close sends a close frame best-effort, then tears the connection down.
// A blocked ReadRecord returns with an error.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
