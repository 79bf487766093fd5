// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/tomtom215/streamcast/internal/record"
)

// SSEDialer connects to a stream endpoint over Server-Sent Events.
//
// The resume cursor rides the Last-Event-ID request header, matching what
// browsers send natively on EventSource reconnects, so the same server
// endpoint serves both this dialer and plain EventSource clients.
type SSEDialer struct {
	url    string
	token  string
	client *http.Client
}

// NewSSEDialer validates the endpoint URL and returns a dialer. A nil
// client gets a dedicated http.Client without a global timeout; a timeout
// there would kill the long-lived streaming body.
func NewSSEDialer(rawURL, token string, client *http.Client) (*SSEDialer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("stream url scheme must be http or https, got %q", u.Scheme)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &SSEDialer{url: rawURL, token: token, client: client}, nil
}

// Dial performs the streaming GET and hands back a connection once the
// server has committed to an event stream. ctx must stay valid for the
// connection's lifetime; canceling it aborts in-flight reads.
func (d *SSEDialer) Dial(ctx context.Context, cur record.Cursor) (Conn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}
	if cur.Valid {
		req.Header.Set("Last-Event-ID", cur.String())
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sse dial: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		hint := parseRetryAfter(resp.Header)
		drainAndClose(resp.Body)
		return nil, &StatusError{Status: resp.StatusCode, RetryAfter: hint}
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("sse dial: unexpected content type %q", ct)
	}

	return &sseConn{body: resp.Body, reader: record.NewSSEReader(resp.Body)}, nil
}

// drainAndClose reads a bounded amount of the body so the underlying
// connection can be reused, then closes it.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, body, 4096)
	_ = body.Close()
}

// sseConn adapts a streaming response body to the Conn interface.
type sseConn struct {
	body   io.ReadCloser
	reader *record.SSEReader

	closeOnce sync.Once
	closeErr  error
}

func (c *sseConn) ReadRecord() (*record.Record, error) {
	return c.reader.Next()
}

func (c *sseConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.body.Close()
	})
	return c.closeErr
}
