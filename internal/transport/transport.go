// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package transport provides the client-side connection layer: dialers
// that establish SSE or WebSocket sessions against a stream endpoint and
// a uniform Conn abstraction the reconnect manager consumes. Failure
// classification lives here too, so the manager can decide between
// retrying, honoring a server hint, and giving up without knowing which
// transport it is running over.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/streamcast/internal/record"
)

// Conn is an established stream session delivering protocol records.
type Conn interface {
	// ReadRecord blocks until the next record arrives or the connection
	// fails. After an error the connection is unusable.
	ReadRecord() (*record.Record, error)

	// Close tears the connection down. It is safe to call concurrently
	// with ReadRecord; a blocked read returns with an error. Close is
	// idempotent.
	Close() error
}

// Pinger is implemented by connections that support transport-level
// liveness probes. WebSocket sessions do; SSE sessions rely on server
// heartbeat records instead.
type Pinger interface {
	// Ping sends a probe frame. The peer answers out of band; register
	// OnPong to observe the answer.
	Ping() error

	// OnPong registers f to run on every pong frame. Must be called
	// before the first ReadRecord.
	OnPong(f func())
}

// Dialer establishes connections for the reconnect manager.
type Dialer interface {
	// Dial connects and resumes from cur. A zero cursor requests a fresh
	// session at the stream's current position. ctx bounds connection
	// establishment; for request-scoped transports it must stay valid
	// for the connection's lifetime, so callers pass a session context
	// and cancel it on teardown.
	Dial(ctx context.Context, cur record.Cursor) (Conn, error)
}

// StatusError reports a connection attempt the server rejected at the
// HTTP layer, carrying any Retry-After hint it sent along.
type StatusError struct {
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *StatusError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("connection rejected (HTTP %d, retry after %s)", e.Status, e.RetryAfter)
	}
	return fmt.Sprintf("connection rejected (HTTP %d)", e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether the rejection means the presented credentials
// are no longer acceptable.
func (e *StatusError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Fatal reports whether retrying with the same request can ever succeed.
// Server overload and rate limiting are temporary; credential and client
// errors are not.
func (e *StatusError) Fatal() bool {
	switch {
	case e.IsAuth():
		return true
	case e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout:
		return false
	case e.Status >= 500:
		return false
	default:
		return e.Status >= 400
	}
}

// RetryAfterHint extracts a server-provided retry delay from a dial
// error, when one was sent.
func RetryAfterHint(err error) (time.Duration, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter, true
	}
	return 0, false
}

// IsAuthRejection reports whether err represents rejected credentials.
func IsAuthRejection(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.IsAuth()
}

// IsFatalDial reports whether a dial failure is permanent for the
// current credentials and request. Network-level failures are never
// fatal; the server may simply be down.
func IsFatalDial(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Fatal()
}

// Cause labels a connection failure for logs and metrics.
func Cause(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, record.ErrStreamClosed), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "stream-closed"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return "remote-close"
	case websocket.IsUnexpectedCloseError(err):
		return "abnormal-close"
	case isNetTimeout(err):
		return "timeout"
	case IsAuthRejection(err):
		return "auth-rejected"
	case IsFatalDial(err):
		return "rejected"
	case isStatusError(err):
		return "server-unavailable"
	default:
		return "network"
	}
}

func isStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// parseRetryAfter reads a Retry-After header in either delta-seconds or
// HTTP-date form. Absent or malformed values yield zero.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
