// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package main implements tail, a reference stream consumer for
// Streamcast.
//
// tail attaches to a stream endpoint, follows it across connection
// drops and server restarts, and writes each delivered event payload
// to stdout as one line. Lifecycle transitions and advisory
// notifications go to stderr prefixed with "#", so payload output
// stays clean for piping.
//
// The resume position is managed automatically. The -cursor flag seeds
// the first attach; from then on the client tracks the last delivered
// sequence number itself and resumes from it on every reconnect. A
// session that had to restart past an expired cursor is reported as a
// resync advisory rather than silently losing the gap.
//
// # Example Usage
//
// Follow a stream from its current position:
//
//	tail -url http://localhost:8937/api/v1/stream
//
// Resume after the last processed event, over WebSocket, with a wider
// send window:
//
//	STREAMCAST_TOKEN=<token> tail -transport ws -cursor 41523 -buffer 256
//
// Exit status is 0 after a clean stream end or an interrupt, 1 when the
// server rejects the session or the retry budget runs out, and 2 for
// usage errors.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/streamcast/internal/backoff"
	"github.com/tomtom215/streamcast/internal/client"
	"github.com/tomtom215/streamcast/internal/heartbeat"
	"github.com/tomtom215/streamcast/internal/hub"
	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/record"
	"github.com/tomtom215/streamcast/internal/transport"
)

var (
	endpoint  = flag.String("url", "http://localhost:8937/api/v1/stream", "stream endpoint URL")
	transp    = flag.String("transport", "sse", "transport: sse or ws")
	token     = flag.String("token", "", "bearer token (falls back to STREAMCAST_TOKEN)")
	cursor    = flag.String("cursor", "", "sequence number of the last processed event, for resume")
	window    = flag.Int("buffer", 0, "per-session send window size (0 keeps the server default)")
	overflow  = flag.String("overflow", "", "window overflow policy: buffer, drop-oldest, drop-latest or error (empty keeps the server default)")
	retries   = flag.Int("retries", 0, "consecutive failed attempts before giving up (0 retries forever)")
	retryBase = flag.Duration("retry-base", 0, "minimum reconnect delay (0 uses the default)")
	retryMax  = flag.Duration("retry-max", 0, "maximum reconnect delay (0 uses the default)")
	pingEvery = flag.Duration("heartbeat", 0, "liveness probe interval (0 uses the default)")
	withSeq   = flag.Bool("seq", false, "prefix each payload with its sequence number and a tab")
	verbose   = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: "console", Timestamp: true})

	target, err := streamURL(*endpoint, *cursor, *window, *overflow)
	if err != nil {
		fail(err.Error())
	}

	bearer := *token
	if bearer == "" {
		bearer = os.Getenv("STREAMCAST_TOKEN")
	}

	var dialer transport.Dialer
	switch *transp {
	case "sse":
		dialer, err = transport.NewSSEDialer(target, bearer, nil)
	case "ws":
		dialer, err = transport.NewWSDialer(target, bearer)
	default:
		fail("transport must be sse or ws, got %q", *transp)
	}
	if err != nil {
		fail(err.Error())
	}

	mgr, err := client.New(client.Config{
		Dialer:      dialer,
		Backoff:     backoff.Config{BaseDelay: *retryBase, MaxDelay: *retryMax},
		MaxAttempts: *retries,
		Heartbeat:   heartbeat.Config{PingInterval: *pingEvery},
	})
	if err != nil {
		fail(err.Error())
	}
	if err := mgr.Connect(); err != nil {
		fail(err.Error())
	}

	os.Exit(follow(mgr))
}

// streamURL validates the endpoint and folds the session parameters into
// its query string. The cursor parameter only positions the first attach;
// once a session has established, the client resumes from its own cursor
// via the Last-Event-ID header, which the server prefers.
func streamURL(raw, cur string, window int, policy string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}

	q := u.Query()
	if cur != "" {
		if _, err := record.ParseCursor(cur); err != nil {
			return "", err
		}
		q.Set("cursor", cur)
	}
	if window < 0 {
		return "", fmt.Errorf("buffer must not be negative, got %d", window)
	}
	if window > 0 {
		q.Set("buffer", strconv.Itoa(window))
	}
	if policy != "" {
		if _, err := hub.ParseOverflowPolicy(policy); err != nil {
			return "", err
		}
		q.Set("overflow", policy)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// follow drains the notification channel until the client reaches a
// terminal state, rendering as it goes. An interrupt disconnects cleanly
// and flushes whatever the client had already queued.
func follow(mgr *client.Manager) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	events := mgr.Events()
	for {
		select {
		case ev := <-events:
			if code, done := render(ev); done {
				return code
			}
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "# received %s, disconnecting\n", sig)
			mgr.Disconnect()
			for {
				select {
				case ev := <-events:
					if code, done := render(ev); done {
						return code
					}
				default:
					return 0
				}
			}
		}
	}
}

// render writes one notification and reports whether it ends the run.
// Terminal transitions carry a non-nil Err exactly when the ending is a
// failure, so the exit code falls out of the event itself.
func render(ev client.Event) (code int, done bool) {
	switch ev.Kind {
	case client.EventData:
		if *withSeq {
			fmt.Printf("%d\t%s\n", ev.Seq, ev.Payload)
		} else {
			fmt.Printf("%s\n", ev.Payload)
		}
	case client.EventTransition:
		fmt.Fprintln(os.Stderr, "# "+ev.String())
		if ev.To == client.StateDisconnected || ev.To == client.StateFailed {
			if ev.Err != nil {
				return 1, true
			}
			return 0, true
		}
	case client.EventInfo:
		fmt.Fprintln(os.Stderr, "# "+ev.String())
	}
	return 0, false
}

// fail reports a usage error and exits with the conventional flag
// package status.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tail: "+format+"\n", args...)
	os.Exit(2)
}
