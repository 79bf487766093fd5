// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/streamcast/internal/record"
)

// wsURL rewrites the test server's base URL to the websocket scheme.
func wsURL(env *testEnv, query string) string {
	return "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/stream/ws" + query
}

// dialWS opens a websocket stream that is expected to succeed. The
// connection is closed automatically at test end.
func dialWS(t *testing.T, env *testEnv, query string, header http.Header) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env, query), header)
	if err != nil {
		status := "(no response)"
		if resp != nil {
			status = resp.Status
			resp.Body.Close()
		}
		t.Fatalf("dial error = %v, handshake status %s", err, status)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readWSRecord reads one record message under a deadline.
func readWSRecord(t *testing.T, conn *websocket.Conn) *record.Record {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	rec, err := record.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return rec
}

func TestStreamWSAttach(t *testing.T) {
	env := newTestEnv(t, testConfig())

	env.publishEvent(t, `{"n":1}`)

	conn := dialWS(t, env, "", nil)

	meta := readWSRecord(t, conn)
	if meta.Kind != record.KindMetadata {
		t.Fatalf("first record kind = %s, want %s", meta.Kind, record.KindMetadata)
	}
	if meta.StartSeq != 1 {
		t.Errorf("metadata start_seq = %d, want 1", meta.StartSeq)
	}
	if meta.Backlog != 0 {
		t.Errorf("metadata backlog = %d, want 0", meta.Backlog)
	}

	env.publishEvent(t, `{"n":2}`)

	data := readWSRecord(t, conn)
	if data.Kind != record.KindData {
		t.Fatalf("record kind = %s, want %s", data.Kind, record.KindData)
	}
	if data.Seq != 2 {
		t.Errorf("data seq = %d, want 2", data.Seq)
	}

	conn.Close()
	waitFor(t, 2*time.Second, func() bool { return env.hub.Stats().Consumers == 0 }, "consumer not released after disconnect")
}

func TestStreamWSResume(t *testing.T) {
	env := newTestEnv(t, testConfig())

	env.publishEvent(t, `{"n":1}`)
	env.publishEvent(t, `{"n":2}`)
	env.publishEvent(t, `{"n":3}`)

	header := http.Header{}
	header.Set("Last-Event-ID", "1")
	conn := dialWS(t, env, "", header)

	meta := readWSRecord(t, conn)
	if meta.Kind != record.KindMetadata {
		t.Fatalf("first record kind = %s, want %s", meta.Kind, record.KindMetadata)
	}
	if meta.StartSeq != 1 {
		t.Errorf("metadata start_seq = %d, want 1", meta.StartSeq)
	}
	if meta.Backlog != 2 {
		t.Errorf("metadata backlog = %d, want 2", meta.Backlog)
	}

	for want := uint64(2); want <= 3; want++ {
		data := readWSRecord(t, conn)
		if data.Seq != want {
			t.Errorf("data seq = %d, want %d", data.Seq, want)
		}
	}
}

func TestStreamWSOriginPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Security.CORSOrigins = []string{"http://app.example.com"}
	env := newTestEnv(t, cfg)

	t.Run("disallowed origin is refused", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "http://evil.example.com")

		conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env, ""), header)
		if err == nil {
			conn.Close()
			t.Fatal("dial succeeded, want handshake rejection")
		}
		if !errors.Is(err, websocket.ErrBadHandshake) {
			t.Fatalf("dial error = %v, want %v", err, websocket.ErrBadHandshake)
		}
		if resp == nil {
			t.Fatal("handshake response missing")
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("handshake status = %d, want %d", resp.StatusCode, http.StatusForbidden)
		}
	})

	t.Run("allowed origin connects", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "http://app.example.com")

		conn := dialWS(t, env, "", header)
		meta := readWSRecord(t, conn)
		if meta.Kind != record.KindMetadata {
			t.Errorf("first record kind = %s, want %s", meta.Kind, record.KindMetadata)
		}
	})
}

func TestStreamWSBadParams(t *testing.T) {
	env := newTestEnv(t, testConfig())

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(env, "?buffer=abc"), nil)
	if err == nil {
		conn.Close()
		t.Fatal("dial succeeded, want handshake rejection")
	}
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("dial error = %v, want %v", err, websocket.ErrBadHandshake)
	}
	if resp == nil {
		t.Fatal("handshake response missing")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("handshake status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
