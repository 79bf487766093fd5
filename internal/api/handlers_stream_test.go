// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/streamcast/internal/record"
)

// openSSE attaches to the stream endpoint and returns the live response
// with an SSE reader over its body. The caller owns the body; closing it
// ends the stream and releases the consumer.
func openSSE(t *testing.T, env *testEnv, query string, header http.Header) (*http.Response, *record.SSEReader) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/stream"+query, nil)
	if err != nil {
		t.Fatalf("new request error = %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := env.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("stream status = %d, body %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	return resp, record.NewSSEReader(resp.Body)
}

// nextRecord reads one record under a timeout so a wedged stream fails the
// test instead of hanging it.
func nextRecord(t *testing.T, sr *record.SSEReader) *record.Record {
	t.Helper()

	type result struct {
		rec *record.Record
		err error
	}
	ch := make(chan result, 1)
	go func() {
		rec, err := sr.Next()
		ch <- result{rec: rec, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("Next() error = %v", res.err)
		}
		return res.rec
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sse record")
	}
	return nil
}

func TestStreamSSEFreshAttach(t *testing.T) {
	env := newTestEnv(t, testConfig())

	// History published before the attach must not replay.
	env.publishEvent(t, `{"n":1}`)
	env.publishEvent(t, `{"n":2}`)

	resp, sr := openSSE(t, env, "", nil)
	defer resp.Body.Close()

	meta := nextRecord(t, sr)
	if meta.Kind != record.KindMetadata {
		t.Fatalf("first record kind = %s, want %s", meta.Kind, record.KindMetadata)
	}
	if meta.StreamID == "" {
		t.Error("metadata stream_id is empty")
	}
	if meta.StartSeq != 2 {
		t.Errorf("metadata start_seq = %d, want 2", meta.StartSeq)
	}
	if meta.Backlog != 0 {
		t.Errorf("metadata backlog = %d, want 0", meta.Backlog)
	}

	env.publishEvent(t, `{"n":3}`)

	data := nextRecord(t, sr)
	if data.Kind != record.KindData {
		t.Fatalf("record kind = %s, want %s", data.Kind, record.KindData)
	}
	if data.Seq != 3 {
		t.Errorf("data seq = %d, want 3", data.Seq)
	}
	if !strings.Contains(string(data.Payload), `"n":3`) {
		t.Errorf("data payload = %s, want to contain \"n\":3", data.Payload)
	}

	resp.Body.Close()
	waitFor(t, 2*time.Second, func() bool { return env.hub.Stats().Consumers == 0 }, "consumer not released after disconnect")
}

func TestStreamSSEResume(t *testing.T) {
	env := newTestEnv(t, testConfig())

	env.publishEvent(t, `{"n":1}`)
	env.publishEvent(t, `{"n":2}`)
	env.publishEvent(t, `{"n":3}`)

	header := http.Header{}
	header.Set("Last-Event-ID", "1")
	resp, sr := openSSE(t, env, "", header)
	defer resp.Body.Close()

	meta := nextRecord(t, sr)
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
		data := nextRecord(t, sr)
		if data.Kind != record.KindData {
			t.Fatalf("record kind = %s, want %s", data.Kind, record.KindData)
		}
		if data.Seq != want {
			t.Errorf("data seq = %d, want %d", data.Seq, want)
		}
	}
}

func TestStreamSSEBadParams(t *testing.T) {
	env := newTestEnv(t, testConfig())

	cases := []struct {
		name    string
		query   string
		wantMsg string
	}{
		{name: "non-numeric window", query: "?buffer=abc", wantMsg: "Buffer must be numeric"},
		{name: "zero window", query: "?buffer=0", wantMsg: "positive integer"},
		{name: "unknown overflow policy", query: "?overflow=bogus", wantMsg: "Overflow must be one of"},
		{name: "malformed cursor", query: "?cursor=abc", wantMsg: "Cursor must be a decimal sequence number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(env.srv.URL + "/api/v1/stream" + tc.query)
			if err != nil {
				t.Fatalf("request error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
			out := decodeEnvelope(t, resp.Body)
			if out.Error == nil || out.Error.Code != ErrCodeBadRequest {
				t.Fatalf("error = %+v, want %s", out.Error, ErrCodeBadRequest)
			}
			if !strings.Contains(out.Error.Message, tc.wantMsg) {
				t.Errorf("message = %q, want to contain %q", out.Error.Message, tc.wantMsg)
			}
		})
	}
}

func TestStreamSSEConsumerLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Stream.MaxConsumers = 1
	env := newTestEnv(t, cfg)

	resp, sr := openSSE(t, env, "", nil)
	defer resp.Body.Close()
	nextRecord(t, sr)

	second, err := http.Get(env.srv.URL + "/api/v1/stream")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer second.Body.Close()

	if second.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", second.StatusCode, http.StatusServiceUnavailable)
	}
	if got := second.Header.Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
	out := decodeEnvelope(t, second.Body)
	if out.Error == nil || out.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("error = %+v, want %s", out.Error, ErrCodeServiceUnavailable)
	}
}

func TestStreamSSEServerShutdown(t *testing.T) {
	env := newTestEnv(t, testConfig())

	resp, sr := openSSE(t, env, "", nil)
	defer resp.Body.Close()
	nextRecord(t, sr)

	env.drainHub(t)

	end := nextRecord(t, sr)
	if end.Kind != record.KindStreamEnd {
		t.Fatalf("record kind = %s, want %s", end.Kind, record.KindStreamEnd)
	}
	if end.Reason != record.EndServerShutdown {
		t.Errorf("reason = %s, want %s", end.Reason, record.EndServerShutdown)
	}

	// New attaches are refused while draining, with a short retry hint so
	// clients reconnect after the restart.
	late, err := http.Get(env.srv.URL + "/api/v1/stream")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer late.Body.Close()

	if late.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", late.StatusCode, http.StatusServiceUnavailable)
	}
	if got := late.Header.Get("Retry-After"); got != "5" {
		t.Errorf("Retry-After = %q, want 5", got)
	}
}
