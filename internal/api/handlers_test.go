// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/streamcast/internal/auth"
	"github.com/tomtom215/streamcast/internal/config"
	"github.com/tomtom215/streamcast/internal/eventbuffer"
	"github.com/tomtom215/streamcast/internal/hub"
	"github.com/tomtom215/streamcast/internal/ingest"
	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/middleware"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// testConfig returns a configuration tuned for fast tests: a tiny payload
// limit, a tight consumer cap, rate limiting off, and heartbeats pushed out
// far enough that they never interleave with assertions.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1"},
		Buffer: config.BufferConfig{MaxEntries: 64},
		Stream: config.StreamConfig{
			WindowSize:        16,
			OverflowPolicy:    "buffer",
			WriteTimeout:      2 * time.Second,
			HeartbeatInterval: time.Hour,
			MaxPayloadBytes:   512,
			MaxConsumers:      4,
		},
		Ingest: config.IngestConfig{
			Topic:         "events.published",
			BufferSize:    16,
			RetryCount:    1,
			RetryInterval: 5 * time.Millisecond,
			PoisonEnabled: true,
			PoisonTopic:   "events.poison",
			CloseTimeout:  2 * time.Second,
		},
		Security: config.SecurityConfig{
			AuthMode:          "none",
			RateLimitDisabled: true,
			CORSOrigins:       []string{"*"},
		},
	}
}

// testEnv wires a buffer, hub, running ingest pipeline, and the full router
// into an httptest server, the same composition the real server uses.
type testEnv struct {
	cfg     *config.Config
	buf     *eventbuffer.Buffer
	hub     *hub.Hub
	ingest  *ingest.Service
	handler *Handler
	srv     *httptest.Server
	stopHub context.CancelFunc
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	buf := eventbuffer.New(eventbuffer.Config{MaxEntries: cfg.Buffer.MaxEntries})

	policy, err := hub.ParseOverflowPolicy(cfg.Stream.OverflowPolicy)
	if err != nil {
		t.Fatalf("ParseOverflowPolicy() error = %v", err)
	}
	hb := hub.New(hub.Config{
		WindowSize:        cfg.Stream.WindowSize,
		OverflowPolicy:    policy,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		MaxConsumers:      cfg.Stream.MaxConsumers,
	}, buf)

	svc, err := ingest.NewService(cfg.Ingest, buf)
	if err != nil {
		t.Fatalf("ingest.NewService() error = %v", err)
	}
	ingestCtx, stopIngest := context.WithCancel(context.Background())
	ingestDone := make(chan error, 1)
	go func() { ingestDone <- svc.Run(ingestCtx) }()
	select {
	case <-svc.Running():
	case <-time.After(2 * time.Second):
		stopIngest()
		t.Fatal("ingest pipeline did not start")
	}
	t.Cleanup(func() {
		stopIngest()
		select {
		case <-ingestDone:
		case <-time.After(5 * time.Second):
			t.Error("ingest pipeline did not stop")
		}
		_ = svc.Close()
	})

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan error, 1)
	go func() { hubDone <- hb.Run(hubCtx) }()
	t.Cleanup(func() {
		stopHub()
		select {
		case <-hubDone:
		case <-time.After(5 * time.Second):
			t.Error("hub did not stop")
		}
	})

	gate, err := auth.NewGate(cfg.Security)
	if err != nil {
		t.Fatalf("auth.NewGate() error = %v", err)
	}

	handler := NewHandler(cfg, hb, svc, nil, middleware.NewPerformanceMonitor(64))
	srv := httptest.NewServer(NewRouter(cfg, handler, gate))
	t.Cleanup(srv.Close)

	return &testEnv{
		cfg:     cfg,
		buf:     buf,
		hub:     hb,
		ingest:  svc,
		handler: handler,
		srv:     srv,
		stopHub: stopHub,
	}
}

// drainHub stops the hub and waits for draining mode to take effect.
func (env *testEnv) drainHub(t *testing.T) {
	t.Helper()
	env.stopHub()
	waitFor(t, 2*time.Second, func() bool { return env.hub.Stats().Draining }, "hub did not drain")
}

// publishEvent posts one payload through the publish endpoint and returns
// the assigned sequence number.
func (env *testEnv) publishEvent(t *testing.T, payload string) uint64 {
	t.Helper()

	resp, err := http.Post(env.srv.URL+"/api/v1/publish", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("publish request error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("publish status = %d, body %s", resp.StatusCode, body)
	}

	out := decodeEnvelope(t, resp.Body)
	data, ok := out.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("publish data = %T, want object", out.Data)
	}
	seq, ok := data["seq"].(float64)
	if !ok {
		t.Fatalf("publish seq missing from %v", data)
	}
	return uint64(seq)
}

// decodeEnvelope parses a JSON API response body.
func decodeEnvelope(t *testing.T, body io.Reader) APIResponse {
	t.Helper()
	var env APIResponse
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode response error = %v", err)
	}
	return env
}

// dataObject asserts the envelope data is a JSON object and returns it.
func dataObject(t *testing.T, env APIResponse) map[string]interface{} {
	t.Helper()
	data, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("response data = %T, want object", env.Data)
	}
	return data
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
