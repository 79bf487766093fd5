// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package main is the entry point for the Streamcast server.
//
// Streamcast delivers ordered event streams to consumers over SSE and
// WebSocket connections that are expected to drop. Producers POST events
// into an ingest pipeline; consumers attach with a cursor and receive
// every event after it exactly in order, with replay served from a
// bounded in-memory buffer and flow control applied per consumer.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Event buffer: Bounded replay buffer with age and capacity eviction
//  3. Hub: Consumer registry, per-session flow control, heartbeats
//  4. Ingest pipeline: Watermill router with retry and poison queue
//  5. Notifier (optional): Webhook delivery of eviction advisories
//  6. Authentication: JWT bearer gate or no-auth mode
//  7. HTTP server: Stream, publish, health, stats, and metrics endpoints
//
// All long-running components run under a suture supervisor tree; see
// internal/supervisor for the layer layout and restart semantics.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (see internal/config)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// For JWT authentication (default):
//   - JWT_SECRET: 32+ character secret for token signing
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops admitting new consumers
//   - Sends every attached consumer a stream-end record
//   - Waits for in-flight requests to complete (SHUTDOWN_TIMEOUT)
//   - Drains the ingest pipeline and closes the message bus
//
// # Example Usage
//
// Local development without authentication:
//
//	AUTH_MODE=none LOG_FORMAT=console ./streamcast
//
// Production:
//
//	AUTH_MODE=jwt JWT_SECRET=<32+ chars> CORS_ORIGINS=https://app.example.com ./streamcast
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/streamcast/internal/api"
	"github.com/tomtom215/streamcast/internal/auth"
	"github.com/tomtom215/streamcast/internal/config"
	"github.com/tomtom215/streamcast/internal/eventbuffer"
	"github.com/tomtom215/streamcast/internal/hub"
	"github.com/tomtom215/streamcast/internal/ingest"
	"github.com/tomtom215/streamcast/internal/logging"
	"github.com/tomtom215/streamcast/internal/middleware"
	"github.com/tomtom215/streamcast/internal/notify"
	"github.com/tomtom215/streamcast/internal/supervisor"
	"github.com/tomtom215/streamcast/internal/supervisor/services"
)

// perfMonitorWindow is how many recent requests the performance monitor
// retains for percentile calculation on the stats endpoint.
const perfMonitorWindow = 1000

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Streamcast with supervisor tree")
	logging.Info().
		Str("addr", cfg.Server.Address()).
		Int("buffer_max_entries", cfg.Buffer.MaxEntries).
		Dur("buffer_max_age", cfg.Buffer.MaxAge).
		Str("overflow_policy", cfg.Stream.OverflowPolicy).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Configuration loaded")

	// Replay buffer. Everything downstream reads from here.
	buf := eventbuffer.New(eventbuffer.Config{
		MaxEntries: cfg.Buffer.MaxEntries,
		MaxAge:     cfg.Buffer.MaxAge,
	})

	// Consumer hub. Validate() has already constrained the policy string.
	policy, err := hub.ParseOverflowPolicy(cfg.Stream.OverflowPolicy)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to parse overflow policy")
	}
	hb := hub.New(hub.Config{
		WindowSize:        cfg.Stream.WindowSize,
		OverflowPolicy:    policy,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		MaxConsumers:      cfg.Stream.MaxConsumers,
	}, buf)

	// Ingest pipeline; its bus also carries eviction advisories.
	ingestSvc, err := ingest.NewService(cfg.Ingest, buf)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize ingest pipeline")
	}
	buf.SetEvictUnreadHook(ingestSvc.AnnounceEviction)
	logging.Info().
		Str("topic", cfg.Ingest.Topic).
		Bool("poison_enabled", cfg.Ingest.PoisonEnabled).
		Msg("Ingest pipeline initialized")

	// Optional webhook notifier for evictions that destroyed unread events.
	var notifySvc *notify.Service
	if cfg.Notify.Enabled {
		notifySvc, err = notify.NewService(cfg.Notify, ingestSvc.Subscriber())
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize eviction notifier")
		}
		logging.Info().
			Str("webhook_url", cfg.Notify.WebhookURL).
			Msg("Eviction notifier enabled")
	} else {
		logging.Info().Msg("Eviction notifier disabled (NOTIFY_ENABLED=false)")
	}

	// Authentication gate.
	gate, err := auth.NewGate(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}
	switch cfg.Security.AuthMode {
	case "jwt":
		logging.Info().Msg("JWT authentication enabled")
	case "none":
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  Anyone who can reach this server can publish and consume!")
		logging.Warn().Msg("  This mode should ONLY be used for:")
		logging.Warn().Msg("    - Local development")
		logging.Warn().Msg("    - Completely isolated private networks")
		logging.Warn().Msg("    - CI/CD testing environments")
		logging.Warn().Msg("============================================================")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	handler := api.NewHandler(cfg, hb, ingestSvc, notifySvc, middleware.NewPerformanceMonitor(perfMonitorWindow))
	router := api.NewRouter(cfg, handler, gate)

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
		// ReadTimeout and WriteTimeout stay zero: stream responses are
		// open-ended, and a whole-response deadline would cut every SSE
		// session off mid-stream. Per-record write deadlines are enforced
		// in the handlers instead.
		IdleTimeout: 60 * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	tree.AddPipelineService(services.NewIngestService(ingestSvc))
	tree.AddPipelineService(services.NewSweeperService(buf, cfg.Buffer.SweepInterval))
	if notifySvc != nil {
		tree.AddPipelineService(services.NewNotifyService(notifySvc))
	}
	tree.AddDeliveryService(services.NewHubService(hb))
	tree.AddEdgeService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Server stopped gracefully")
}
