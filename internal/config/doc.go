// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

/*
Package config provides centralized configuration management for Streamcast.

This package handles loading, validation, and parsing of configuration for all
application components. Configuration is layered via Koanf v2: built-in
defaults, then an optional YAML file, then environment variables, with later
sources overriding earlier ones.

# Configuration Structure

The package organizes configuration into logical groups:

  - ServerConfig: HTTP server settings (host, port, timeouts)
  - BufferConfig: Retained-event window (capacity, age, sweep cadence)
  - StreamConfig: Per-consumer flow control, heartbeats, payload limits
  - IngestConfig: Watermill publish pipeline (retries, poison queue)
  - SecurityConfig: JWT authentication, rate limiting, CORS
  - NotifyConfig: Webhook delivery for unread-eviction advisories
  - LoggingConfig: Log levels and output formats

# Environment Variables

HTTP Server (ServerConfig):
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 8937)
  - HTTP_TIMEOUT: Non-streaming request timeout (default: 30s)
  - SHUTDOWN_TIMEOUT: Drain grace period on shutdown (default: 10s)
  - ENVIRONMENT: development or production (default: development)

Event Buffer (BufferConfig):
  - BUFFER_MAX_ENTRIES: Maximum retained events (default: 4096)
  - BUFFER_MAX_AGE: Maximum event age, 0 disables (default: 15m)
  - BUFFER_SWEEP_INTERVAL: Aged-event sweep cadence (default: 30s)

Stream Delivery (StreamConfig):
  - STREAM_WINDOW_SIZE: Flow control window per consumer (default: 256)
  - STREAM_OVERFLOW_POLICY: buffer, drop-oldest, drop-latest, error (default: buffer)
  - STREAM_WRITE_TIMEOUT: Per-write deadline (default: 10s)
  - STREAM_HEARTBEAT_INTERVAL: Idle heartbeat cadence (default: 15s)
  - STREAM_MAX_PAYLOAD_BYTES: Publish payload cap (default: 1048576)
  - STREAM_MAX_CONSUMERS: Concurrent consumer cap, 0 unlimited (default: 1024)

Ingest Pipeline (IngestConfig):
  - INGEST_TOPIC: Internal event topic (default: events.published)
  - INGEST_RETRY_COUNT: Append retries before poisoning (default: 3)
  - INGEST_POISON_ENABLED: Poison queue toggle (default: true)

Authentication (SecurityConfig):
  - AUTH_MODE: Authentication mode (none, jwt; default: jwt)
  - JWT_SECRET: HMAC signing secret (min 32 chars, required for jwt mode)
  - JWT_AUDIENCE: Expected token audience (optional)
  - RATE_LIMIT_REQUESTS: Requests per window per IP (default: 100)
  - RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
  - CORS_ORIGINS: Comma-separated allowed origins (default: *)

Eviction Webhook (NotifyConfig):
  - NOTIFY_ENABLED: Enable webhook notifications (default: false)
  - NOTIFY_WEBHOOK_URL: Destination URL (required when enabled)
  - NOTIFY_RATE_PER_SECOND: Sustained delivery rate (default: 5)

# Usage Example

Basic configuration loading:

	import "github.com/tomtom215/streamcast/internal/config"

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
	    log.Fatalf("Failed to load config: %v", err)
	}

	// Access configuration values
	fmt.Printf("Starting server on %s\n", cfg.Server.Address())
	fmt.Printf("Buffer window: %d events / %v\n", cfg.Buffer.MaxEntries, cfg.Buffer.MaxAge)

Testing with custom configuration:

	// Override environment variables for testing
	os.Setenv("HTTP_PORT", "8080")
	os.Setenv("AUTH_MODE", "none")
	os.Setenv("BUFFER_MAX_ENTRIES", "64")

	cfg, err := config.Load()
	// Use cfg for testing

# Validation

The package performs comprehensive validation:

  - Required fields: JWT_SECRET (if AUTH_MODE=jwt), NOTIFY_WEBHOOK_URL (if enabled)
  - String length: JWT_SECRET >= 32 chars
  - Numeric ranges: HTTP_PORT (1-65535), BUFFER_MAX_ENTRIES (1-1048576)
  - Duration ranges: STREAM_HEARTBEAT_INTERVAL (1s-5m)
  - Enumerations: STREAM_OVERFLOW_POLICY, AUTH_MODE, LOG_LEVEL
  - URL formats: NOTIFY_WEBHOOK_URL must be a valid HTTP(S) URL
  - Environment coupling: AUTH_MODE=none and wildcard CORS rejected in production

# Security Best Practices

When configuring authentication:

 1. Use strong JWT secrets: Minimum 32 characters, cryptographically random
    Generate with: openssl rand -base64 48

 2. Set specific CORS origins in production instead of the wildcard default

 3. Keep rate limiting enabled on public deployments; the publish endpoint is
    a write path

# Docker Deployment

For Docker deployments, use environment variables or docker-compose.yml:

	services:
	  streamcast:
	    image: ghcr.io/tomtom215/streamcast:latest
	    environment:
	      JWT_SECRET: ${JWT_SECRET}
	      BUFFER_MAX_ENTRIES: "8192"
	      BUFFER_MAX_AGE: 30m
	    ports:
	      - "8937:8937"

# Thread Safety

The Config struct is immutable after Load() returns, making it safe for concurrent
access from multiple goroutines without synchronization.

# See Also

  - README.md: User-facing configuration documentation
*/
package config
