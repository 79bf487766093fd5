// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration management for all application components including
// the HTTP server, event buffer, stream delivery, ingest pipeline, security, eviction
// notification, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Delivery Core:
//     - Buffer: Retained event window (capacity, age, sweep cadence)
//     - Stream: Per-consumer flow control, heartbeats, payload limits
//
//  2. Infrastructure:
//     - Server: HTTP server configuration (port, host, timeouts)
//     - Ingest: Watermill publish pipeline (retries, poison queue)
//
//  3. API & Security:
//     - Security: Authentication, rate limiting, CORS
//     - Notify: Webhook delivery for unread-eviction advisories
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Buffer.MaxEntries, cfg.Server.Port, etc. are now populated
//
// Validation:
// The Load() function validates all fields and returns an error if values are
// malformed (invalid URL format, out-of-range numbers) or if security settings
// are unsafe for the configured environment.
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Buffer   BufferConfig   `koanf:"buffer"`
	Stream   StreamConfig   `koanf:"stream"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Security SecurityConfig `koanf:"security"`
	Notify   NotifyConfig   `koanf:"notify"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: Listen port (default: 8937)
//   - HTTP_HOST: Listen host (default: 0.0.0.0)
//   - HTTP_TIMEOUT: Read header and write timeout for non-streaming endpoints (default: 30s)
//   - SHUTDOWN_TIMEOUT: Grace period for draining connections on shutdown (default: 10s)
//   - ENVIRONMENT: development or production (default: development)
//
// Streaming endpoints (SSE, WebSocket) are exempt from the write timeout since
// they hold connections open indefinitely.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// Address returns the host:port listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BufferConfig holds retained-event window settings.
//
// The buffer keeps recently published events in memory so reconnecting
// consumers can resume from their last delivered sequence number instead of
// forcing a full resync. Both limits apply simultaneously: an event is
// evicted when the buffer exceeds MaxEntries or when the event exceeds
// MaxAge, whichever happens first.
//
// Environment Variables:
//   - BUFFER_MAX_ENTRIES: Maximum retained events (default: 4096)
//   - BUFFER_MAX_AGE: Maximum event age, 0 disables age eviction (default: 15m)
//   - BUFFER_SWEEP_INTERVAL: How often the background sweeper evicts aged
//     events when no appends are arriving (default: 30s)
//
// Sizing guidance: MaxEntries bounds worst-case memory as roughly
// MaxEntries * average payload size. A consumer that stays disconnected
// longer than MaxAge, or misses more than MaxEntries events, receives a
// cursor-expired error on reconnect and must resync.
type BufferConfig struct {
	MaxEntries    int           `koanf:"max_entries"`
	MaxAge        time.Duration `koanf:"max_age"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// Overflow policies for per-consumer flow control windows.
const (
	OverflowBuffer     = "buffer"
	OverflowDropOldest = "drop-oldest"
	OverflowDropLatest = "drop-latest"
	OverflowError      = "error"
)

// StreamConfig holds per-consumer delivery settings.
//
// Each connected consumer gets an isolated flow control window of WindowSize
// undelivered events. When a slow consumer's window fills, OverflowPolicy
// decides what happens next:
//
//	buffer       - hold the events, let the window grow (bounded only by the
//	               retained-event buffer; slowest-safe default)
//	drop-oldest  - evict the oldest queued event to admit the new one
//	drop-latest  - discard the incoming event, keep the queue
//	error        - terminate the consumer with an overflow error record
//
// Drops under drop-oldest and drop-latest are reported to the consumer via
// an advisory error record carrying the dropped count, so clients know their
// view is gapped.
//
// Environment Variables:
//   - STREAM_WINDOW_SIZE: Flow control window per consumer (default: 256)
//   - STREAM_OVERFLOW_POLICY: buffer, drop-oldest, drop-latest, error (default: buffer)
//   - STREAM_WRITE_TIMEOUT: Per-write deadline on consumer connections (default: 10s)
//   - STREAM_HEARTBEAT_INTERVAL: Heartbeat cadence on idle streams (default: 15s)
//   - STREAM_MAX_PAYLOAD_BYTES: Maximum accepted publish payload (default: 1048576)
//   - STREAM_MAX_CONSUMERS: Concurrent consumer cap, 0 for unlimited (default: 1024)
type StreamConfig struct {
	WindowSize        int           `koanf:"window_size"`
	OverflowPolicy    string        `koanf:"overflow_policy"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	MaxPayloadBytes   int64         `koanf:"max_payload_bytes"`
	MaxConsumers      int           `koanf:"max_consumers"`
}

// IngestConfig holds Watermill publish pipeline settings.
//
// Published events flow through a Watermill router before landing in the
// retained-event buffer. The router provides retry with backoff for transient
// append failures and an optional poison queue for events that exhaust
// retries.
//
// Environment Variables:
//   - INGEST_TOPIC: Internal topic name for published events (default: events.published)
//   - INGEST_BUFFER_SIZE: Channel buffer between publisher and router (default: 1024)
//   - INGEST_RETRY_COUNT: Handler retries before poisoning (default: 3)
//   - INGEST_RETRY_INTERVAL: Initial retry backoff interval (default: 100ms)
//   - INGEST_POISON_ENABLED: Route exhausted events to poison topic (default: true)
//   - INGEST_POISON_TOPIC: Poison queue topic name (default: events.poison)
//   - INGEST_CLOSE_TIMEOUT: Router shutdown drain timeout (default: 30s)
type IngestConfig struct {
	Topic         string        `koanf:"topic"`
	BufferSize    int           `koanf:"buffer_size"`
	RetryCount    int           `koanf:"retry_count"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	PoisonEnabled bool          `koanf:"poison_enabled"`
	PoisonTopic   string        `koanf:"poison_topic"`
	CloseTimeout  time.Duration `koanf:"close_timeout"`
}

// SecurityConfig holds authentication, rate limiting, and CORS settings.
//
// Environment Variables:
//   - AUTH_MODE: none or jwt (default: jwt)
//   - JWT_SECRET: HMAC signing secret, 32+ characters (required for jwt mode)
//   - JWT_AUDIENCE: Expected token audience, empty to skip audience checks
//   - RATE_LIMIT_REQUESTS: Requests per window per client IP (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
//   - DISABLE_RATE_LIMIT: Disable rate limiting entirely (default: false)
//   - CORS_ORIGINS: Comma-separated allowed origins (default: *)
//
// AUTH_MODE=none is rejected in production; wildcard CORS with authentication
// enabled is rejected in production.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	JWTAudience       string        `koanf:"jwt_audience"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// NotifyConfig holds webhook settings for unread-eviction advisories.
//
// When the buffer evicts events that no connected consumer ever read, the
// notifier POSTs an advisory to the configured webhook so operators learn
// about silent data loss. Deliveries are rate limited and guarded by a
// circuit breaker so a failing webhook endpoint cannot back-pressure the
// delivery core.
//
// Environment Variables:
//   - NOTIFY_ENABLED: Enable webhook notifications (default: false)
//   - NOTIFY_WEBHOOK_URL: Destination URL (required when enabled)
//   - NOTIFY_TIMEOUT: Per-delivery HTTP timeout (default: 10s)
//   - NOTIFY_RATE_PER_SECOND: Sustained delivery rate (default: 5)
//   - NOTIFY_BURST: Delivery burst allowance (default: 10)
//   - NOTIFY_QUEUE_SIZE: Pending advisory queue, oldest dropped on overflow (default: 256)
type NotifyConfig struct {
	Enabled       bool          `koanf:"enabled"`
	WebhookURL    string        `koanf:"webhook_url"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"`
	Burst         int           `koanf:"burst"`
	QueueSize     int           `koanf:"queue_size"`
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction returns true if the application is running in production mode.
// Production mode is determined by the ENVIRONMENT environment variable.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// AuthEnabled returns true if request authentication is configured.
func (c *Config) AuthEnabled() bool {
	return c.Security.AuthMode != "none"
}

// Load reads configuration from environment variables and optional config file.
// Configuration is loaded in the following order (later sources override earlier ones):
//  1. Built-in defaults
//  2. Config file (config.yaml if exists, or path specified in CONFIG_PATH env var)
//  3. Environment variables
//
// This function uses Koanf v2 for flexible, layered configuration management.
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
