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

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateBuffer(); err != nil {
		return err
	}

	if err := c.validateStream(); err != nil {
		return err
	}

	if err := c.validateIngest(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateNotify(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout < time.Second {
		return fmt.Errorf("HTTP_TIMEOUT must be at least 1 second")
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must not be negative")
	}
	return nil
}

// Buffer bounds. The upper entry bound keeps worst-case memory predictable;
// one million 1MB payloads is already 1TB.
const (
	minBufferEntries = 1
	maxBufferEntries = 1 << 20
)

// validateBuffer validates retained-event buffer configuration
func (c *Config) validateBuffer() error {
	if c.Buffer.MaxEntries < minBufferEntries || c.Buffer.MaxEntries > maxBufferEntries {
		return fmt.Errorf("BUFFER_MAX_ENTRIES must be between %d and %d", minBufferEntries, maxBufferEntries)
	}
	if c.Buffer.MaxAge < 0 {
		return fmt.Errorf("BUFFER_MAX_AGE must not be negative (0 disables age eviction)")
	}
	if c.Buffer.MaxAge > 0 && c.Buffer.SweepInterval <= 0 {
		return fmt.Errorf("BUFFER_SWEEP_INTERVAL must be positive when BUFFER_MAX_AGE is set")
	}
	return nil
}

// validOverflowPolicies defines the allowed flow-control overflow policies
var validOverflowPolicies = map[string]bool{
	OverflowBuffer:     true,
	OverflowDropOldest: true,
	OverflowDropLatest: true,
	OverflowError:      true,
}

// Heartbeat bounds. Below one second heartbeats become traffic noise; above
// five minutes intermediary proxies start reaping idle connections before the
// first heartbeat goes out.
const (
	minHeartbeatInterval = time.Second
	maxHeartbeatInterval = 5 * time.Minute
)

// validateStream validates per-consumer delivery configuration
func (c *Config) validateStream() error {
	if c.Stream.WindowSize < 1 {
		return fmt.Errorf("STREAM_WINDOW_SIZE must be at least 1")
	}
	if !validOverflowPolicies[c.Stream.OverflowPolicy] {
		return fmt.Errorf("STREAM_OVERFLOW_POLICY must be one of: buffer, drop-oldest, drop-latest, error")
	}
	if c.Stream.WriteTimeout <= 0 {
		return fmt.Errorf("STREAM_WRITE_TIMEOUT must be positive")
	}
	if c.Stream.HeartbeatInterval < minHeartbeatInterval || c.Stream.HeartbeatInterval > maxHeartbeatInterval {
		return fmt.Errorf("STREAM_HEARTBEAT_INTERVAL must be between %v and %v", minHeartbeatInterval, maxHeartbeatInterval)
	}
	if c.Stream.MaxPayloadBytes < 1 {
		return fmt.Errorf("STREAM_MAX_PAYLOAD_BYTES must be at least 1")
	}
	if c.Stream.MaxConsumers < 0 {
		return fmt.Errorf("STREAM_MAX_CONSUMERS must not be negative (0 for unlimited)")
	}
	return nil
}

// validateIngest validates the publish pipeline configuration
func (c *Config) validateIngest() error {
	if c.Ingest.Topic == "" {
		return fmt.Errorf("INGEST_TOPIC must not be empty")
	}
	if c.Ingest.BufferSize < 0 {
		return fmt.Errorf("INGEST_BUFFER_SIZE must not be negative")
	}
	if c.Ingest.RetryCount < 0 {
		return fmt.Errorf("INGEST_RETRY_COUNT must not be negative")
	}
	if c.Ingest.RetryCount > 0 && c.Ingest.RetryInterval <= 0 {
		return fmt.Errorf("INGEST_RETRY_INTERVAL must be positive when retries are enabled")
	}
	if c.Ingest.PoisonEnabled {
		if c.Ingest.PoisonTopic == "" {
			return fmt.Errorf("INGEST_POISON_TOPIC must not be empty when INGEST_POISON_ENABLED=true")
		}
		if c.Ingest.PoisonTopic == c.Ingest.Topic {
			return fmt.Errorf("INGEST_POISON_TOPIC must differ from INGEST_TOPIC")
		}
	}
	if c.Ingest.CloseTimeout <= 0 {
		return fmt.Errorf("INGEST_CLOSE_TIMEOUT must be positive")
	}
	return nil
}

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateAuthMode(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateRateLimits(); err != nil {
		return err
	}

	if c.Security.AuthMode == "jwt" {
		return c.validateJWTSecret()
	}
	return nil
}

// validAuthModes defines the allowed authentication modes
var validAuthModes = map[string]bool{
	"none": true,
	"jwt":  true,
}

// validateAuthMode checks if auth mode is valid
func (c *Config) validateAuthMode() error {
	if !validAuthModes[c.Security.AuthMode] {
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt")
	}

	return c.validateAuthModeForEnvironment()
}

// validateAuthModeForEnvironment ensures AUTH_MODE is appropriate for the environment.
// Refusing AUTH_MODE=none in production prevents accidental deployment of an
// unauthenticated publish endpoint.
func (c *Config) validateAuthModeForEnvironment() error {
	if c.Security.AuthMode == "none" && c.IsProduction() {
		return fmt.Errorf("AUTH_MODE=none is not allowed when ENVIRONMENT=production. " +
			"Either set AUTH_MODE=jwt with a JWT_SECRET " +
			"or use ENVIRONMENT=development for testing purposes")
	}

	return nil
}

// validateCORS validates CORS configuration for security best practices.
// In production mode with authentication enabled, wildcard CORS is rejected
// as it creates a security vulnerability where any origin can access
// protected resources using stolen credentials.
func (c *Config) validateCORS() error {
	if c.Security.AuthMode != "none" && c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production with authentication enabled. " +
			"Either set specific origins: CORS_ORIGINS=https://yourdomain.com,https://app.yourdomain.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration has security concerns
// that should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.Security.AuthMode != "none" && c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates rate limiting configuration bounds.
// Ensures rate limit values are within sensible ranges to prevent
// misconfiguration that could lead to DoS or ineffective protection.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateJWTSecret validates the JWT secret configuration
func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is jwt")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters for security")
	}
	if containsPlaceholder(c.Security.JWTSecret) {
		return fmt.Errorf("JWT_SECRET contains a placeholder value - generate a secure secret with: openssl rand -base64 32")
	}
	return nil
}

// validateNotify validates the eviction webhook configuration
func (c *Config) validateNotify() error {
	if !c.Notify.Enabled {
		return nil
	}

	if c.Notify.WebhookURL == "" {
		return fmt.Errorf("NOTIFY_WEBHOOK_URL is required when NOTIFY_ENABLED=true")
	}
	if err := validateWebhookURL(c.Notify.WebhookURL, "NOTIFY_WEBHOOK_URL"); err != nil {
		return fmt.Errorf("NOTIFY_WEBHOOK_URL is invalid: %w", err)
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	if c.Notify.RatePerSecond <= 0 {
		return fmt.Errorf("NOTIFY_RATE_PER_SECOND must be positive")
	}
	if c.Notify.Burst < 1 {
		return fmt.Errorf("NOTIFY_BURST must be at least 1")
	}
	if c.Notify.QueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be at least 1")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
	"panic": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic")
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns are substrings that indicate a value was never replaced
// with a real secret.
var placeholderPatterns = []string{
	"CHANGEME",
	"CHANGE_ME",
	"CHANGE-ME",
	"PLACEHOLDER",
	"YOUR_",
	"YOUR-",
	"REPLACE",
	"TODO",
	"FIXME",
	"XXX",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
// that indicate the user forgot to set a real value. This prevents accidental
// deployment with insecure default credentials.
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
