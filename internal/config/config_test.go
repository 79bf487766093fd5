// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package config

import (
	"strings"
	"testing"
	"time"
)

// validTestConfig returns a configuration that passes full validation.
// Tests mutate individual fields to exercise specific validators.
func validTestConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "port zero",
			mutate:      func(c *Config) { c.Server.Port = 0 },
			wantErr:     true,
			errContains: "HTTP_PORT",
		},
		{
			name:        "port too large",
			mutate:      func(c *Config) { c.Server.Port = 65536 },
			wantErr:     true,
			errContains: "HTTP_PORT",
		},
		{
			name:    "port at upper bound",
			mutate:  func(c *Config) { c.Server.Port = 65535 },
			wantErr: false,
		},
		{
			name:        "timeout below one second",
			mutate:      func(c *Config) { c.Server.Timeout = 500 * time.Millisecond },
			wantErr:     true,
			errContains: "HTTP_TIMEOUT",
		},
		{
			name:        "negative shutdown timeout",
			mutate:      func(c *Config) { c.Server.ShutdownTimeout = -time.Second },
			wantErr:     true,
			errContains: "SHUTDOWN_TIMEOUT",
		},
		{
			name:    "zero shutdown timeout allowed",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.validateServer()
			checkValidationResult(t, "validateServer", err, tt.wantErr, tt.errContains)
		})
	}
}

func TestValidateBuffer(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "zero entries",
			mutate:      func(c *Config) { c.Buffer.MaxEntries = 0 },
			wantErr:     true,
			errContains: "BUFFER_MAX_ENTRIES",
		},
		{
			name:        "too many entries",
			mutate:      func(c *Config) { c.Buffer.MaxEntries = (1 << 20) + 1 },
			wantErr:     true,
			errContains: "BUFFER_MAX_ENTRIES",
		},
		{
			name:    "single entry allowed",
			mutate:  func(c *Config) { c.Buffer.MaxEntries = 1 },
			wantErr: false,
		},
		{
			name:        "negative max age",
			mutate:      func(c *Config) { c.Buffer.MaxAge = -time.Minute },
			wantErr:     true,
			errContains: "BUFFER_MAX_AGE",
		},
		{
			name: "zero max age disables age eviction",
			mutate: func(c *Config) {
				c.Buffer.MaxAge = 0
				c.Buffer.SweepInterval = 0
			},
			wantErr: false,
		},
		{
			name: "sweep interval required with max age",
			mutate: func(c *Config) {
				c.Buffer.MaxAge = time.Minute
				c.Buffer.SweepInterval = 0
			},
			wantErr:     true,
			errContains: "BUFFER_SWEEP_INTERVAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.validateBuffer()
			checkValidationResult(t, "validateBuffer", err, tt.wantErr, tt.errContains)
		})
	}
}

func TestValidateStream(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "zero window size",
			mutate:      func(c *Config) { c.Stream.WindowSize = 0 },
			wantErr:     true,
			errContains: "STREAM_WINDOW_SIZE",
		},
		{
			name:        "unknown overflow policy",
			mutate:      func(c *Config) { c.Stream.OverflowPolicy = "panic" },
			wantErr:     true,
			errContains: "STREAM_OVERFLOW_POLICY",
		},
		{
			name:    "drop-oldest policy allowed",
			mutate:  func(c *Config) { c.Stream.OverflowPolicy = OverflowDropOldest },
			wantErr: false,
		},
		{
			name:    "drop-latest policy allowed",
			mutate:  func(c *Config) { c.Stream.OverflowPolicy = OverflowDropLatest },
			wantErr: false,
		},
		{
			name:    "error policy allowed",
			mutate:  func(c *Config) { c.Stream.OverflowPolicy = OverflowError },
			wantErr: false,
		},
		{
			name:        "zero write timeout",
			mutate:      func(c *Config) { c.Stream.WriteTimeout = 0 },
			wantErr:     true,
			errContains: "STREAM_WRITE_TIMEOUT",
		},
		{
			name:        "heartbeat interval too small",
			mutate:      func(c *Config) { c.Stream.HeartbeatInterval = 500 * time.Millisecond },
			wantErr:     true,
			errContains: "STREAM_HEARTBEAT_INTERVAL",
		},
		{
			name:        "heartbeat interval too large",
			mutate:      func(c *Config) { c.Stream.HeartbeatInterval = 10 * time.Minute },
			wantErr:     true,
			errContains: "STREAM_HEARTBEAT_INTERVAL",
		},
		{
			name:    "heartbeat interval at lower bound",
			mutate:  func(c *Config) { c.Stream.HeartbeatInterval = time.Second },
			wantErr: false,
		},
		{
			name:        "zero max payload",
			mutate:      func(c *Config) { c.Stream.MaxPayloadBytes = 0 },
			wantErr:     true,
			errContains: "STREAM_MAX_PAYLOAD_BYTES",
		},
		{
			name:        "negative max consumers",
			mutate:      func(c *Config) { c.Stream.MaxConsumers = -1 },
			wantErr:     true,
			errContains: "STREAM_MAX_CONSUMERS",
		},
		{
			name:    "zero max consumers means unlimited",
			mutate:  func(c *Config) { c.Stream.MaxConsumers = 0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.validateStream()
			checkValidationResult(t, "validateStream", err, tt.wantErr, tt.errContains)
		})
	}
}

func TestValidateIngest(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "empty topic",
			mutate:      func(c *Config) { c.Ingest.Topic = "" },
			wantErr:     true,
			errContains: "INGEST_TOPIC",
		},
		{
			name:        "negative buffer size",
			mutate:      func(c *Config) { c.Ingest.BufferSize = -1 },
			wantErr:     true,
			errContains: "INGEST_BUFFER_SIZE",
		},
		{
			name:        "negative retry count",
			mutate:      func(c *Config) { c.Ingest.RetryCount = -1 },
			wantErr:     true,
			errContains: "INGEST_RETRY_COUNT",
		},
		{
			name: "retry interval required with retries",
			mutate: func(c *Config) {
				c.Ingest.RetryCount = 3
				c.Ingest.RetryInterval = 0
			},
			wantErr:     true,
			errContains: "INGEST_RETRY_INTERVAL",
		},
		{
			name: "zero retries skips interval check",
			mutate: func(c *Config) {
				c.Ingest.RetryCount = 0
				c.Ingest.RetryInterval = 0
			},
			wantErr: false,
		},
		{
			name: "empty poison topic when enabled",
			mutate: func(c *Config) {
				c.Ingest.PoisonEnabled = true
				c.Ingest.PoisonTopic = ""
			},
			wantErr:     true,
			errContains: "INGEST_POISON_TOPIC",
		},
		{
			name: "poison topic equal to main topic",
			mutate: func(c *Config) {
				c.Ingest.PoisonEnabled = true
				c.Ingest.PoisonTopic = c.Ingest.Topic
			},
			wantErr:     true,
			errContains: "must differ",
		},
		{
			name: "poison disabled skips topic checks",
			mutate: func(c *Config) {
				c.Ingest.PoisonEnabled = false
				c.Ingest.PoisonTopic = ""
			},
			wantErr: false,
		},
		{
			name:        "zero close timeout",
			mutate:      func(c *Config) { c.Ingest.CloseTimeout = 0 },
			wantErr:     true,
			errContains: "INGEST_CLOSE_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.validateIngest()
			checkValidationResult(t, "validateIngest", err, tt.wantErr, tt.errContains)
		})
	}
}

func TestValidateAuthMode(t *testing.T) {
	tests := []struct {
		name        string
		authMode    string
		environment string
		wantErr     bool
		errContains string
	}{
		{
			name:        "jwt in development",
			authMode:    "jwt",
			environment: "development",
			wantErr:     false,
		},
		{
			name:        "jwt in production",
			authMode:    "jwt",
			environment: "production",
			wantErr:     false,
		},
		{
			name:        "none in development",
			authMode:    "none",
			environment: "development",
			wantErr:     false,
		},
		{
			name:        "none in production rejected",
			authMode:    "none",
			environment: "production",
			wantErr:     true,
			errContains: "AUTH_MODE=none is not allowed",
		},
		{
			name:        "unknown mode rejected",
			authMode:    "basic",
			environment: "development",
			wantErr:     true,
			errContains: "AUTH_MODE must be one of",
		},
		{
			name:        "empty mode rejected",
			authMode:    "",
			environment: "development",
			wantErr:     true,
			errContains: "AUTH_MODE must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Security.AuthMode = tt.authMode
			cfg.Server.Environment = tt.environment

			err := cfg.validateAuthMode()
			checkValidationResult(t, "validateAuthMode", err, tt.wantErr, tt.errContains)
		})
	}
}

func TestValidateCORS(t *testing.T) {
	tests := []struct {
		name        string
		authMode    string
		environment string
		origins     []string
		wantErr     bool
	}{
		{
			name:        "wildcard with auth in production rejected",
			authMode:    "jwt",
			environment: "production",
			origins:     []string{"*"},
			wantErr:     true,
		},
		{
			name:        "wildcard with auth in development allowed",
			authMode:    "jwt",
			environment: "development",
			origins:     []string{"*"},
			wantErr:     false,
		},
		{
			name:        "specific origins with auth in production allowed",
			authMode:    "jwt",
			environment: "production",
			origins:     []string{"https://app.example.com"},
			wantErr:     false,
		},
		{
			name:        "wildcard without auth passes CORS check",
			authMode:    "none",
			environment: "production",
			origins:     []string{"*"},
			wantErr:     false,
		},
		{
			name:        "wildcard among specific origins still rejected",
			authMode:    "jwt",
			environment: "production",
			origins:     []string{"https://app.example.com", "*"},
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Security.AuthMode = tt.authMode
			cfg.Server.Environment = tt.environment
			cfg.Security.CORSOrigins = tt.origins

			err := cfg.validateCORS()
			if tt.wantErr && err == nil {
				t.Error("validateCORS() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateCORS() unexpected error = %v", err)
			}
		})
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	tests := []struct {
		name     string
		authMode string
		origins  []string
		want     bool
	}{
		{"auth with wildcard warns", "jwt", []string{"*"}, true},
		{"auth with specific origins does not warn", "jwt", []string{"https://app.example.com"}, false},
		{"no auth with wildcard does not warn", "none", []string{"*"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Security.AuthMode = tt.authMode
			cfg.Security.CORSOrigins = tt.origins

			if got := cfg.ShouldWarnAboutCORS(); got != tt.want {
				t.Errorf("ShouldWarnAboutCORS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRateLimits(t *testing.T) {
	tests := []struct {
		name        string
		requests    int
		window      time.Duration
		disabled    bool
		wantErr     bool
		errContains string
	}{
		{
			name:     "valid defaults",
			requests: 100,
			window:   time.Minute,
			disabled: false,
			wantErr:  false,
		},
		{
			name:     "valid minimum requests",
			requests: 1,
			window:   time.Minute,
			disabled: false,
			wantErr:  false,
		},
		{
			name:     "valid maximum requests",
			requests: 100000,
			window:   time.Minute,
			disabled: false,
			wantErr:  false,
		},
		{
			name:     "valid minimum window",
			requests: 100,
			window:   time.Second,
			disabled: false,
			wantErr:  false,
		},
		{
			name:     "valid maximum window",
			requests: 100,
			window:   time.Hour,
			disabled: false,
			wantErr:  false,
		},
		{
			name:        "invalid zero requests",
			requests:    0,
			window:      time.Minute,
			disabled:    false,
			wantErr:     true,
			errContains: "RATE_LIMIT_REQUESTS",
		},
		{
			name:        "invalid too many requests",
			requests:    100001,
			window:      time.Minute,
			disabled:    false,
			wantErr:     true,
			errContains: "RATE_LIMIT_REQUESTS",
		},
		{
			name:        "invalid window too small",
			requests:    100,
			window:      500 * time.Millisecond,
			disabled:    false,
			wantErr:     true,
			errContains: "RATE_LIMIT_WINDOW",
		},
		{
			name:        "invalid window too large",
			requests:    100,
			window:      2 * time.Hour,
			disabled:    false,
			wantErr:     true,
			errContains: "RATE_LIMIT_WINDOW",
		},
		{
			name:     "disabled skips validation",
			requests: 0, // Would be invalid if enabled
			window:   0, // Would be invalid if enabled
			disabled: true,
			wantErr:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Security: SecurityConfig{
					RateLimitReqs:     tt.requests,
					RateLimitWindow:   tt.window,
					RateLimitDisabled: tt.disabled,
				},
			}

			err := cfg.validateRateLimits()
			checkValidationResult(t, "validateRateLimits", err, tt.wantErr, tt.errContains)
		})
	}
}

func TestValidateJWTSecret(t *testing.T) {
	tests := []struct {
		name        string
		secret      string
		wantErr     bool
		errContains string
	}{
		{
			name:        "empty secret",
			secret:      "",
			wantErr:     true,
			errContains: "JWT_SECRET is required",
		},
		{
			name:        "too short",
			secret:      "short-secret",
			wantErr:     true,
			errContains: "at least 32 characters",
		},
		{
			name:        "placeholder value",
			secret:      "CHANGEME-CHANGEME-CHANGEME-CHANGEME",
			wantErr:     true,
			errContains: "placeholder",
		},
		{
			name:        "placeholder lowercase",
			secret:      "this-is-your_secret-key-padded-out-to-length",
			wantErr:     true,
			errContains: "placeholder",
		},
		{
			name:    "valid 32 char secret",
			secret:  "0123456789abcdef0123456789abcdef",
			wantErr: false,
		},
		{
			name:    "valid long random secret",
			secret:  "kJ8fn2mQ9pL4vX7cR1wB5tZ0yH3uG6sDkJ8fn2mQ",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Security.JWTSecret = tt.secret

			err := cfg.validateJWTSecret()
			checkValidationResult(t, "validateJWTSecret", err, tt.wantErr, tt.errContains)
		})
	}
}

func TestValidateNotify(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "disabled skips validation",
			mutate:  func(c *Config) { c.Notify.Enabled = false },
			wantErr: false,
		},
		{
			name: "enabled without URL",
			mutate: func(c *Config) {
				c.Notify.Enabled = true
				c.Notify.WebhookURL = ""
			},
			wantErr:     true,
			errContains: "NOTIFY_WEBHOOK_URL is required",
		},
		{
			name: "enabled with valid URL",
			mutate: func(c *Config) {
				c.Notify.Enabled = true
				c.Notify.WebhookURL = "https://hooks.example.com/evictions"
			},
			wantErr: false,
		},
		{
			name: "invalid URL scheme",
			mutate: func(c *Config) {
				c.Notify.Enabled = true
				c.Notify.WebhookURL = "ftp://hooks.example.com/evictions"
			},
			wantErr:     true,
			errContains: "NOTIFY_WEBHOOK_URL",
		},
		{
			name: "zero timeout",
			mutate: func(c *Config) {
				c.Notify.Enabled = true
				c.Notify.WebhookURL = "https://hooks.example.com/evictions"
				c.Notify.Timeout = 0
			},
			wantErr:     true,
			errContains: "NOTIFY_TIMEOUT",
		},
		{
			name: "zero rate",
			mutate: func(c *Config) {
				c.Notify.Enabled = true
				c.Notify.WebhookURL = "https://hooks.example.com/evictions"
				c.Notify.RatePerSecond = 0
			},
			wantErr:     true,
			errContains: "NOTIFY_RATE_PER_SECOND",
		},
		{
			name: "zero burst",
			mutate: func(c *Config) {
				c.Notify.Enabled = true
				c.Notify.WebhookURL = "https://hooks.example.com/evictions"
				c.Notify.Burst = 0
			},
			wantErr:     true,
			errContains: "NOTIFY_BURST",
		},
		{
			name: "zero queue size",
			mutate: func(c *Config) {
				c.Notify.Enabled = true
				c.Notify.WebhookURL = "https://hooks.example.com/evictions"
				c.Notify.QueueSize = 0
			},
			wantErr:     true,
			errContains: "NOTIFY_QUEUE_SIZE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)

			err := cfg.validateNotify()
			checkValidationResult(t, "validateNotify", err, tt.wantErr, tt.errContains)
		})
	}
}

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid https", "https://hooks.example.com/evictions", false},
		{"valid http", "http://localhost:9000/hook", false},
		{"valid with query", "https://hooks.example.com/evictions?token=abc", false},
		{"missing scheme", "hooks.example.com/evictions", true},
		{"wrong scheme", "ftp://hooks.example.com", true},
		{"missing host", "https://", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateWebhookURL(tt.url, "TEST_URL")
			if tt.wantErr && err == nil {
				t.Errorf("validateWebhookURL(%q) expected error, got nil", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateWebhookURL(%q) unexpected error = %v", tt.url, err)
			}
		})
	}
}

func TestValidateLogging_AllLevels(t *testing.T) {
	levels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Logging.Level = level
			if err := cfg.validateLogging(); err != nil {
				t.Errorf("validateLogging() with level %q unexpected error = %v", level, err)
			}
		})
	}

	t.Run("invalid level", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Logging.Level = "verbose"
		if err := cfg.validateLogging(); err == nil {
			t.Error("validateLogging() expected error for invalid level, got nil")
		}
	})

	t.Run("uppercase level accepted", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Logging.Level = "INFO"
		if err := cfg.validateLogging(); err != nil {
			t.Errorf("validateLogging() with level INFO unexpected error = %v", err)
		}
	})
}

func TestValidateLogging_Formats(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"console", false},
		{"text", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Logging.Format = tt.format

			err := cfg.validateLogging()
			if tt.wantErr && err == nil {
				t.Errorf("validateLogging() with format %q expected error, got nil", tt.format)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateLogging() with format %q unexpected error = %v", tt.format, err)
			}
		})
	}
}

func TestContainsPlaceholder(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"changeme123", true},
		{"CHANGEME", true},
		{"your_secret_here_padded_to_length", true},
		{"placeholder-value", true},
		{"replace-this-secret", true},
		{"todo-set-real-secret", true},
		{"example-secret-value", true},
		{"kJ8fn2mQ9pL4vX7cR1wB5tZ0yH3uG6sD", false},
		{"0123456789abcdef0123456789abcdef", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if got := containsPlaceholder(tt.value); got != tt.want {
				t.Errorf("containsPlaceholder(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestServerConfigAddress(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		want string
	}{
		{"default binding", "0.0.0.0", 8937, "0.0.0.0:8937"},
		{"localhost", "127.0.0.1", 9000, "127.0.0.1:9000"},
		{"empty host", "", 8937, ":8937"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ServerConfig{Host: tt.host, Port: tt.port}
			if got := s.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvironmentAccessors(t *testing.T) {
	tests := []struct {
		environment string
		isProd      bool
		isDev       bool
	}{
		{"production", true, false},
		{"prod", true, false},
		{"development", false, true},
		{"dev", false, true},
		{"Production", true, false},
		{"staging", false, false},
		{"", false, true}, // unset defaults to development
	}

	for _, tt := range tests {
		t.Run("env "+tt.environment, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Server.Environment = tt.environment

			if got := cfg.IsProduction(); got != tt.isProd {
				t.Errorf("IsProduction() = %v, want %v", got, tt.isProd)
			}
			if got := cfg.IsDevelopment(); got != tt.isDev {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.isDev)
			}
		})
	}
}

func TestAuthEnabled(t *testing.T) {
	tests := []struct {
		authMode string
		want     bool
	}{
		{"jwt", true},
		{"none", false},
	}

	for _, tt := range tests {
		t.Run(tt.authMode, func(t *testing.T) {
			cfg := validTestConfig()
			cfg.Security.AuthMode = tt.authMode

			if got := cfg.AuthEnabled(); got != tt.want {
				t.Errorf("AuthEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

// checkValidationResult asserts a validator outcome against expectations.
func checkValidationResult(t *testing.T, fn string, err error, wantErr bool, errContains string) {
	t.Helper()

	if wantErr {
		if err == nil {
			t.Errorf("%s() expected error containing %q, got nil", fn, errContains)
		} else if errContains != "" && !strings.Contains(err.Error(), errContains) {
			t.Errorf("%s() error = %v, want error containing %q", fn, err, errContains)
		}
		return
	}
	if err != nil {
		t.Errorf("%s() unexpected error = %v", fn, err)
	}
}
