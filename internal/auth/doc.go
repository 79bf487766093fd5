// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package auth provides bearer token authentication for the stream and
// publish endpoints.
//
// Key Components:
//   - JWTManager: mints and validates HMAC-SHA256 tokens (golang-jwt/v5)
//   - Gate: HTTP-level authentication with audit logging
//   - Claims: token claims including the scope grant
//
// Authentication Model:
//
// Streamcast uses a single pre-connection check. A request either carries
// a valid bearer token when the connection is opened or it is rejected
// with 401 before any stream state is created. There are no sessions,
// no refresh endpoint, and no identity provider integration; tokens are
// minted out of band and presented on every request.
//
// Tokens carry an optional scope claim ("consume", "publish", or both,
// space-separated). An empty scope grants everything.
//
// Token Expiry During Streams:
//
// A streaming connection can outlive its token. The stream handlers
// schedule a check at the token's expiry time; when it fires, the
// consumer is terminated with a fatal auth-expired error record so the
// client knows to refresh credentials before reconnecting, rather than
// burning retry attempts on 401 responses.
//
// Credential Carriers:
//
// The Authorization header is preferred. The access_token query
// parameter (RFC 6750 section 2.3) is also accepted because the browser
// EventSource API cannot set request headers.
//
// See Also:
//   - internal/api for the gated endpoints
//   - internal/logging for the security audit logger
package auth
