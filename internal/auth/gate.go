// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package auth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/tomtom215/streamcast/internal/config"
	"github.com/tomtom215/streamcast/internal/logging"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClaimsContextKey is the context key for storing validated claims.
const ClaimsContextKey contextKey = "claims"

// ErrNoToken is returned by Authenticate when the request carries no
// credentials at all, as opposed to carrying bad ones.
var ErrNoToken = errors.New("no bearer token provided")

// Gate authenticates HTTP requests before they reach the stream or
// publish handlers. When auth is disabled (AUTH_MODE=none) every request
// passes with permissive claims, so handlers never need to special-case
// the disabled mode.
type Gate struct {
	manager *JWTManager
	sec     *logging.SecurityLogger
}

// NewGate creates an authentication gate from the security configuration.
// AUTH_MODE=none produces a disabled gate; AUTH_MODE=jwt requires a valid
// JWT_SECRET.
func NewGate(cfg config.SecurityConfig) (*Gate, error) {
	g := &Gate{sec: logging.NewSecurityLogger()}

	if cfg.AuthMode == "none" {
		return g, nil
	}

	manager, err := NewJWTManager(cfg)
	if err != nil {
		return nil, err
	}
	g.manager = manager

	return g, nil
}

// Enabled reports whether the gate actually checks credentials.
func (g *Gate) Enabled() bool {
	return g.manager != nil
}

// BearerToken extracts the bearer token from a request.
//
// Two carriers are accepted:
//  1. Authorization: Bearer <token> header (preferred)
//  2. access_token query parameter (RFC 6750 section 2.3)
//
// The query parameter exists because the browser EventSource API cannot
// set request headers, so SSE consumers have no other way to present
// credentials.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	return r.URL.Query().Get("access_token")
}

// Authenticate validates the credentials on a request and returns the
// claims they carry. Every outcome is audit-logged through the security
// logger with sanitized values.
//
// A disabled gate returns permissive claims for every request.
func (g *Gate) Authenticate(r *http.Request) (*Claims, error) {
	if !g.Enabled() {
		return &Claims{}, nil
	}

	ip := clientIP(r)
	userAgent := r.UserAgent()

	tokenString := BearerToken(r)
	if tokenString == "" {
		g.sec.LogMissingCredentials(ip, userAgent, r.URL.Path)
		return nil, ErrNoToken
	}

	claims, err := g.manager.ValidateToken(tokenString)
	if err != nil {
		if IsExpired(err) {
			g.sec.LogTokenExpired("", tokenString, ip)
		} else {
			g.sec.LogTokenRejected(ip, userAgent, err.Error())
		}
		return nil, err
	}

	g.sec.LogTokenAccepted(claims.Subject, tokenString, ip, userAgent)

	return claims, nil
}

// Middleware returns HTTP middleware that authenticates requests and
// stores the validated claims in the request context for handlers to
// retrieve with ClaimsFromContext.
//
// Rejected requests get 401 with a WWW-Authenticate challenge. Expired
// tokens are a 401 like any other rejection here; only established
// streaming sessions get the in-band auth-expired error record, because
// they have a connection to deliver it on.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="streamcast"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope returns middleware enforcing that the authenticated token
// grants the named scope. It must run after Middleware, which put the
// claims in the context.
func (g *Gate) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !claims.HasScope(scope) {
				g.sec.LogPublishDenied(claims.Subject, clientIP(r), "missing scope "+scope)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext retrieves the validated claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok
}

// clientIP extracts the remote address without the port for audit logs.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
