// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/streamcast/internal/config"
)

// Scopes a token can grant. A token with an empty scope claim grants
// everything, so tokens minted before scopes existed keep working.
const (
	// ScopeConsume allows opening stream connections.
	ScopeConsume = "consume"

	// ScopePublish allows posting events to the publish endpoint.
	ScopePublish = "publish"
)

// Claims represents the JWT claims carried by streamcast bearer tokens.
type Claims struct {
	// Scope is a space-separated list of grants, following the OAuth scope
	// convention. Empty means unrestricted.
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants the named scope.
func (c *Claims) HasScope(scope string) bool {
	if c.Scope == "" {
		return true
	}
	for _, s := range strings.Fields(c.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}

// JWTManager mints and validates the HMAC-SHA256 bearer tokens that gate
// stream and publish access.
type JWTManager struct {
	secret   []byte
	audience string
}

// NewJWTManager creates a token manager from the security configuration.
//
// Security Requirements:
//   - JWT_SECRET must be at least 32 characters
//   - Secret is stored as []byte to prevent string interning attacks
//   - Uses HS256 signing (HMAC with SHA-256); other algorithms are rejected
//     at validation time to prevent algorithm confusion attacks
//
// When JWT_AUDIENCE is set, minted tokens carry it and validated tokens
// must present it.
func NewJWTManager(cfg config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	return &JWTManager{
		secret:   []byte(cfg.JWTSecret),
		audience: cfg.JWTAudience,
	}, nil
}

// GenerateToken creates a signed bearer token for one principal.
//
// Parameters:
//   - subject: the principal the token identifies, recorded in audit logs
//   - scope: space-separated grants ("consume", "publish"), empty for all
//   - ttl: how long the token stays valid; streaming sessions outliving
//     their token are terminated with an auth-expired error record
//
// Returns the signed compact JWT, or an error if signing fails.
func (m *JWTManager) GenerateToken(subject, scope string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// ValidateToken validates a bearer token and extracts its claims.
//
// Validation Steps:
//  1. Parse token structure and extract claims
//  2. Verify the HMAC-SHA256 signature against the configured secret
//  3. Check the signing algorithm is HMAC (prevents algorithm confusion)
//  4. Verify expiry and not-before against server time
//  5. Verify the audience when one is configured
//
// Expiry is the one rejection a client can repair by refreshing
// credentials; IsExpired distinguishes it from tampering and malformed
// input.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	var opts []jwt.ParserOption
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// IsExpired reports whether a validation error means the token was valid
// once and has run out, rather than being tampered with or malformed.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
