// Package auth verifies bearer tokens on secured operations and exposes the
// caller to handlers.
package auth

import (
	"context"
	"errors"
	"strings"
)

// Principal is the authenticated caller.
type Principal struct {
	UID           string
	Email         string
	EmailVerified bool
	// Admin comes from the "admin" custom claim.
	Admin bool
}

// Owns reports whether the caller proved ownership of email. Only verified
// addresses count.
func (p *Principal) Owns(email string) bool {
	if p == nil || !p.EmailVerified || p.Email == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(p.Email), strings.TrimSpace(email))
}

var (
	ErrNoToken      = errors.New("missing authorization header")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrUserDisabled = errors.New("user disabled")

	// ErrUnavailable means tokens cannot be checked right now (certificate
	// fetch failed, or no identity provider is configured). Maps to 503.
	ErrUnavailable = errors.New("token verification unavailable")
)

// Verifier validates a bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// ExtractBearerToken returns the token of a "Bearer <token>" header.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// StaticVerifier accepts a fixed set of tokens. Used in tests and local runs.
type StaticVerifier map[string]*Principal

func (v StaticVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	if p, ok := v[token]; ok {
		return p, nil
	}
	return nil, ErrInvalidToken
}

// UnavailableVerifier rejects every token with ErrUnavailable. The server uses
// it when no Firebase project is configured.
type UnavailableVerifier struct{}

func (UnavailableVerifier) Verify(context.Context, string) (*Principal, error) {
	return nil, ErrUnavailable
}

var (
	_ Verifier = StaticVerifier(nil)
	_ Verifier = UnavailableVerifier{}
)
