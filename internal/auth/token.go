// Package auth keeps the opaque bearer token the server hands out at login.
// The token lives in the metadata area so it survives restarts alongside the
// sync watermarks.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jiangjiax/goalify-client/internal/repositories/metadata"
)

const tokenKey = "authToken"

var ErrNoToken = errors.New("no auth token stored")

// Store reads and writes the bearer token. It satisfies api.TokenSource.
type Store struct {
	meta metadata.Repository
}

func NewStore(meta metadata.Repository) *Store {
	return &Store{meta: meta}
}

// Token returns the stored token, or "" when none is stored. The transport
// treats an empty token as a local precondition failure.
func (s *Store) Token(ctx context.Context) (string, error) {
	b, err := s.meta.Get(ctx, tokenKey)
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return string(b), nil
}

// SetToken stores the token handed out by the login flow.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoToken
	}
	return s.meta.Set(ctx, tokenKey, []byte(token))
}

// ClearToken drops the credential (logout).
func (s *Store) ClearToken(ctx context.Context) error {
	return s.meta.Delete(ctx, tokenKey)
}

// ExpiryHint inspects the token without verifying its signature. When the
// opaque token happens to be a JWT with an exp claim, the expiry is returned
// so the sync loop can log a warning before burning a network call. The
// server stays authoritative: a false (no hint) result never blocks a call.
func ExpiryHint(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
