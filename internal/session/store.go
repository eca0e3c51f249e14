// Package session persists the bearer credential between invocations.
//
// The credential is an opaque token. It is written by login and register,
// read before every outbound request and removed by logout. No expiry is
// tracked: a token is trusted until the backend rejects it.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultKey is the fixed key the credential is stored under
const DefaultKey = "token"

// Store holds the current credential. Get returns an empty string when no
// session exists.
type Store interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the credential in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get implements Store
func (s *MemoryStore) Get(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// Set implements Store
func (s *MemoryStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear implements Store
func (s *MemoryStore) Clear(context.Context) error {
	return s.Set(context.Background(), "")
}

// maskShowChars is how many leading characters Mask keeps
const maskShowChars = 8

// Mask returns a loggable form of token
func Mask(token string) string {
	if token == "" {
		return "***empty***"
	}
	if len(token) <= maskShowChars {
		return "***masked***"
	}
	return token[:maskShowChars] + "***"
}

// Claims is the display information carried by a JWT credential
type Claims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's exp lies in the past. It is only
// informational; requests are still sent with an expired token.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type displayClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// ParseClaims decodes the claims of a JWT credential without verifying its
// signature. The client never holds the signing key, so the result must not
// be used for authorization decisions.
func ParseClaims(token string) (*Claims, error) {
	var claims displayClaims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return nil, err
	}

	out := &Claims{Subject: claims.Subject, Email: claims.Email}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if out.Email == "" && strings.Contains(out.Subject, "@") {
		out.Email = out.Subject
	}
	return out, nil
}
