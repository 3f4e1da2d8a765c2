// Package auth resolves opaque session tokens to the calling user.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for missing, unknown or expired tokens.
var ErrUnauthorized = errors.New("unauthorized")

// Role is the permission level of a session.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Session is a stored login. Only the HMAC of the token is persisted.
type Session struct {
	UserID    string
	Role      Role
	KeyHash   string
	ExpiresAt *time.Time
}

// Admin reports whether the session may use admin endpoints.
func (s *Session) Admin() bool { return s.Role == RoleAdmin }

// Repository stores sessions by token hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Session, error)
	Create(ctx context.Context, s Session) error
}

// Authenticator validates bearer tokens against the session store.
type Authenticator struct {
	sessions Repository
	pepper   []byte
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator that hashes tokens with pepper.
func NewAuthenticator(sessions Repository, pepper []byte) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		pepper:   pepper,
		now:      time.Now,
	}
}

// Hash returns the hex HMAC-SHA256 of token under the configured pepper.
func (a *Authenticator) Hash(token string) string {
	return hex.EncodeToString(a.sum(token))
}

func (a *Authenticator) sum(token string) []byte {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

// Authenticate resolves token to its session.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	hash := a.sum(token)

	s, err := a.sessions.FindByHash(ctx, hex.EncodeToString(hash))
	if errors.Is(err, ErrUnauthorized) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, errors.Wrap(err, "find session")
	}

	// The stored hash must match what we computed, not just the lookup key.
	stored, err := hex.DecodeString(s.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, ErrUnauthorized
	}
	if s.ExpiresAt != nil && !a.now().Before(*s.ExpiresAt) {
		return nil, ErrUnauthorized
	}
	return s, nil
}

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
