package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// DefaultTTL is how long a session lives when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned for unknown and expired tokens alike.
var ErrNotFound = errors.New("session not found")

// Session is the server-side record behind a browser's session cookie.
type Session struct {
	Token         string
	Authenticated bool
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// New creates an unsaved session with a fresh random token.
// PRE: ttl > 0
// POST: Token is 64 hex chars; ExpiresAt = now + ttl
func New(now time.Time, ttl time.Duration, authenticated bool) (Session, error) {
	token, err := NewToken()
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:         token,
		Authenticated: authenticated,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}, nil
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// TTL returns the remaining lifetime at now, never negative.
func (s Session) TTL(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// NewToken returns 32 random bytes, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
