package session

import (
	"context"

	domain "rancho/internal/domain/session"
)

// Store persists sessions keyed by token.
// Get returns domain.ErrNotFound for unknown or expired tokens.
type Store interface {
	Get(ctx context.Context, token string) (domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	Delete(ctx context.Context, token string) error
}
