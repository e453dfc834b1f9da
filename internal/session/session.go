// Package session keeps the signed-in state of browser users on the server:
// the API token and the cached profile, keyed by an opaque cookie value.
package session

import (
	"context"
	"errors"
	"time"

	"moneybook/internal/core"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID        string
	Token     string
	User      core.User
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Create(ctx context.Context, s Session) error
	// Get returns ErrNotFound for unknown ids. Expired sessions are returned
	// as stored; callers check Expired.
	Get(ctx context.Context, id string) (Session, error)
	UpdateUser(ctx context.Context, id string, u core.User) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
