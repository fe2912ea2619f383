package domain

import (
	"context"
	"net/url"
	"time"
)

// Identity is the result of a successful identity exchange.
type Identity struct {
	Email       string
	Credentials Credentials
}

// IdentityProvider performs the OAuth handshake.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	// Exchange validates the callback against expectedState and returns the
	// verified identity. Failures match ErrAuth.
	Exchange(ctx context.Context, callback *url.URL, expectedState string) (*Identity, error)
}

// Session is a signed-in user together with their remote credentials.
type Session struct {
	ID          string
	Email       string
	Credentials Credentials
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
