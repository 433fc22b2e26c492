package session

import (
	"context"
	"slices"
	"time"
)

// Session is a persisted session row.
//
// ID is HashToken(token); the raw token is never stored.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// Store abstracts persistence for session rows.
//
// Implementations must make each single-row operation atomic. Deletes are
// idempotent: removing a missing row is not an error.
type Store interface {
	// Insert creates a new session row.
	Insert(ctx context.Context, s Session) error

	// FindByID loads a session row. Returns ErrSessionNotFound when absent.
	FindByID(ctx context.Context, id string) (Session, error)

	// FindByUserID lists the rows owned by a user, expired ones included.
	FindByUserID(ctx context.Context, userID string) ([]Session, error)

	// UpdateExpiresAt moves the expiry of an existing row. Missing rows are a no-op.
	UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error

	// DeleteByID removes a single session.
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID removes every session whose user_id matches.
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpired removes rows with expires_at <= now and reports how many went.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RequestContext supplies the session token presented by the current request,
// typically read from a cookie.
type RequestContext interface {
	SessionToken() (string, bool)
}

// RequestContextFunc adapts a function to RequestContext.
type RequestContextFunc func() (string, bool)

// SessionToken implements RequestContext.
func (f RequestContextFunc) SessionToken() (string, bool) { return f() }

func sortByExpiry(ss []Session) {
	slices.SortFunc(ss, func(a, b Session) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
}
