package identity

import (
	"context"
	"strings"
	"time"
)

// User is gatekeep's canonical security principal.
type User struct {
	ID          string
	Email       *string
	DisplayName *string
	AvatarURL   *string
	CreatedAt   time.Time
}

// OAuthIdentity is the normalized set of facts an OAuth provider returns
// about the person who just signed in. It carries no auth decisions.
type OAuthIdentity struct {
	Provider       string
	ProviderUserID string
	Email          string
	DisplayName    string
	AvatarURL      string
}

func (in OAuthIdentity) validate(op string) (OAuthIdentity, error) {
	in.Provider = NormalizeProvider(in.Provider)
	in.ProviderUserID = strings.TrimSpace(in.ProviderUserID)
	if in.Provider == "" {
		return in, invalid(op, "missing provider")
	}
	if in.ProviderUserID == "" {
		return in, invalid(op, "missing provider_user_id")
	}
	return in, nil
}

// Store is the identity persistence boundary.
type Store interface {
	// GetUserByID loads a user. Returns an error matching ErrNotFound when absent.
	GetUserByID(ctx context.Context, id string) (User, error)

	// UpsertOAuthUser returns the user linked to (provider, provider_user_id),
	// creating the user and the link on first sign-in.
	UpsertOAuthUser(ctx context.Context, now time.Time, in OAuthIdentity) (User, error)

	// DeleteUser removes a user (idempotent). The Postgres schema cascades to
	// sessions; other backends leave them for the session manager's orphan repair.
	DeleteUser(ctx context.Context, id string) error
}
