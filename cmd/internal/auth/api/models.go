package authapi

import (
	"time"

	"gatekeep/cmd/identity"
	"gatekeep/cmd/internal/auth/session"
)

type userResponse struct {
	ID          string    `json:"id"`
	Email       *string   `json:"email"`
	DisplayName *string   `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current,omitempty"`
}

type meResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

type sessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
	}
}

func toSessionResponse(s session.Session, currentID string) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		ExpiresAt: s.ExpiresAt,
		Current:   s.ID == currentID,
	}
}
