package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and throwaway dev runs.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
	links map[string]string // provider + "\x00" + provider_user_id -> user id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]User),
		links: make(map[string]string),
	}
}

func linkKey(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

// GetUserByID loads a user by ID.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, invalid(op, "missing user_id")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, userNotFound(op)
	}
	return u, nil
}

// UpsertOAuthUser resolves or creates the user for an OAuth identity.
func (s *MemoryStore) UpsertOAuthUser(ctx context.Context, now time.Time, in OAuthIdentity) (User, error) {
	const op = "identity.UpsertOAuthUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := in.validate(op)
	if err != nil {
		return User{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey(in.Provider, in.ProviderUserID)
	if id, ok := s.links[key]; ok {
		if u, ok := s.users[id]; ok {
			return u, nil
		}
		// Link without a user row: re-create the user.
	}

	id, err := NewUserID(now)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:          id,
		Email:       trimPtr(in.Email),
		DisplayName: trimPtr(in.DisplayName),
		AvatarURL:   trimPtr(in.AvatarURL),
		CreatedAt:   now,
	}
	s.users[id] = u
	s.links[key] = id
	return u, nil
}

// PutUser inserts or replaces a user directly. Useful for seeding.
func (s *MemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// DeleteUser removes a user and its OAuth links (idempotent).
func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.users, id)
	for k, uid := range s.links {
		if uid == id {
			delete(s.links, k)
		}
	}
	return nil
}
