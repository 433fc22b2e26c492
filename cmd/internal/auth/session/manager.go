package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gatekeep/cmd/identity"
)

// maxTokenLen bounds presented tokens; real ones are 32 chars.
const maxTokenLen = 256

// UserFinder resolves the user that owns a session.
// GetUserByID must return an error matching identity.ErrNotFound for a missing user.
type UserFinder interface {
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

// Result is the outcome of a validation. A zero Result means "no session":
// the token was absent, unknown, expired, or pointed at a deleted user.
type Result struct {
	Session *Session
	User    *identity.User

	// Renewed is set when this validation pushed ExpiresAt forward, so the
	// transport can re-issue its cookie with the new expiry.
	Renewed bool
}

// Valid reports whether the result carries a live session.
func (r Result) Valid() bool { return r.Session != nil && r.User != nil }

// Manager implements session creation, validation with sliding renewal, and invalidation.
//
// It holds no mutable state of its own; every decision is made against the Store.
type Manager struct {
	cfg     Config
	store   Store
	users   UserFinder
	log     *slog.Logger
	metrics *Metrics
}

// ManagerOption configures optional Manager dependencies.
type ManagerOption func(*Manager)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager constructs a Manager over a session store and a user lookup.
func NewManager(cfg Config, store Store, users UserFinder, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:   cfg,
		store: store,
		users: users,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Config returns the manager configuration.
func (m *Manager) Config() Config { return m.cfg }

// GenerateSessionToken returns a fresh raw token for CreateSession.
func (m *Manager) GenerateSessionToken() (string, error) {
	return GenerateSessionToken()
}

// CreateSession persists a session for token, expiring ExtendTime from now.
// The token is hashed as given; it must be non-empty and at most maxTokenLen
// bytes, the same bounds ValidateSessionToken accepts.
func (m *Manager) CreateSession(ctx context.Context, now time.Time, tok string, userID string) (Session, error) {
	if tok == "" || len(tok) > maxTokenLen || strings.TrimSpace(userID) == "" {
		return Session{}, ErrInvalidArgument
	}

	s := Session{
		ID:        HashToken(tok),
		UserID:    userID,
		ExpiresAt: now.Add(m.cfg.ExtendTime()),
	}
	if err := m.store.Insert(ctx, s); err != nil {
		return Session{}, fmt.Errorf("session: insert: %w", err)
	}

	m.metrics.created()
	m.log.Debug("session.create", "sid", shortID(s.ID), "user_id", userID, "expires_at", s.ExpiresAt)
	return s, nil
}

// ValidateSessionToken resolves a raw token to its live session and user.
//
// Expired sessions and sessions whose user no longer exists are deleted and
// reported as a zero Result. A session inside the trailing RefreshPeriod of
// its lifetime is renewed to now+ExtendTime. Only store failures return an error.
func (m *Manager) ValidateSessionToken(ctx context.Context, now time.Time, tok string) (Result, error) {
	if tok == "" || len(tok) > maxTokenLen {
		m.observe(OutcomeNoToken, "")
		return Result{}, nil
	}

	id := HashToken(tok)

	s, err := m.store.FindByID(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		m.observe(OutcomeNotFound, id)
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("session: find: %w", err)
	}

	if !now.Before(s.ExpiresAt) {
		if err := m.store.DeleteByID(ctx, id); err != nil {
			return Result{}, fmt.Errorf("session: delete expired: %w", err)
		}
		m.observe(OutcomeExpired, id)
		return Result{}, nil
	}

	u, err := m.users.GetUserByID(ctx, s.UserID)
	if errors.Is(err, identity.ErrNotFound) {
		if err := m.store.DeleteByID(ctx, id); err != nil {
			return Result{}, fmt.Errorf("session: delete orphan: %w", err)
		}
		m.observe(OutcomeOrphaned, id)
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("session: find user: %w", err)
	}

	renewed := false
	if !now.Before(s.ExpiresAt.Add(-m.cfg.RefreshPeriod)) {
		s.ExpiresAt = now.Add(m.cfg.ExtendTime())
		if err := m.store.UpdateExpiresAt(ctx, id, s.ExpiresAt); err != nil {
			return Result{}, fmt.Errorf("session: renew: %w", err)
		}
		renewed = true
		m.observe(OutcomeRenewed, id)
	} else {
		m.observe(OutcomeValid, id)
	}

	return Result{Session: &s, User: &u, Renewed: renewed}, nil
}

// ValidateRequest validates the token carried by rc, if any.
func (m *Manager) ValidateRequest(ctx context.Context, now time.Time, rc RequestContext) (Result, error) {
	if rc == nil {
		m.observe(OutcomeNoToken, "")
		return Result{}, nil
	}
	tok, ok := rc.SessionToken()
	if !ok {
		m.observe(OutcomeNoToken, "")
		return Result{}, nil
	}
	return m.ValidateSessionToken(ctx, now, tok)
}

// InvalidateSession deletes one session by ID (the token hash, not the token).
func (m *Manager) InvalidateSession(ctx context.Context, sessionID string) error {
	if err := m.store.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("session: invalidate: %w", err)
	}
	m.metrics.invalidated("session")
	m.log.Debug("session.invalidate", "sid", shortID(sessionID))
	return nil
}

// InvalidateUserSessions deletes every session owned by userID (log out everywhere).
func (m *Manager) InvalidateUserSessions(ctx context.Context, userID string) error {
	if err := m.store.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("session: invalidate user: %w", err)
	}
	m.metrics.invalidated("user")
	m.log.Info("session.invalidate_user", "user_id", userID)
	return nil
}

// ListUserSessions returns the unexpired sessions of a user, soonest expiry first.
func (m *Manager) ListUserSessions(ctx context.Context, now time.Time, userID string) ([]Session, error) {
	all, err := m.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	out := make([]Session, 0, len(all))
	for _, s := range all {
		if now.Before(s.ExpiresAt) {
			out = append(out, s)
		}
	}
	sortByExpiry(out)
	return out, nil
}

// PurgeExpired deletes expired rows in bulk. Validation never depends on it;
// it only reclaims space for sessions nobody presents again.
func (m *Manager) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	if n > 0 {
		m.log.Info("session.purge", "deleted", n)
	}
	return n, nil
}

func (m *Manager) observe(o Outcome, id string) {
	m.metrics.validated(o)
	if id == "" {
		m.log.Debug("session.validate", "outcome", string(o))
		return
	}
	m.log.Debug("session.validate", "outcome", string(o), "sid", shortID(id))
}

// shortID keeps logs correlatable without writing full session IDs.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
