package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (<schema>.sessions).
// The pool is owned by the caller.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema holding the sessions table (default "gatekeep").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("session: invalid schema identifier %q", schema)
		}
		s.table = pgx.Identifier{schema, "sessions"}.Sanitize()
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{"gatekeep", "sessions"}.Sanitize(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, errors.New("session: nil pool")
	}
	return s, nil
}

// Insert creates a new session row.
func (s *PostgresStore) Insert(ctx context.Context, row Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table+` (id, user_id, expires_at) VALUES ($1, $2, $3)`,
		row.ID, row.UserID, row.ExpiresAt,
	)
	return err
}

// FindByID loads a session row by ID.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (Session, error) {
	var row Session

	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, expires_at FROM `+s.table+` WHERE id = $1`,
		id,
	).Scan(&row.ID, &row.UserID, &row.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return row, nil
}

// FindByUserID lists all session rows owned by userID.
func (s *PostgresStore) FindByUserID(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, expires_at FROM `+s.table+` WHERE user_id = $1 ORDER BY expires_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (Session, error) {
		var row Session
		err := r.Scan(&row.ID, &row.UserID, &row.ExpiresAt)
		return row, err
	})
}

// UpdateExpiresAt moves the expiry of a session row.
func (s *PostgresStore) UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE `+s.table+` SET expires_at = $2 WHERE id = $1`,
		id, expiresAt,
	)
	return err
}

// DeleteByID removes a single session (idempotent).
func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE id = $1`, id)
	return err
}

// DeleteByUserID removes all sessions for a user (idempotent).
func (s *PostgresStore) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE user_id = $1`, userID)
	return err
}

// DeleteExpired removes all rows with expires_at <= now.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
