package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on Redis.
//
// Layout:
//   - <prefix>session:<id>    hash {user_id, expires_at (unix ms)}, PEXPIREAT = expires_at
//   - <prefix>user_sessions:<user_id>  set of session IDs
//
// Redis drops expired rows on its own, so DeleteExpired only reports zero.
// Set members whose hash already expired are pruned when the set is read.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures the store.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces all keys (default "gatekeep:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore creates a Redis-backed session store. The caller owns client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "gatekeep:"}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) sessionKey(id string) string { return s.prefix + "session:" + id }

func (s *RedisStore) userKey(userID string) string { return s.prefix + "user_sessions:" + userID }

// Insert writes the session hash, its expiry, and the user index entry atomically.
func (s *RedisStore) Insert(ctx context.Context, row Session) error {
	key := s.sessionKey(row.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    row.UserID,
			"expires_at": strconv.FormatInt(row.ExpiresAt.UnixMilli(), 10),
		})
		pipe.PExpireAt(ctx, key, row.ExpiresAt)
		pipe.SAdd(ctx, s.userKey(row.UserID), row.ID)
		return nil
	})
	return err
}

// FindByID loads a session by ID.
func (s *RedisStore) FindByID(ctx context.Context, id string) (Session, error) {
	data, err := s.client.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return Session{}, err
	}
	if len(data) == 0 {
		return Session{}, ErrSessionNotFound
	}
	if data["user_id"] == "" {
		// Ownerless leftovers are unreachable; drop them.
		if err := s.client.Del(ctx, s.sessionKey(id)).Err(); err != nil {
			return Session{}, err
		}
		return Session{}, ErrSessionNotFound
	}
	return decodeRedisSession(id, data)
}

// FindByUserID resolves the user index and loads each live session.
func (s *RedisStore) FindByUserID(ctx context.Context, userID string) ([]Session, error) {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Session, 0, len(ids))
	var stale []any
	for _, id := range ids {
		row, err := s.FindByID(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.userKey(userID), stale...).Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// renewScript moves expires_at only while the session hash still has an owner,
// so a renewal racing a delete cannot recreate the key.
var renewScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], 'user_id') == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'expires_at', ARGV[1])
redis.call('PEXPIREAT', KEYS[1], ARGV[1])
return 1
`)

// UpdateExpiresAt moves the expiry of an existing session. Missing rows are left alone.
func (s *RedisStore) UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error {
	ms := strconv.FormatInt(expiresAt.UnixMilli(), 10)
	return renewScript.Run(ctx, s.client, []string{s.sessionKey(id)}, ms).Err()
}

// DeleteByID removes a session and its user index entry (idempotent).
func (s *RedisStore) DeleteByID(ctx context.Context, id string) error {
	key := s.sessionKey(id)
	userID, err := s.client.HGet(ctx, key, "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, s.userKey(userID), id)
		return nil
	})
	return err
}

// DeleteByUserID removes every session in the user index, then the index itself.
func (s *RedisStore) DeleteByUserID(ctx context.Context, userID string) error {
	ids, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.sessionKey(id))
	}
	keys = append(keys, s.userKey(userID))
	return s.client.Del(ctx, keys...).Err()
}

// DeleteExpired is a no-op: Redis expires session hashes itself.
func (s *RedisStore) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func decodeRedisSession(id string, data map[string]string) (Session, error) {
	ms, err := strconv.ParseInt(data["expires_at"], 10, 64)
	if err != nil {
		return Session{}, fmt.Errorf("session: corrupt expires_at for %s: %w", shortID(id), err)
	}
	return Session{
		ID:        id,
		UserID:    data["user_id"],
		ExpiresAt: time.UnixMilli(ms).UTC(),
	}, nil
}
