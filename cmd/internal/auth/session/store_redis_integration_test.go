package session

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Enabled when GATEKEEP_REDIS_URL is set.

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("GATEKEEP_REDIS_URL"))
	if raw == "" {
		t.Skip("GATEKEEP_REDIS_URL is not set; skipping Redis integration test")
	}
	opts, err := redis.ParseURL(raw)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		if shouldSkipIntegration(err) {
			t.Skipf("Redis unreachable (GATEKEEP_REDIS_URL set): %v", err)
		}
		t.Fatalf("ping: %v", err)
	}

	prefix := "gk_it_" + strings.ToLower(ulid.Make().String()) + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			_ = client.Del(ctx, keys...).Err()
		}
	})
	return NewRedisStore(client, WithKeyPrefix(prefix))
}

func TestRedisStore_Roundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newRedisStore(t)
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)

	row := Session{ID: HashToken("redis-a"), UserID: "user-1", ExpiresAt: exp}
	require.NoError(t, s.Insert(ctx, row))

	got, err := s.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, row.UserID, got.UserID)
	assert.True(t, exp.Equal(got.ExpiresAt))

	later := exp.Add(time.Hour)
	require.NoError(t, s.UpdateExpiresAt(ctx, row.ID, later))
	got, err = s.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.True(t, later.Equal(got.ExpiresAt))

	require.NoError(t, s.UpdateExpiresAt(ctx, HashToken("nope"), later))
	_, err = s.FindByID(ctx, HashToken("nope"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, s.DeleteByID(ctx, row.ID))
	require.NoError(t, s.DeleteByID(ctx, row.ID))
	_, err = s.FindByID(ctx, row.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestRedisStore_DeleteByUserID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newRedisStore(t)
	exp := time.Now().Add(time.Hour)

	require.NoError(t, s.Insert(ctx, Session{ID: HashToken("u1-a"), UserID: "u1", ExpiresAt: exp}))
	require.NoError(t, s.Insert(ctx, Session{ID: HashToken("u1-b"), UserID: "u1", ExpiresAt: exp}))
	require.NoError(t, s.Insert(ctx, Session{ID: HashToken("u2-a"), UserID: "u2", ExpiresAt: exp}))

	rows, err := s.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, s.DeleteByUserID(ctx, "u1"))

	rows, err = s.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = s.FindByID(ctx, HashToken("u2-a"))
	assert.NoError(t, err)
}

func TestRedisStore_RenewAfterDeleteDoesNotResurrect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newRedisStore(t)
	exp := time.Now().Add(time.Hour).UTC()

	row := Session{ID: HashToken("redis-race"), UserID: "user-1", ExpiresAt: exp}
	require.NoError(t, s.Insert(ctx, row))

	// Logout lands between the renewal's lookup and its write.
	require.NoError(t, s.DeleteByID(ctx, row.ID))
	require.NoError(t, s.UpdateExpiresAt(ctx, row.ID, exp.Add(day)))

	n, err := s.client.Exists(ctx, s.sessionKey(row.ID)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.FindByID(ctx, row.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_OwnerlessHashIsNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newRedisStore(t)
	id := HashToken("redis-ownerless")
	key := s.sessionKey(id)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, s.client.HSet(ctx, key, "expires_at", exp.UnixMilli()).Err())

	_, err := s.FindByID(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err := s.client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
