package session

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s, err := NewGormStore(db)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestGormStore_CRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSQLiteStore(t)
	exp := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	row := Session{ID: HashToken("a"), UserID: "01HZX0000000000000000000AA", ExpiresAt: exp}
	require.NoError(t, s.Insert(ctx, row))

	got, err := s.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, row.UserID, got.UserID)
	assert.True(t, exp.Equal(got.ExpiresAt))

	later := exp.Add(48 * time.Hour)
	require.NoError(t, s.UpdateExpiresAt(ctx, row.ID, later))
	got, err = s.FindByID(ctx, row.ID)
	require.NoError(t, err)
	assert.True(t, later.Equal(got.ExpiresAt))

	require.NoError(t, s.UpdateExpiresAt(ctx, "missing", later))

	require.NoError(t, s.DeleteByID(ctx, row.ID))
	require.NoError(t, s.DeleteByID(ctx, row.ID))
	_, err = s.FindByID(ctx, row.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGormStore_UserScopedDeletesAndPurge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newSQLiteStore(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	const alice, bob = "01HZX0000000000000000000AL", "01HZX0000000000000000000BO"
	require.NoError(t, s.Insert(ctx, Session{ID: HashToken("a1"), UserID: alice, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.Insert(ctx, Session{ID: HashToken("a2"), UserID: alice, ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, s.Insert(ctx, Session{ID: HashToken("b1"), UserID: bob, ExpiresAt: now.Add(-time.Minute)}))

	rows, err := s.FindByUserID(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, s.DeleteByUserID(ctx, alice))
	rows, err = s.FindByUserID(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
