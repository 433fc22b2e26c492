package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type gormSession struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"index;not null;size:26"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func (gormSession) TableName() string { return "sessions" }

func (r gormSession) toSession() Session {
	return Session{ID: r.ID, UserID: r.UserID, ExpiresAt: r.ExpiresAt.UTC()}
}

// GormStore implements Store over gorm (SQLite in embedded mode).
//
// SQLite has no cascading FK from users here; sessions of a deleted user are
// removed by orphan repair when they are next presented.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore. The caller owns db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: nil gorm db")
	}
	return &GormStore{db: db}, nil
}

// Migrate creates or updates the sessions table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&gormSession{})
}

func (s *GormStore) Insert(ctx context.Context, row Session) error {
	return s.db.WithContext(ctx).Create(&gormSession{
		ID:        row.ID,
		UserID:    row.UserID,
		ExpiresAt: row.ExpiresAt.UTC(),
	}).Error
}

func (s *GormStore) FindByID(ctx context.Context, id string) (Session, error) {
	var row gormSession
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return row.toSession(), nil
}

func (s *GormStore) FindByUserID(ctx context.Context, userID string) ([]Session, error) {
	var rows []gormSession
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("expires_at").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSession())
	}
	return out, nil
}

func (s *GormStore) UpdateExpiresAt(ctx context.Context, id string, expiresAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&gormSession{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt.UTC()).Error
}

func (s *GormStore) DeleteByID(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&gormSession{}).Error
}

func (s *GormStore) DeleteByUserID(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&gormSession{}).Error
}

func (s *GormStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&gormSession{})
	return res.RowsAffected, res.Error
}
