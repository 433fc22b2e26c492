package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

type gormUser struct {
	ID          string `gorm:"primaryKey;size:26"`
	Email       *string
	EmailNorm   *string `gorm:"index"`
	DisplayName *string
	AvatarURL   *string
	CreatedAt   time.Time
}

func (gormUser) TableName() string { return "users" }

func (u gormUser) toUser() User {
	return User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
	}
}

type gormOAuthAccount struct {
	Provider       string `gorm:"primaryKey"`
	ProviderUserID string `gorm:"primaryKey"`
	UserID         string `gorm:"index;not null;size:26"`
	CreatedAt      time.Time
}

func (gormOAuthAccount) TableName() string { return "oauth_accounts" }

// GormStore implements Store over gorm. It backs the embedded SQLite mode
// used when no Postgres URL is configured.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore. The caller owns db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil gorm db")
	}
	return &GormStore{db: db}, nil
}

// Migrate creates or updates the identity tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&gormUser{}, &gormOAuthAccount{})
}

// GetUserByID loads a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, invalid(op, "missing user_id")
	}

	var row gormUser
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, userNotFound(op)
	}
	if err != nil {
		return User{}, err
	}
	return row.toUser(), nil
}

// UpsertOAuthUser resolves or creates the user for an OAuth identity in one transaction.
func (s *GormStore) UpsertOAuthUser(ctx context.Context, now time.Time, in OAuthIdentity) (User, error) {
	const op = "identity.UpsertOAuthUser"

	in, err := in.validate(op)
	if err != nil {
		return User{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link gormOAuthAccount
		err := tx.Where("provider = ? AND provider_user_id = ?", in.Provider, in.ProviderUserID).Take(&link).Error
		switch {
		case err == nil:
			var row gormUser
			if err := tx.Where("id = ?", link.UserID).Take(&row).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return userNotFound(op)
				}
				return err
			}
			out = row.toUser()
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		userID, err := NewUserID(now)
		if err != nil {
			return err
		}

		row := gormUser{
			ID:          userID,
			Email:       trimPtr(in.Email),
			DisplayName: trimPtr(in.DisplayName),
			AvatarURL:   trimPtr(in.AvatarURL),
			CreatedAt:   now,
		}
		if row.Email != nil {
			n := NormalizeEmail(*row.Email)
			row.EmailNorm = &n
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		link = gormOAuthAccount{
			Provider:       in.Provider,
			ProviderUserID: in.ProviderUserID,
			UserID:         userID,
			CreatedAt:      now,
		}
		if err := tx.Create(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ConflictError{Op: op, Field: "oauth_account"}
			}
			return err
		}

		out = row.toUser()
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return out, nil
}

// DeleteUser removes a user and its OAuth links (idempotent).
func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&gormOAuthAccount{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&gormUser{}).Error
	})
}
