package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/questmock/models"
	"github.com/cppla/questmock/utils"
)

// UserService resolves login names to users.
type UserService struct {
	db     *gorm.DB
	events *EventService
	now    func() time.Time
}

// NewUserService creates a UserService.
func NewUserService(db *gorm.DB, events *EventService) *UserService {
	return &UserService{db: db, events: events, now: utcNow}
}

// ResolveOrCreateUser finds the user named username, creating it on first
// login, and records a login event in the same transaction.
func (s *UserService) ResolveOrCreateUser(ctx context.Context, username string, link *models.PlatformLink) (*models.User, error) {
	name := utils.SanitizeName(username)
	if name == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}

	var (
		user models.User
		err  error
	)
	// a concurrent first login under the same name loses on the unique index
	// and resolves to the winner's row on the second pass
	for attempt := 0; attempt < 2; attempt++ {
		user, err = s.resolveOnce(ctx, name, link)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user %q: %w", name, err)
	}
	return &user, nil
}

func (s *UserService) resolveOnce(ctx context.Context, name string, link *models.PlatformLink) (models.User, error) {
	var user models.User
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("username = ?", name).First(&user).Error
		switch {
		case err == nil:
			user.LastLoginAt = now
			if link != nil {
				link.Apply(&user, now)
			}
			if err := tx.Save(&user).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			id, err := nextSequence(tx, models.UserUUIDSequence, &models.User{})
			if err != nil {
				return err
			}
			user = models.User{
				UUID:        strconv.FormatInt(id, 10),
				Username:    name,
				LastLoginAt: now,
				CreatedAt:   now,
			}
			if link != nil {
				link.Apply(&user, now)
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			utils.Sugar.Infof("user created uuid=%s username=%s linked=%t", user.UUID, user.Username, user.IsPlatformLinked)
		default:
			return err
		}

		_, err = s.events.Record(tx, user.UUID, models.LoginEvent{
			Username:         user.Username,
			LoginTime:        now,
			IsPlatformLinked: user.IsPlatformLinked,
			PlatformID:       user.PlatformID,
			MemberID:         user.MemberID,
			BappID:           user.BappID,
			PlatformUUID:     user.PlatformUUID,
		})
		return err
	})
	return user, err
}

// FindByUUID loads a user by public id.
func (s *UserService) FindByUUID(ctx context.Context, userUUID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("uuid = ?", userUUID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userUUID, err)
	}
	return &user, nil
}

// Logout records a logout event for the user.
func (s *UserService) Logout(ctx context.Context, userUUID string) error {
	user, err := s.FindByUUID(ctx, userUUID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.events.Record(tx, user.UUID, models.LogoutEvent{Username: user.Username, LogoutTime: s.now()})
		return err
	})
}

// nextSequence increments the named counter inside tx and returns the new
// value. A missing counter is seeded from the row count of seedModel, so ids
// continue after rows that predate the counter.
func nextSequence(tx *gorm.DB, name string, seedModel interface{}) (int64, error) {
	bump := func() (int64, error) {
		res := tx.Model(&models.Sequence{}).Where("name = ?", name).Update("value", gorm.Expr("value + ?", 1))
		return res.RowsAffected, res.Error
	}

	affected, err := bump()
	if err != nil {
		return 0, fmt.Errorf("bump sequence %s: %w", name, err)
	}
	if affected == 0 {
		var count int64
		if err := tx.Model(seedModel).Count(&count).Error; err != nil {
			return 0, fmt.Errorf("seed sequence %s: %w", name, err)
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Sequence{Name: name, Value: count + 1})
		if res.Error != nil {
			return 0, fmt.Errorf("create sequence %s: %w", name, res.Error)
		}
		if res.RowsAffected == 0 {
			if _, err := bump(); err != nil {
				return 0, fmt.Errorf("bump sequence %s: %w", name, err)
			}
		}
	}

	var seq models.Sequence
	if err := tx.Where("name = ?", name).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	return seq.Value, nil
}
