package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"gorm.io/gorm"
)

// MySQLStore implements the Store interface using GORM.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a new MySQL-backed user store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, logger: log}
}

// Create inserts a new user.
func (s *MySQLStore) Create(ctx context.Context, u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		s.logger.Error(ctx, "failed to create user", map[string]interface{}{
			"error": err.Error(),
			"email": u.Email,
		})
		return err
	}

	s.logger.Info(ctx, "user created", map[string]interface{}{
		"user_id": u.ID.String(),
		"email":   u.Email,
	})

	return nil
}

// GetByID retrieves an active user by ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error(ctx, "failed to get user", map[string]interface{}{
			"error":   err.Error(),
			"user_id": id.String(),
		})
		return nil, err
	}

	return &u, nil
}

// GetByEmail retrieves an active user by email.
func (s *MySQLStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", email, true).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error(ctx, "failed to get user by email", map[string]interface{}{
			"error": err.Error(),
			"email": email,
		})
		return nil, err
	}

	return &u, nil
}

// Update applies the setters to an active user inside a transaction.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u User
		if err := tx.Where("id = ? AND is_active = ?", id, true).First(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		for _, setter := range setters {
			if err := setter(&u); err != nil {
				return err
			}
		}

		return tx.Save(&u).Error
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		if !errors.Is(err, ErrUserNotFound) && !errors.Is(err, ErrInvalidEmail) &&
			!errors.Is(err, ErrInvalidUsername) && !errors.Is(err, ErrPasswordTooShort) {
			s.logger.Error(ctx, "failed to update user", map[string]interface{}{
				"error":   err.Error(),
				"user_id": id.String(),
			})
		}
		return err
	}

	s.logger.Info(ctx, "user updated", map[string]interface{}{
		"user_id": id.String(),
	})

	return nil
}

// Delete flips is_active off. The conditional update makes a repeat delete
// report not found.
func (s *MySQLStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		s.logger.Error(ctx, "failed to delete user", map[string]interface{}{
			"error":   result.Error.Error(),
			"user_id": id.String(),
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info(ctx, "user deleted", map[string]interface{}{
		"user_id": id.String(),
	})

	return nil
}

// List retrieves a paginated list of active users.
func (s *MySQLStore) List(ctx context.Context, limit, offset int) ([]*User, error) {
	var users []*User
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list users", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	return users, nil
}

// isDuplicateKeyError detects unique constraint violations across MySQL and
// SQLite (tests) without depending on driver error types.
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
