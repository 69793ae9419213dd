package nocodetest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"gorm.io/gorm"
)

// MySQLStore implements Store using GORM.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a new MySQL-backed test store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, logger: log}
}

// Create inserts a new test.
func (s *MySQLStore) Create(ctx context.Context, t *Test) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := ValidateSteps(t.Steps, DefaultValidationLimits()); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = StatusPending
	}

	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		s.logger.Error(ctx, "failed to create test", map[string]interface{}{
			"error": err.Error(),
			"name":  t.Name,
		})
		return err
	}

	s.logger.Info(ctx, "test created", map[string]interface{}{
		"test_id": t.ID.String(),
		"name":    t.Name,
	})

	return nil
}

// GetByID retrieves a test by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Test, error) {
	var t Test
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		s.logger.Error(ctx, "failed to get test", map[string]interface{}{
			"error":   err.Error(),
			"test_id": id.String(),
		})
		return nil, err
	}

	return &t, nil
}

// Update applies the given setters to a test.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(t); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		s.logger.Error(ctx, "failed to update test", map[string]interface{}{
			"error":   err.Error(),
			"test_id": id.String(),
		})
		return err
	}

	return nil
}

// Delete hard-deletes a test.
func (s *MySQLStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Test{})
	if result.Error != nil {
		s.logger.Error(ctx, "failed to delete test", map[string]interface{}{
			"error":   result.Error.Error(),
			"test_id": id.String(),
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTestNotFound
	}

	s.logger.Info(ctx, "test deleted", map[string]interface{}{
		"test_id": id.String(),
	})

	return nil
}

// List retrieves a paginated list of tests, newest first.
func (s *MySQLStore) List(ctx context.Context, limit, offset int) ([]*Test, error) {
	var tests []*Test
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tests).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list tests", map[string]interface{}{
			"error":  err.Error(),
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}

	return tests, nil
}

// Count returns the total number of tests.
func (s *MySQLStore) Count(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Test{}).Count(&count).Error
	if err != nil {
		s.logger.Error(ctx, "failed to count tests", map[string]interface{}{
			"error": err.Error(),
		})
		return 0, err
	}

	return int(count), nil
}
