package execution

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"gorm.io/gorm"
)

// MySQLStore implements the Store interface using GORM.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a new MySQL-backed execution store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, logger: log}
}

// Create inserts a new execution. Executions are born running.
func (s *MySQLStore) Create(ctx context.Context, e *Execution) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Status == "" {
		e.Status = StatusRunning
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		s.logger.Error(ctx, "failed to create execution", map[string]interface{}{
			"error":   err.Error(),
			"test_id": e.TestID.String(),
		})
		return err
	}

	s.logger.Info(ctx, "execution created", map[string]interface{}{
		"execution_id": e.ID.String(),
		"test_id":      e.TestID.String(),
	})

	return nil
}

// GetByID retrieves an execution by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Execution, error) {
	var e Execution
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExecutionNotFound
		}
		s.logger.Error(ctx, "failed to get execution", map[string]interface{}{
			"error":        err.Error(),
			"execution_id": id.String(),
		})
		return nil, err
	}

	return &e, nil
}

// ListByTestID retrieves executions for one test, newest first.
func (s *MySQLStore) ListByTestID(ctx context.Context, testID uuid.UUID, limit, offset int) ([]*Execution, error) {
	var executions []*Execution
	err := s.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&executions).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list executions by test", map[string]interface{}{
			"error":   err.Error(),
			"test_id": testID.String(),
		})
		return nil, err
	}

	return executions, nil
}

// ListRecent retrieves the most recently started executions.
func (s *MySQLStore) ListRecent(ctx context.Context, limit int) ([]*Execution, error) {
	var executions []*Execution
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&executions).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list recent executions", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	return executions, nil
}

// AppendStep records the next step outcome.
func (s *MySQLStore) AppendStep(ctx context.Context, id uuid.UUID, result StepResult) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e Execution
		if err := tx.Where("id = ?", id).First(&e).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrExecutionNotFound
			}
			return err
		}

		if err := e.AppendStep(result); err != nil {
			return err
		}

		return tx.Save(&e).Error
	})
	if err != nil {
		if !errors.Is(err, ErrExecutionNotFound) && !errors.Is(err, ErrExecutionFinished) {
			s.logger.Error(ctx, "failed to append step result", map[string]interface{}{
				"error":        err.Error(),
				"execution_id": id.String(),
				"step":         result.Step,
			})
		}
		return err
	}

	return nil
}

// RequestCancel flags a running execution for cooperative cancellation. The
// conditional update means a concurrent finish wins cleanly.
func (s *MySQLStore) RequestCancel(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&Execution{}).
		Where("id = ? AND status = ?", id, StatusRunning).
		Update("status", string(StatusCancelling))
	if result.Error != nil {
		s.logger.Error(ctx, "failed to request cancel", map[string]interface{}{
			"error":        result.Error.Error(),
			"execution_id": id.String(),
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&Execution{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrExecutionNotFound
		}
		return ErrExecutionNotRunning
	}

	s.logger.Info(ctx, "execution cancel requested", map[string]interface{}{
		"execution_id": id.String(),
	})

	return nil
}

// ConfirmCancel is the executor acknowledging a cancel request.
func (s *MySQLStore) ConfirmCancel(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e Execution
		if err := tx.Where("id = ?", id).First(&e).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrExecutionNotFound
			}
			return err
		}

		if err := e.ConfirmCancel(); err != nil {
			return err
		}

		return tx.Save(&e).Error
	})
	if err != nil {
		if !errors.Is(err, ErrExecutionNotFound) && !errors.Is(err, ErrExecutionNotCancelling) {
			s.logger.Error(ctx, "failed to confirm cancel", map[string]interface{}{
				"error":        err.Error(),
				"execution_id": id.String(),
			})
		}
		return err
	}

	s.logger.Info(ctx, "execution cancelled", map[string]interface{}{
		"execution_id": id.String(),
	})

	return nil
}

// Finish records a passed or failed outcome.
func (s *MySQLStore) Finish(ctx context.Context, id uuid.UUID, status Status, errorMessage string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e Execution
		if err := tx.Where("id = ?", id).First(&e).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrExecutionNotFound
			}
			return err
		}

		if err := e.Finish(status, errorMessage); err != nil {
			return err
		}

		return tx.Save(&e).Error
	})
	if err != nil {
		if !errors.Is(err, ErrExecutionNotFound) && !errors.Is(err, ErrExecutionFinished) && !errors.Is(err, ErrInvalidStatus) {
			s.logger.Error(ctx, "failed to finish execution", map[string]interface{}{
				"error":        err.Error(),
				"execution_id": id.String(),
				"status":       string(status),
			})
		}
		return err
	}

	s.logger.Info(ctx, "execution finished", map[string]interface{}{
		"execution_id": id.String(),
		"status":       string(status),
	})

	return nil
}

// ForceFailIfRunning writes failed only when the executor never moved the row
// to a terminal state. Covers both running and cancelling, so a crash after a
// cancel request still terminalizes. Returns true when the fallback fired.
func (s *MySQLStore) ForceFailIfRunning(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&Execution{}).
		Where("id = ? AND status IN ?", id, []string{string(StatusRunning), string(StatusCancelling)}).
		Updates(map[string]interface{}{
			"status":        string(StatusFailed),
			"error_message": errorMessage,
			"completed_at":  now,
		})
	if result.Error != nil {
		s.logger.Error(ctx, "failed to force-fail execution", map[string]interface{}{
			"error":        result.Error.Error(),
			"execution_id": id.String(),
		})
		return false, result.Error
	}

	if result.RowsAffected > 0 {
		s.logger.Warn(ctx, "execution force-failed after executor crash", map[string]interface{}{
			"execution_id": id.String(),
		})
	}

	return result.RowsAffected > 0, nil
}

// ListStaleRunning returns in-flight executions started before the cutoff.
func (s *MySQLStore) ListStaleRunning(ctx context.Context, olderThan time.Duration) ([]*Execution, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	var executions []*Execution
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{string(StatusRunning), string(StatusCancelling)}).
		Where("started_at < ?", cutoff).
		Find(&executions).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list stale executions", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	return executions, nil
}
