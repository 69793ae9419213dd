package suite

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

// NewMySQLStore creates a new MySQL-backed suite store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, logger: log}
}

// Create inserts a new suite.
func (s *MySQLStore) Create(ctx context.Context, suite *Suite) error {
	if err := suite.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(suite).Error; err != nil {
		s.logger.Error(ctx, "failed to create suite", map[string]interface{}{
			"error": err.Error(),
			"name":  suite.Name,
		})
		return err
	}

	s.logger.Info(ctx, "suite created", map[string]interface{}{
		"suite_id": suite.ID.String(),
		"name":     suite.Name,
	})

	return nil
}

// GetByID retrieves a suite by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Suite, error) {
	var suite Suite
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&suite).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSuiteNotFound
		}
		s.logger.Error(ctx, "failed to get suite", map[string]interface{}{
			"error":    err.Error(),
			"suite_id": id.String(),
		})
		return nil, err
	}

	return &suite, nil
}

// Update applies the given setters to a suite.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	suite, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(suite); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(suite).Error; err != nil {
		s.logger.Error(ctx, "failed to update suite", map[string]interface{}{
			"error":    err.Error(),
			"suite_id": id.String(),
		})
		return err
	}

	return nil
}

// Delete removes a suite and its member links.
func (s *MySQLStore) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&Suite{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSuiteNotFound
		}
		return tx.Where("suite_id = ?", id).Delete(&Member{}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrSuiteNotFound) {
			s.logger.Error(ctx, "failed to delete suite", map[string]interface{}{
				"error":    err.Error(),
				"suite_id": id.String(),
			})
		}
		return err
	}

	s.logger.Info(ctx, "suite deleted", map[string]interface{}{
		"suite_id": id.String(),
	})

	return nil
}

// List retrieves a paginated list of suites, newest first.
func (s *MySQLStore) List(ctx context.Context, limit, offset int) ([]*Suite, error) {
	var suites []*Suite
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&suites).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list suites", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	return suites, nil
}

// AddTest links a test into the suite at the next position.
func (s *MySQLStore) AddTest(ctx context.Context, suiteID, testID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists Suite
		if err := tx.Select("id").Where("id = ?", suiteID).First(&exists).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSuiteNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&Member{}).
			Where("suite_id = ? AND test_id = ?", suiteID, testID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrTestAlreadyInSuite
		}

		var maxPos int
		row := tx.Model(&Member{}).
			Where("suite_id = ?", suiteID).
			Select("COALESCE(MAX(position), -1)").
			Row()
		if err := row.Scan(&maxPos); err != nil {
			return err
		}

		return tx.Create(&Member{
			SuiteID:  suiteID,
			TestID:   testID,
			Position: maxPos + 1,
		}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrTestAlreadyInSuite) && !errors.Is(err, ErrSuiteNotFound) {
			s.logger.Error(ctx, "failed to add test to suite", map[string]interface{}{
				"error":    err.Error(),
				"suite_id": suiteID.String(),
				"test_id":  testID.String(),
			})
		}
		return err
	}

	return nil
}

// RemoveTest unlinks a test from the suite.
func (s *MySQLStore) RemoveTest(ctx context.Context, suiteID, testID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("suite_id = ? AND test_id = ?", suiteID, testID).
		Delete(&Member{})
	if result.Error != nil {
		s.logger.Error(ctx, "failed to remove test from suite", map[string]interface{}{
			"error":    result.Error.Error(),
			"suite_id": suiteID.String(),
			"test_id":  testID.String(),
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTestNotInSuite
	}

	return nil
}

// ListMembers returns the suite's member links ordered by position.
func (s *MySQLStore) ListMembers(ctx context.Context, suiteID uuid.UUID) ([]*Member, error) {
	var members []*Member
	err := s.db.WithContext(ctx).
		Where("suite_id = ?", suiteID).
		Order("position ASC").
		Find(&members).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list suite members", map[string]interface{}{
			"error":    err.Error(),
			"suite_id": suiteID.String(),
		})
		return nil, err
	}

	return members, nil
}

// CreateExecution inserts a new running aggregate.
func (s *MySQLStore) CreateExecution(ctx context.Context, e *Execution) error {
	if e.Status == "" {
		e.Status = ExecutionRunning
	}
	if e.RunID == uuid.Nil {
		e.RunID = uuid.New()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		s.logger.Error(ctx, "failed to create suite execution", map[string]interface{}{
			"error":    err.Error(),
			"suite_id": e.SuiteID.String(),
		})
		return err
	}

	s.logger.Info(ctx, "suite execution created", map[string]interface{}{
		"suite_execution_id": e.ID.String(),
		"suite_id":           e.SuiteID.String(),
		"total_tests":        e.TotalTests,
	})

	return nil
}

// GetExecutionByID retrieves a suite execution.
func (s *MySQLStore) GetExecutionByID(ctx context.Context, id uuid.UUID) (*Execution, error) {
	var e Execution
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExecutionNotFound
		}
		s.logger.Error(ctx, "failed to get suite execution", map[string]interface{}{
			"error":              err.Error(),
			"suite_execution_id": id.String(),
		})
		return nil, err
	}

	return &e, nil
}

// ListExecutionsBySuite retrieves aggregates for one suite, newest first.
func (s *MySQLStore) ListExecutionsBySuite(ctx context.Context, suiteID uuid.UUID, limit, offset int) ([]*Execution, error) {
	var executions []*Execution
	err := s.db.WithContext(ctx).
		Where("suite_id = ?", suiteID).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&executions).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list suite executions", map[string]interface{}{
			"error":    err.Error(),
			"suite_id": suiteID.String(),
		})
		return nil, err
	}

	return executions, nil
}

// RecordResult transactionally appends a member outcome.
func (s *MySQLStore) RecordResult(ctx context.Context, executionID uuid.UUID, summary TestSummary, passed bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e Execution
		if err := tx.Where("id = ?", executionID).First(&e).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrExecutionNotFound
			}
			return err
		}

		if err := e.Record(summary, passed); err != nil {
			return err
		}

		return tx.Save(&e).Error
	})
	if err != nil {
		if !errors.Is(err, ErrExecutionNotFound) && !errors.Is(err, ErrExecutionFinished) && !errors.Is(err, ErrCounterOverflow) {
			s.logger.Error(ctx, "failed to record suite result", map[string]interface{}{
				"error":              err.Error(),
				"suite_execution_id": executionID.String(),
				"test_id":            summary.TestID.String(),
			})
		}
		return err
	}

	return nil
}

// FinalizeExecution assigns the terminal status once every member finished.
func (s *MySQLStore) FinalizeExecution(ctx context.Context, executionID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e Execution
		if err := tx.Where("id = ?", executionID).First(&e).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrExecutionNotFound
			}
			return err
		}

		if err := e.Finalize(); err != nil {
			return err
		}

		return tx.Save(&e).Error
	})
	if err != nil {
		if !errors.Is(err, ErrExecutionNotFound) && !errors.Is(err, ErrExecutionFinished) && !errors.Is(err, ErrExecutionNotDone) {
			s.logger.Error(ctx, "failed to finalize suite execution", map[string]interface{}{
				"error":              err.Error(),
				"suite_execution_id": executionID.String(),
			})
		}
		return err
	}

	s.logger.Info(ctx, "suite execution finalized", map[string]interface{}{
		"suite_execution_id": executionID.String(),
	})

	return nil
}

// CancelExecution marks a non-terminal aggregate cancelled.
func (s *MySQLStore) CancelExecution(ctx context.Context, executionID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e Execution
		if err := tx.Where("id = ?", executionID).First(&e).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrExecutionNotFound
			}
			return err
		}

		if err := e.Cancel(); err != nil {
			return err
		}

		return tx.Save(&e).Error
	})
	if err != nil {
		if !errors.Is(err, ErrExecutionNotFound) && !errors.Is(err, ErrExecutionFinished) {
			s.logger.Error(ctx, "failed to cancel suite execution", map[string]interface{}{
				"error":              err.Error(),
				"suite_execution_id": executionID.String(),
			})
		}
		return err
	}

	return nil
}

// ListRunningExecutions returns non-terminal aggregates started before the cutoff.
func (s *MySQLStore) ListRunningExecutions(ctx context.Context, olderThan time.Duration) ([]*Execution, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	var executions []*Execution
	err := s.db.WithContext(ctx).
		Where("status = ?", string(ExecutionRunning)).
		Where("started_at < ?", cutoff).
		Find(&executions).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list running suite executions", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	return executions, nil
}
