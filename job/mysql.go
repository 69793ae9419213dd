package job

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQLStore implements the Store interface using GORM.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a new MySQL-backed job store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, logger: log}
}

// Create enqueues a new job.
func (s *MySQLStore) Create(ctx context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	if j.Status == "" {
		j.Status = StatusPending
	}

	if err := s.db.WithContext(ctx).Create(j).Error; err != nil {
		s.logger.Error(ctx, "failed to create job", map[string]interface{}{
			"error":   err.Error(),
			"test_id": j.TestID.String(),
		})
		return err
	}

	s.logger.Info(ctx, "job enqueued", map[string]interface{}{
		"job_id":  j.ID.String(),
		"test_id": j.TestID.String(),
		"run_id":  j.RunID.String(),
	})

	return nil
}

// GetByID retrieves a job by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var j Job
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&j).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		s.logger.Error(ctx, "failed to get job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id.String(),
		})
		return nil, err
	}

	return &j, nil
}

// Update applies the given setters to a job.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	j, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(j); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(j).Error; err != nil {
		s.logger.Error(ctx, "failed to update job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id.String(),
		})
		return err
	}

	return nil
}

// Delete hard-deletes a job. Allowed in any state.
func (s *MySQLStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Job{})
	if result.Error != nil {
		s.logger.Error(ctx, "failed to delete job", map[string]interface{}{
			"error":  result.Error.Error(),
			"job_id": id.String(),
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}

	return nil
}

// List retrieves a paginated list of jobs, newest first.
func (s *MySQLStore) List(ctx context.Context, limit, offset int) ([]*Job, error) {
	var jobs []*Job
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list jobs", map[string]interface{}{
			"error":  err.Error(),
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}

	return jobs, nil
}

// Count returns the total number of jobs.
func (s *MySQLStore) Count(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Job{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// ListByRunID retrieves all jobs grouped under one run, oldest first.
func (s *MySQLStore) ListByRunID(ctx context.Context, runID uuid.UUID) ([]*Job, error) {
	var jobs []*Job
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list jobs by run", map[string]interface{}{
			"error":  err.Error(),
			"run_id": runID.String(),
		})
		return nil, err
	}

	return jobs, nil
}

// ListBySuiteExecution retrieves all jobs linked to a suite execution.
func (s *MySQLStore) ListBySuiteExecution(ctx context.Context, suiteExecutionID uuid.UUID) ([]*Job, error) {
	var jobs []*Job
	err := s.db.WithContext(ctx).
		Where("suite_execution_id = ?", suiteExecutionID).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list jobs by suite execution", map[string]interface{}{
			"error":              err.Error(),
			"suite_execution_id": suiteExecutionID.String(),
		})
		return nil, err
	}

	return jobs, nil
}

// ClaimNext atomically claims the next pending unassigned job for an agent.
// Candidates are ordered by priority (highest first), then enqueue time. The
// row lock plus the conditional update guarantee at-most-one agent per job
// even when polls overlap.
func (s *MySQLStore) ClaimNext(ctx context.Context, agentID string) (*Job, error) {
	var claimed *Job

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND agent_id IS NULL", StatusPending).
			Order("priority DESC, created_at ASC").
			First(&j).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := j.Claim(agentID); err != nil {
			return err
		}

		result := tx.Model(&Job{}).
			Where("id = ? AND status = ? AND agent_id IS NULL", j.ID, StatusPending).
			Updates(map[string]interface{}{
				"status":     string(j.Status),
				"agent_id":   agentID,
				"started_at": j.StartedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Lost the race to another poll; this tick claims nothing.
			return nil
		}

		claimed = &j
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "failed to claim job", map[string]interface{}{
			"error":    err.Error(),
			"agent_id": agentID,
		})
		return nil, err
	}

	if claimed != nil {
		s.logger.Info(ctx, "job claimed", map[string]interface{}{
			"job_id":   claimed.ID.String(),
			"agent_id": agentID,
		})
	}

	return claimed, nil
}

// Complete records a terminal outcome reported by an agent.
func (s *MySQLStore) Complete(ctx context.Context, id uuid.UUID, status Status, result JSONMap, errorMessage string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j Job
		if err := tx.Where("id = ?", id).First(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		if err := j.Complete(status, result, errorMessage); err != nil {
			return err
		}

		return tx.Save(&j).Error
	})
	if err != nil {
		if !errors.Is(err, ErrJobNotFound) && !errors.Is(err, ErrJobNotRunning) {
			s.logger.Error(ctx, "failed to complete job", map[string]interface{}{
				"error":  err.Error(),
				"job_id": id.String(),
				"status": string(status),
			})
		}
		return err
	}

	s.logger.Info(ctx, "job completed", map[string]interface{}{
		"job_id": id.String(),
		"status": string(status),
	})

	return nil
}

// Cancel requests cancellation of a pending or running job.
func (s *MySQLStore) Cancel(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j Job
		if err := tx.Where("id = ?", id).First(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		if err := j.Cancel(); err != nil {
			return err
		}

		return tx.Save(&j).Error
	})
	if err != nil {
		if !errors.Is(err, ErrJobNotFound) && !errors.Is(err, ErrJobNotCancellable) {
			s.logger.Error(ctx, "failed to cancel job", map[string]interface{}{
				"error":  err.Error(),
				"job_id": id.String(),
			})
		}
		return err
	}

	s.logger.Info(ctx, "job cancelled", map[string]interface{}{
		"job_id": id.String(),
	})

	return nil
}

// Retry resets a terminal job back to pending so it re-enters the queue.
func (s *MySQLStore) Retry(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j Job
		if err := tx.Where("id = ?", id).First(&j).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		if err := j.Retry(); err != nil {
			return err
		}

		// Save skips nil fields on updates, so write the cleared columns explicitly.
		return tx.Model(&Job{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":       string(StatusPending),
			"agent_id":     nil,
			"started_at":   nil,
			"completed_at": nil,
			"retries":      j.Retries,
		}).Error
	})
	if err != nil {
		if !errors.Is(err, ErrJobNotFound) && !errors.Is(err, ErrJobNotTerminal) {
			s.logger.Error(ctx, "failed to retry job", map[string]interface{}{
				"error":  err.Error(),
				"job_id": id.String(),
			})
		}
		return err
	}

	s.logger.Info(ctx, "job reset to pending", map[string]interface{}{
		"job_id": id.String(),
	})

	return nil
}
