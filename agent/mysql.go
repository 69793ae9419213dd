package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/testdeckhq/testdeck/logger"
	"gorm.io/gorm"
)

// MySQLStore implements the Store interface using GORM.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a new MySQL-backed agent store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, logger: log}
}

// Create registers a new agent row.
func (s *MySQLStore) Create(ctx context.Context, a *Agent) error {
	if err := a.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateAgentID
		}
		s.logger.Error(ctx, "failed to create agent", map[string]interface{}{
			"error":    err.Error(),
			"agent_id": a.AgentID,
		})
		return err
	}

	s.logger.Info(ctx, "agent registered", map[string]interface{}{
		"agent_id": a.AgentID,
		"name":     a.Name,
	})

	return nil
}

// GetByAgentID retrieves an agent by its caller-chosen agent_id.
func (s *MySQLStore) GetByAgentID(ctx context.Context, agentID string) (*Agent, error) {
	var a Agent
	err := s.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		s.logger.Error(ctx, "failed to get agent", map[string]interface{}{
			"error":    err.Error(),
			"agent_id": agentID,
		})
		return nil, err
	}

	return &a, nil
}

// GetByTokenHash retrieves an agent by its token hash. Used for bearer auth.
func (s *MySQLStore) GetByTokenHash(ctx context.Context, hash string) (*Agent, error) {
	var a Agent
	err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}

	return &a, nil
}

// Update applies the given setters to an agent.
func (s *MySQLStore) Update(ctx context.Context, agentID string, setters ...UpdateSetter) error {
	a, err := s.GetByAgentID(ctx, agentID)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(a); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		s.logger.Error(ctx, "failed to update agent", map[string]interface{}{
			"error":    err.Error(),
			"agent_id": agentID,
		})
		return err
	}

	return nil
}

// Delete hard-deletes an agent row. There is no soft delete.
func (s *MySQLStore) Delete(ctx context.Context, agentID string) error {
	result := s.db.WithContext(ctx).Where("agent_id = ?", agentID).Delete(&Agent{})
	if result.Error != nil {
		s.logger.Error(ctx, "failed to delete agent", map[string]interface{}{
			"error":    result.Error.Error(),
			"agent_id": agentID,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAgentNotFound
	}

	s.logger.Info(ctx, "agent deleted", map[string]interface{}{
		"agent_id": agentID,
	})

	return nil
}

// List retrieves all agents, oldest registration first.
func (s *MySQLStore) List(ctx context.Context) ([]*Agent, error) {
	var agents []*Agent
	err := s.db.WithContext(ctx).Order("created_at ASC").Find(&agents).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list agents", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	return agents, nil
}

// Heartbeat records a liveness signal for an agent.
func (s *MySQLStore) Heartbeat(ctx context.Context, agentID string, status Status, capacity int, browsers Tags) error {
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	if capacity < 1 {
		return ErrInvalidCapacity
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":         string(status),
		"last_heartbeat": now,
		"capacity":       capacity,
		"updated_at":     now,
	}
	if browsers != nil {
		v, err := browsers.Value()
		if err != nil {
			return err
		}
		updates["browsers"] = v
	}

	result := s.db.WithContext(ctx).Model(&Agent{}).
		Where("agent_id = ?", agentID).
		Updates(updates)
	if result.Error != nil {
		s.logger.Error(ctx, "failed to record heartbeat", map[string]interface{}{
			"error":    result.Error.Error(),
			"agent_id": agentID,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAgentNotFound
	}

	return nil
}

// AdjustRunningJobs adds delta to running_jobs, clamping at zero.
func (s *MySQLStore) AdjustRunningJobs(ctx context.Context, agentID string, delta int) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a Agent
		if err := tx.Where("agent_id = ?", agentID).First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAgentNotFound
			}
			return err
		}

		a.RunningJobs += delta
		if a.RunningJobs < 0 {
			a.RunningJobs = 0
		}

		return tx.Model(&Agent{}).Where("agent_id = ?", agentID).
			Update("running_jobs", a.RunningJobs).Error
	})
	if err != nil && !errors.Is(err, ErrAgentNotFound) {
		s.logger.Error(ctx, "failed to adjust running jobs", map[string]interface{}{
			"error":    err.Error(),
			"agent_id": agentID,
			"delta":    delta,
		})
	}

	return err
}

// MarkStaleOffline writes offline on agents whose heartbeat is older than the
// threshold. Agents that already reported offline are left untouched.
func (s *MySQLStore) MarkStaleOffline(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	result := s.db.WithContext(ctx).Model(&Agent{}).
		Where("(last_heartbeat IS NULL OR last_heartbeat < ?)", cutoff).
		Where("(status IS NULL OR status != ?)", string(StatusOffline)).
		Update("status", string(StatusOffline))
	if result.Error != nil {
		s.logger.Error(ctx, "failed to mark stale agents offline", map[string]interface{}{
			"error": result.Error.Error(),
		})
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		s.logger.Info(ctx, "stale agents marked offline", map[string]interface{}{
			"count": result.RowsAffected,
		})
	}

	return result.RowsAffected, nil
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
