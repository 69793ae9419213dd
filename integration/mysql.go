package integration

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"gorm.io/gorm"
)

// MySQLStore implements the Store interface using GORM.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a new MySQL-backed integration store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, logger: log}
}

// Create inserts a new integration.
func (s *MySQLStore) Create(ctx context.Context, integration *Integration) error {
	if err := integration.Validate(); err != nil {
		return err
	}
	if len(integration.EncryptedCredentials) == 0 {
		return errors.New("encrypted credentials are required")
	}

	if err := s.db.WithContext(ctx).Create(integration).Error; err != nil {
		s.logger.Error(ctx, "failed to create integration", map[string]interface{}{
			"error":    err.Error(),
			"provider": string(integration.Provider),
		})
		return err
	}

	s.logger.Info(ctx, "integration created", map[string]interface{}{
		"integration_id": integration.ID.String(),
		"provider":       string(integration.Provider),
	})

	return nil
}

// GetByID retrieves an integration by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Integration, error) {
	var integration Integration
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&integration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntegrationNotFound
		}
		s.logger.Error(ctx, "failed to get integration", map[string]interface{}{
			"error":          err.Error(),
			"integration_id": id.String(),
		})
		return nil, err
	}

	return &integration, nil
}

// List retrieves a paginated list of integrations, newest first.
func (s *MySQLStore) List(ctx context.Context, limit, offset int) ([]*Integration, error) {
	var integrations []*Integration
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&integrations).Error
	if err != nil {
		s.logger.Error(ctx, "failed to list integrations", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	return integrations, nil
}

// Update applies the given setters to an integration.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	integration, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(integration); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(integration).Error; err != nil {
		s.logger.Error(ctx, "failed to update integration", map[string]interface{}{
			"error":          err.Error(),
			"integration_id": id.String(),
		})
		return err
	}

	return nil
}

// Delete removes an integration.
func (s *MySQLStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Integration{})
	if result.Error != nil {
		s.logger.Error(ctx, "failed to delete integration", map[string]interface{}{
			"error":          result.Error.Error(),
			"integration_id": id.String(),
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIntegrationNotFound
	}

	s.logger.Info(ctx, "integration deleted", map[string]interface{}{
		"integration_id": id.String(),
	})

	return nil
}
