package integration

import (
	"context"

	"github.com/google/uuid"
)

// Store defines persistence operations for integration configurations.
type Store interface {
	Create(ctx context.Context, integration *Integration) error
	GetByID(ctx context.Context, id uuid.UUID) (*Integration, error)
	List(ctx context.Context, limit, offset int) ([]*Integration, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UpdateSetter mutates an integration during an update.
type UpdateSetter func(*Integration) error
