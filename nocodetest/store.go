package nocodetest

import (
	"context"

	"github.com/google/uuid"
)

// Store defines persistence operations for no-code tests.
type Store interface {
	Create(ctx context.Context, t *Test) error
	GetByID(ctx context.Context, id uuid.UUID) (*Test, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Test, error)
	Count(ctx context.Context) (int, error)
}

// UpdateSetter mutates a test during an update.
type UpdateSetter func(*Test) error
