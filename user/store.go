package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrUserNotFound is returned when no active user matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already exists")
)

// Store defines persistence operations for dashboard users.
type Store interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	List(ctx context.Context, limit, offset int) ([]*User, error)

	// Delete deactivates the user. The row is kept; lookups and List only
	// see active users.
	Delete(ctx context.Context, id uuid.UUID) error
}

// UpdateSetter mutates a user during an update.
type UpdateSetter func(*User) error
