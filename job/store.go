package job

import (
	"context"

	"github.com/google/uuid"
)

// Store defines persistence operations for queued jobs.
type Store interface {
	Create(ctx context.Context, j *Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Job, error)
	Count(ctx context.Context) (int, error)
	ListByRunID(ctx context.Context, runID uuid.UUID) ([]*Job, error)
	ListBySuiteExecution(ctx context.Context, suiteExecutionID uuid.UUID) ([]*Job, error)

	// ClaimNext atomically assigns the next pending unassigned job to the
	// given agent and marks it running. Returns nil when the queue is empty.
	// The claim is guarded so overlapping polls can never double-assign.
	ClaimNext(ctx context.Context, agentID string) (*Job, error)

	// Complete records a terminal outcome reported by an agent.
	Complete(ctx context.Context, id uuid.UUID, status Status, result JSONMap, errorMessage string) error

	// Cancel requests cancellation of a pending or running job.
	Cancel(ctx context.Context, id uuid.UUID) error

	// Retry resets a terminal job back to pending.
	Retry(ctx context.Context, id uuid.UUID) error
}

// UpdateSetter mutates a job during an update.
type UpdateSetter func(*Job) error
