package execution

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines persistence operations for direct executions.
type Store interface {
	Create(ctx context.Context, e *Execution) error
	GetByID(ctx context.Context, id uuid.UUID) (*Execution, error)
	ListByTestID(ctx context.Context, testID uuid.UUID, limit, offset int) ([]*Execution, error)
	ListRecent(ctx context.Context, limit int) ([]*Execution, error)

	// AppendStep records the next step outcome while the execution is in flight.
	AppendStep(ctx context.Context, id uuid.UUID, result StepResult) error

	// RequestCancel flags a running execution for cooperative cancellation.
	RequestCancel(ctx context.Context, id uuid.UUID) error

	// ConfirmCancel is the executor acknowledging a cancel request.
	ConfirmCancel(ctx context.Context, id uuid.UUID) error

	// Finish records a passed or failed outcome.
	Finish(ctx context.Context, id uuid.UUID, status Status, errorMessage string) error

	// ForceFailIfRunning writes failed with the given message only if the row
	// never left running. Reconciliation fallback for crashed executors.
	ForceFailIfRunning(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error)

	// ListStaleRunning returns in-flight executions started before the cutoff.
	ListStaleRunning(ctx context.Context, olderThan time.Duration) ([]*Execution, error)
}
