package suite

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines persistence operations for suites and their executions.
type Store interface {
	Create(ctx context.Context, s *Suite) error
	GetByID(ctx context.Context, id uuid.UUID) (*Suite, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Suite, error)

	// AddTest links a test into the suite at the next position.
	AddTest(ctx context.Context, suiteID, testID uuid.UUID) error

	// RemoveTest unlinks a test from the suite.
	RemoveTest(ctx context.Context, suiteID, testID uuid.UUID) error

	// ListMembers returns the suite's member links ordered by position.
	ListMembers(ctx context.Context, suiteID uuid.UUID) ([]*Member, error)

	// CreateExecution inserts a new running aggregate.
	CreateExecution(ctx context.Context, e *Execution) error
	GetExecutionByID(ctx context.Context, id uuid.UUID) (*Execution, error)
	ListExecutionsBySuite(ctx context.Context, suiteID uuid.UUID, limit, offset int) ([]*Execution, error)

	// RecordResult transactionally appends a member outcome and bumps the
	// matching counter, preserving passed+failed <= total at every point.
	RecordResult(ctx context.Context, executionID uuid.UUID, summary TestSummary, passed bool) error

	// FinalizeExecution assigns the terminal status once every member finished.
	FinalizeExecution(ctx context.Context, executionID uuid.UUID) error

	// CancelExecution marks a non-terminal aggregate cancelled.
	CancelExecution(ctx context.Context, executionID uuid.UUID) error

	// ListRunningExecutions returns non-terminal aggregates started before the
	// cutoff. Used by the background finalizer.
	ListRunningExecutions(ctx context.Context, olderThan time.Duration) ([]*Execution, error)
}

// UpdateSetter mutates a suite during an update.
type UpdateSetter func(*Suite) error
