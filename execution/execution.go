package execution

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrExecutionNotFound is returned when an execution is not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrInvalidTestID is returned when test_id is not set.
	ErrInvalidTestID = errors.New("test_id is required")

	// ErrInvalidStatus is returned when status is invalid.
	ErrInvalidStatus = errors.New("invalid execution status")

	// ErrExecutionNotRunning is returned when mutating an execution that is
	// no longer in flight.
	ErrExecutionNotRunning = errors.New("execution is not running")

	// ErrExecutionNotCancelling is returned when confirming a cancel that was
	// never requested.
	ErrExecutionNotCancelling = errors.New("execution is not cancelling")

	// ErrExecutionFinished is returned when touching a terminal execution.
	ErrExecutionFinished = errors.New("execution already finished")
)

// Status represents the lifecycle state of a direct execution.
// cancelling is transient: the user requested a stop and only the executor
// may acknowledge it by moving to cancelled.
type Status string

const (
	StatusRunning    Status = "running"
	StatusPassed     Status = "passed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusCancelling Status = "cancelling"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusRunning, StatusPassed, StatusFailed, StatusCancelled, StatusCancelling:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusCancelled
}

// StepResult is the outcome of one executed step.
type StepResult struct {
	Step       int    `json:"step"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
}

// StepResults is the ordered step outcome list, stored as JSON.
type StepResults []StepResult

// Value implements driver.Valuer for database storage.
func (r StepResults) Value() (driver.Value, error) {
	if r == nil {
		return json.Marshal([]StepResult{})
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for database retrieval.
func (r *StepResults) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan StepResults: not a byte slice")
	}
	return json.Unmarshal(bytes, r)
}

// Execution represents one direct (non-agent) test run with step-by-step
// results written back as the executor progresses.
type Execution struct {
	ID               uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	TestID           uuid.UUID   `json:"test_id" gorm:"type:char(36);not null;index:idx_executions_test_id"`
	SuiteExecutionID *uuid.UUID  `json:"suite_execution_id,omitempty" gorm:"type:char(36);index:idx_executions_suite_execution_id"`
	Status           Status      `json:"status" gorm:"type:varchar(20);not null;default:'running';index:idx_executions_status"`
	TotalSteps       int         `json:"total_steps" gorm:"not null;default:0"`
	Results          StepResults `json:"results" gorm:"type:json"`
	ErrorMessage     string      `json:"error_message" gorm:"type:text"`
	StartedAt        time.Time   `json:"started_at"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName returns the database table name.
func (Execution) TableName() string {
	return "executions"
}

// BeforeCreate hook to generate a UUID before creating a new execution.
func (e *Execution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Validate checks required fields.
func (e *Execution) Validate() error {
	if e.TestID == uuid.Nil {
		return ErrInvalidTestID
	}
	if e.Status != "" && !e.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// InFlight reports whether the executor is still working on this execution.
func (e *Execution) InFlight() bool {
	return e.Status == StatusRunning || e.Status == StatusCancelling
}

// AppendStep records the outcome of the next step in order.
func (e *Execution) AppendStep(result StepResult) error {
	if !e.InFlight() {
		return ErrExecutionFinished
	}
	e.Results = append(e.Results, result)
	return nil
}

// RequestCancel flags the execution for cooperative cancellation. Only valid
// while running; the executor confirms via ConfirmCancel.
func (e *Execution) RequestCancel() error {
	if e.Status != StatusRunning {
		return ErrExecutionNotRunning
	}
	e.Status = StatusCancelling
	return nil
}

// ConfirmCancel is the executor acknowledging a cancel request.
func (e *Execution) ConfirmCancel() error {
	if e.Status != StatusCancelling {
		return ErrExecutionNotCancelling
	}
	now := time.Now().UTC()
	e.Status = StatusCancelled
	e.CompletedAt = &now
	return nil
}

// Finish records a passed or failed outcome from the executor.
func (e *Execution) Finish(status Status, errorMessage string) error {
	if !e.InFlight() {
		return ErrExecutionFinished
	}
	if status != StatusPassed && status != StatusFailed {
		return ErrInvalidStatus
	}
	now := time.Now().UTC()
	e.Status = status
	e.ErrorMessage = errorMessage
	e.CompletedAt = &now
	return nil
}
