package suite

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrExecutionNotFound is returned when a suite execution is not found.
	ErrExecutionNotFound = errors.New("suite execution not found")

	// ErrExecutionFinished is returned when mutating a terminal suite execution.
	ErrExecutionFinished = errors.New("suite execution already finished")

	// ErrCounterOverflow is returned when a result would push passed+failed
	// beyond total_tests.
	ErrCounterOverflow = errors.New("result counters would exceed total tests")

	// ErrExecutionNotDone is returned when finalizing before every member finished.
	ErrExecutionNotDone = errors.New("suite execution has unfinished members")
)

// ExecutionStatus is the lifecycle state of a suite execution.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionPassed    ExecutionStatus = "passed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionPassed || s == ExecutionFailed || s == ExecutionCancelled
}

// TestSummary is the per-member outcome recorded on the aggregate.
type TestSummary struct {
	TestID uuid.UUID `json:"test_id"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
}

// TestSummaries is the ordered member outcome list, stored as JSON.
type TestSummaries []TestSummary

// Value implements driver.Valuer for database storage.
func (t TestSummaries) Value() (driver.Value, error) {
	if t == nil {
		return json.Marshal([]TestSummary{})
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for database retrieval.
func (t *TestSummaries) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan TestSummaries: not a byte slice")
	}
	return json.Unmarshal(bytes, t)
}

// Execution aggregates one run of a suite. passed_tests + failed_tests never
// exceeds total_tests at any observable point.
type Execution struct {
	ID          uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	SuiteID     uuid.UUID       `json:"suite_id" gorm:"type:char(36);not null;index:idx_suite_executions_suite_id"`
	RunID       uuid.UUID       `json:"run_id" gorm:"type:char(36);not null;index:idx_suite_executions_run_id"`
	Status      ExecutionStatus `json:"status" gorm:"type:varchar(20);not null;default:'running';index:idx_suite_executions_status"`
	TotalTests  int             `json:"total_tests" gorm:"not null;default:0"`
	PassedTests int             `json:"passed_tests" gorm:"not null;default:0"`
	FailedTests int             `json:"failed_tests" gorm:"not null;default:0"`
	Results     TestSummaries   `json:"results" gorm:"type:json"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName returns the database table name.
func (Execution) TableName() string {
	return "suite_executions"
}

// BeforeCreate hook to generate a UUID before creating a new suite execution.
func (e *Execution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Record appends a member outcome and bumps the matching counter.
func (e *Execution) Record(summary TestSummary, passed bool) error {
	if e.Status.IsTerminal() {
		return ErrExecutionFinished
	}
	if e.PassedTests+e.FailedTests >= e.TotalTests {
		return ErrCounterOverflow
	}

	if passed {
		e.PassedTests++
	} else {
		e.FailedTests++
	}
	e.Results = append(e.Results, summary)
	return nil
}

// Done reports whether every member has a recorded outcome.
func (e *Execution) Done() bool {
	return e.PassedTests+e.FailedTests >= e.TotalTests
}

// Finalize assigns the terminal status: passed iff no member failed.
func (e *Execution) Finalize() error {
	if e.Status.IsTerminal() {
		return ErrExecutionFinished
	}
	if !e.Done() {
		return ErrExecutionNotDone
	}

	now := time.Now().UTC()
	if e.FailedTests == 0 {
		e.Status = ExecutionPassed
	} else {
		e.Status = ExecutionFailed
	}
	e.CompletedAt = &now
	return nil
}

// Cancel marks the aggregate cancelled, e.g. when it was orphaned with no
// linked jobs.
func (e *Execution) Cancel() error {
	if e.Status.IsTerminal() {
		return ErrExecutionFinished
	}
	now := time.Now().UTC()
	e.Status = ExecutionCancelled
	e.CompletedAt = &now
	return nil
}
