package job

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTestID is returned when test_id is not set.
	ErrInvalidTestID = errors.New("test_id is required")

	// ErrInvalidRunID is returned when run_id is not set.
	ErrInvalidRunID = errors.New("run_id is required")

	// ErrInvalidStatus is returned when status is invalid.
	ErrInvalidStatus = errors.New("invalid job status")

	// ErrJobNotPending is returned when claiming a job that is not pending.
	ErrJobNotPending = errors.New("job is not pending")

	// ErrJobNotRunning is returned when completing a job that is not running.
	ErrJobNotRunning = errors.New("job is not running")

	// ErrJobNotCancellable is returned when cancelling a job that is already terminal.
	ErrJobNotCancellable = errors.New("job is already terminal")

	// ErrJobNotTerminal is returned when retrying a job that has not finished.
	ErrJobNotTerminal = errors.New("job is not in a terminal state")
)

// Status represents the lifecycle state of a queued job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JSONMap is a custom type for JSON columns.
type JSONMap map[string]interface{}

// Value implements driver.Valuer for database storage.
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for database retrieval.
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONMap)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan JSONMap: not a byte slice")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*j = m
	return nil
}

// Job represents one queued test-execution request assigned to an agent.
// Config carries the execution snapshot (base_url plus the step list) so an
// agent reads back exactly what was enqueued.
type Job struct {
	ID               uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	TestID           uuid.UUID  `json:"test_id" gorm:"type:char(36);not null;index:idx_jobs_test_id"`
	AgentID          *string    `json:"agent_id" gorm:"type:varchar(255);index:idx_jobs_agent_id"`
	RunID            uuid.UUID  `json:"run_id" gorm:"type:char(36);not null;index:idx_jobs_run_id"`
	SuiteExecutionID *uuid.UUID `json:"suite_execution_id,omitempty" gorm:"type:char(36);index:idx_jobs_suite_execution_id"`
	Status           Status     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_jobs_status"`
	Priority         int        `json:"priority" gorm:"not null;default:0"`
	Retries          int        `json:"retries" gorm:"not null;default:0"`
	MaxRetries       int        `json:"max_retries" gorm:"not null;default:0"`
	Config           JSONMap    `json:"config" gorm:"type:json"`
	Result           JSONMap    `json:"result" gorm:"type:json"`
	ErrorMessage     string     `json:"error_message" gorm:"type:text"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate a UUID before creating a new job.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// Validate checks required fields.
func (j *Job) Validate() error {
	if j.TestID == uuid.Nil {
		return ErrInvalidTestID
	}
	if j.RunID == uuid.Nil {
		return ErrInvalidRunID
	}
	if j.Status != "" && !j.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// Claim moves the job from pending to running on behalf of an agent.
func (j *Job) Claim(agentID string) error {
	if j.Status != StatusPending {
		return ErrJobNotPending
	}
	now := time.Now().UTC()
	j.Status = StatusRunning
	j.AgentID = &agentID
	j.StartedAt = &now
	return nil
}

// Complete finishes a running job with the given terminal outcome.
func (j *Job) Complete(status Status, result JSONMap, errorMessage string) error {
	if j.Status != StatusRunning {
		return ErrJobNotRunning
	}
	if status != StatusCompleted && status != StatusFailed {
		return ErrInvalidStatus
	}
	now := time.Now().UTC()
	j.Status = status
	j.CompletedAt = &now
	j.Result = result
	j.ErrorMessage = errorMessage
	return nil
}

// Cancel marks the job cancelled. Allowed while pending or running; the
// assigned agent only ever observes this, it is not force-stopped.
func (j *Job) Cancel() error {
	if j.Status.IsTerminal() {
		return ErrJobNotCancellable
	}
	now := time.Now().UTC()
	j.Status = StatusCancelled
	j.CompletedAt = &now
	return nil
}

// Retry resets a terminal job back to pending: the assignment and both
// timestamps are cleared so the job re-enters the queue from scratch.
func (j *Job) Retry() error {
	if !j.Status.IsTerminal() {
		return ErrJobNotTerminal
	}
	j.Status = StatusPending
	j.AgentID = nil
	j.StartedAt = nil
	j.CompletedAt = nil
	j.Retries++
	return nil
}
