package nocodetest

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrTestNotFound is returned when a test is not found.
	ErrTestNotFound = errors.New("test not found")

	// ErrInvalidTestName is returned when a test name is empty.
	ErrInvalidTestName = errors.New("test name is required")

	// ErrInvalidBaseURL is returned when base_url is empty.
	ErrInvalidBaseURL = errors.New("base_url is required")

	// ErrInvalidCreatedBy is returned when created_by is not set.
	ErrInvalidCreatedBy = errors.New("created_by is required")

	// ErrInvalidStatus is returned when status is invalid.
	ErrInvalidStatus = errors.New("invalid test status")

	// ErrInvalidSteps is returned when the steps payload is malformed.
	ErrInvalidSteps = errors.New("invalid steps")
)

// Status is the last known outcome of a test.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPassed, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Steps is the ordered list of no-code automation steps, stored as JSON.
type Steps []map[string]interface{}

// Value implements driver.Valuer for database storage.
func (s Steps) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval.
func (s *Steps) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan Steps: not a byte slice")
	}

	return json.Unmarshal(bytes, s)
}

// Test represents one no-code browser automation test.
type Test struct {
	ID          uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	BaseURL     string    `json:"base_url" gorm:"type:varchar(1000);not null"`
	Steps       Steps     `json:"steps" gorm:"type:json"`
	Status      Status    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_tests_status"`
	CreatedBy   uuid.UUID `json:"created_by" gorm:"type:char(36);not null;index:idx_tests_created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Test) TableName() string {
	return "nocode_tests"
}

// BeforeCreate hook to generate a UUID before creating a new test.
func (t *Test) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Validate checks required fields.
func (t *Test) Validate() error {
	if t.Name == "" {
		return ErrInvalidTestName
	}
	if t.BaseURL == "" {
		return ErrInvalidBaseURL
	}
	if t.CreatedBy == uuid.Nil {
		return ErrInvalidCreatedBy
	}
	if t.Status != "" && !t.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}
