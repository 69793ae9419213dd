package suite

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrSuiteNotFound is returned when a suite is not found.
	ErrSuiteNotFound = errors.New("suite not found")

	// ErrInvalidSuiteName is returned when a suite name is empty.
	ErrInvalidSuiteName = errors.New("suite name is required")

	// ErrInvalidCreatedBy is returned when created_by is not set.
	ErrInvalidCreatedBy = errors.New("created_by is required")

	// ErrTestAlreadyInSuite is returned when adding a test twice.
	ErrTestAlreadyInSuite = errors.New("test is already in the suite")

	// ErrTestNotInSuite is returned when removing a test that is not a member.
	ErrTestNotInSuite = errors.New("test is not in the suite")

	// ErrEmptySuite is returned when running a suite with no members.
	ErrEmptySuite = errors.New("suite has no tests")
)

// Suite is a named, ordered group of tests.
type Suite struct {
	ID          uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedBy   uuid.UUID `json:"created_by" gorm:"type:char(36);not null;index:idx_suites_created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate a UUID before creating a new suite.
func (s *Suite) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Validate checks required fields.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return ErrInvalidSuiteName
	}
	if s.CreatedBy == uuid.Nil {
		return ErrInvalidCreatedBy
	}
	return nil
}

// Member links a test into a suite at a position.
type Member struct {
	ID       uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	SuiteID  uuid.UUID `json:"suite_id" gorm:"type:char(36);not null;index:idx_suite_members_suite_id;uniqueIndex:idx_suite_members_suite_test"`
	TestID   uuid.UUID `json:"test_id" gorm:"type:char(36);not null;uniqueIndex:idx_suite_members_suite_test"`
	Position int       `json:"position" gorm:"not null;default:0"`
}

// TableName returns the database table name.
func (Member) TableName() string {
	return "suite_members"
}

// BeforeCreate hook to generate a UUID before creating a new member link.
func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
