package agent

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrAgentNotFound is returned when an agent is not found.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrInvalidAgentID is returned when agent_id is blank.
	ErrInvalidAgentID = errors.New("agent_id is required")

	// ErrInvalidAgentName is returned when the display name is blank.
	ErrInvalidAgentName = errors.New("agent name is required")

	// ErrInvalidCapacity is returned when capacity is below 1.
	ErrInvalidCapacity = errors.New("capacity must be at least 1")

	// ErrInvalidStatus is returned when status is not a known value.
	ErrInvalidStatus = errors.New("invalid agent status")

	// ErrDuplicateAgentID is returned when registering an agent_id that already exists.
	ErrDuplicateAgentID = errors.New("agent_id is already registered")
)

// StaleThreshold is how long an agent may go without a heartbeat before it
// is considered offline regardless of its stored status.
const StaleThreshold = 2 * time.Minute

// Status is an agent's self-reported availability.
type Status string

const (
	StatusOnline  Status = "online"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusBusy, StatusOffline:
		return true
	default:
		return false
	}
}

// Tags is a set of capability tags (browser names etc.), stored as JSON.
type Tags []string

// Value implements driver.Valuer for database storage.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for database retrieval.
func (t *Tags) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan Tags: not a byte slice")
	}
	return json.Unmarshal(bytes, t)
}

// ConfigMap is an opaque key-value configuration blob, stored as JSON.
type ConfigMap map[string]interface{}

// Value implements driver.Valuer for database storage.
func (c ConfigMap) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner for database retrieval.
func (c *ConfigMap) Scan(value interface{}) error {
	if value == nil {
		*c = make(ConfigMap)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to scan ConfigMap: not a byte slice")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*c = m
	return nil
}

// Agent represents one registered test-execution worker.
type Agent struct {
	ID            uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	AgentID       string     `json:"agent_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_agents_agent_id"`
	Name          string     `json:"agent_name" gorm:"type:varchar(255);not null"`
	Status        *Status    `json:"status" gorm:"type:varchar(20)"`
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`
	Capacity      int        `json:"capacity" gorm:"not null;default:1"`
	RunningJobs   int        `json:"running_jobs" gorm:"not null;default:0"`
	Browsers      Tags       `json:"browsers" gorm:"type:json"`
	Config        ConfigMap  `json:"config" gorm:"type:json"`
	TokenHash     string     `json:"-" gorm:"type:char(64);not null;uniqueIndex:idx_agents_token_hash"`
	Ephemeral     bool       `json:"ephemeral" gorm:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name.
func (Agent) TableName() string {
	return "agents"
}

// BeforeCreate hook to generate a UUID before creating a new agent.
func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Validate checks required fields.
func (a *Agent) Validate() error {
	if a.AgentID == "" {
		return ErrInvalidAgentID
	}
	if a.Name == "" {
		return ErrInvalidAgentName
	}
	if a.Capacity < 1 {
		return ErrInvalidCapacity
	}
	if a.Status != nil && !a.Status.IsValid() {
		return ErrInvalidStatus
	}
	if a.TokenHash == "" {
		return errors.New("token_hash is required")
	}
	return nil
}

// IsStale reports whether a heartbeat timestamp is missing or older than
// StaleThreshold relative to now.
func IsStale(lastHeartbeat *time.Time, now time.Time) bool {
	if lastHeartbeat == nil {
		return true
	}
	return now.Sub(*lastHeartbeat) > StaleThreshold
}

// EffectiveStatus derives the status to display and use for eligibility.
// A stale heartbeat forces offline unless the agent already reported offline
// itself. A fresh agent with no stored status counts as online.
func EffectiveStatus(a *Agent, now time.Time) Status {
	if a.Status != nil && *a.Status == StatusOffline {
		return StatusOffline
	}
	if IsStale(a.LastHeartbeat, now) {
		return StatusOffline
	}
	if a.Status == nil {
		return StatusOnline
	}
	return *a.Status
}

// GenerateToken creates a new random agent bearer token with the tda_ prefix.
// Returns the raw token (shown exactly once) and its SHA-256 hex hash.
func GenerateToken() (rawToken string, hash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	rawToken = "tda_" + base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(bytes)
	return rawToken, HashToken(rawToken), nil
}

// HashToken returns the SHA-256 hex digest of a raw token.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h)
}
