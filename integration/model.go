package integration

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrIntegrationNotFound = errors.New("integration not found")
	ErrInvalidName         = errors.New("name is required")
	ErrInvalidProvider     = errors.New("invalid provider type")
	ErrInvalidCreatedBy    = errors.New("created_by is required")
)

// ProviderType identifies a supported third-party integration.
type ProviderType string

const (
	ProviderJira        ProviderType = "jira"
	ProviderAzureDevOps ProviderType = "azure_devops"
	ProviderGitHub      ProviderType = "github"
	ProviderBrowserbase ProviderType = "browserbase"
	ProviderAzureOpenAI ProviderType = "azure_openai"
)

// IsValid checks if the provider type is valid.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderJira, ProviderAzureDevOps, ProviderGitHub, ProviderBrowserbase, ProviderAzureOpenAI:
		return true
	default:
		return false
	}
}

// Integration is one configured third-party connection. Credentials are held
// encrypted at rest and never serialized out.
type Integration struct {
	ID                   uuid.UUID    `json:"id" gorm:"type:char(36);primaryKey"`
	CreatedBy            uuid.UUID    `json:"created_by" gorm:"type:char(36);not null;index:idx_integrations_created_by"`
	Name                 string       `json:"name" gorm:"type:varchar(255);not null"`
	Provider             ProviderType `json:"provider" gorm:"type:varchar(20);not null"`
	EncryptedCredentials []byte       `json:"-" gorm:"type:blob;not null"`
	IsActive             bool         `json:"is_active" gorm:"not null;default:true"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// TableName returns the database table name.
func (Integration) TableName() string {
	return "integrations"
}

// BeforeCreate hook to generate a UUID before creating a new integration.
func (i *Integration) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Validate checks required fields.
func (i *Integration) Validate() error {
	if i.Name == "" {
		return ErrInvalidName
	}
	if !i.Provider.IsValid() {
		return ErrInvalidProvider
	}
	if i.CreatedBy == uuid.Nil {
		return ErrInvalidCreatedBy
	}
	return nil
}
