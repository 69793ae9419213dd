package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a test database and integration store for testing.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Integration{})

	log := logger.NewTestLogger()
	store := NewMySQLStore(db, log)

	return db, store
}

// createTestIntegration inserts an integration with encrypted test credentials.
func createTestIntegration(t *testing.T, store Store, name string, provider ProviderType) *Integration {
	t.Helper()

	key := DeriveKey("test-passphrase")
	creds, err := EncryptCredentials(key, map[string]string{"api_token": "abc123"})
	if err != nil {
		t.Fatalf("failed to encrypt test credentials: %v", err)
	}

	i := &Integration{
		CreatedBy:            uuid.New(),
		Name:                 name,
		Provider:             provider,
		EncryptedCredentials: creds,
		IsActive:             true,
	}
	if err := store.Create(context.Background(), i); err != nil {
		t.Fatalf("failed to create test integration: %v", err)
	}
	return i
}
