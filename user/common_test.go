package user

import (
	"context"
	"testing"

	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a test database and user store for testing.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &User{})

	log := logger.NewTestLogger()
	store := NewMySQLStore(db, log)

	return db, store
}

// createTestUser creates a user with default values for testing.
func createTestUser(t *testing.T, store Store, email string) *User {
	t.Helper()

	u := &User{
		Email:    email,
		Username: "testuser",
		IsActive: true,
	}
	if err := u.SetPassword("password123"); err != nil {
		t.Fatalf("failed to set password: %v", err)
	}
	if err := store.Create(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}
