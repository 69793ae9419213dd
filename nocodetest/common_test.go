package nocodetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a test database and test store for testing.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Test{})

	log := logger.NewTestLogger()
	store := NewMySQLStore(db, log)

	return db, store
}

// createFixtureTest inserts a valid test and returns it.
func createFixtureTest(t *testing.T, store Store, name string) *Test {
	t.Helper()

	nt := &Test{
		Name:      name,
		BaseURL:   "https://example.com",
		Steps:     Steps{{"action": "navigate", "url": "/"}},
		CreatedBy: uuid.New(),
	}
	if err := store.Create(context.Background(), nt); err != nil {
		t.Fatalf("failed to create fixture test: %v", err)
	}
	return nt
}
