package execution

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"github.com/testdeckhq/testdeck/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a test database and execution store for testing.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Execution{}, &nocodetest.Test{})

	log := logger.NewTestLogger()
	store := NewMySQLStore(db, log)

	return db, store
}

// createTestExecution inserts a running execution for a fresh test id.
func createTestExecution(t *testing.T, store Store, totalSteps int) *Execution {
	t.Helper()

	e := &Execution{
		TestID:     uuid.New(),
		TotalSteps: totalSteps,
	}
	if err := store.Create(context.Background(), e); err != nil {
		t.Fatalf("failed to create test execution: %v", err)
	}
	return e
}

// createNoCodeTest inserts a test with the given steps and returns it.
func createNoCodeTest(t *testing.T, db *gorm.DB, steps nocodetest.Steps) *nocodetest.Test {
	t.Helper()

	tests := nocodetest.NewMySQLStore(db, logger.NewTestLogger())
	nt := &nocodetest.Test{
		Name:      "checkout flow",
		BaseURL:   "https://example.com",
		Steps:     steps,
		CreatedBy: uuid.New(),
	}
	if err := tests.Create(context.Background(), nt); err != nil {
		t.Fatalf("failed to create no-code test: %v", err)
	}
	return nt
}
