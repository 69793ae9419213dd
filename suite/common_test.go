package suite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/execution"
	"github.com/testdeckhq/testdeck/job"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"github.com/testdeckhq/testdeck/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a test database and suite store for testing.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db,
		&Suite{}, &Member{}, &Execution{},
		&nocodetest.Test{}, &execution.Execution{}, &job.Job{},
	)

	log := logger.NewTestLogger()
	store := NewMySQLStore(db, log)

	return db, store
}

// createTestSuite inserts a suite with the given name.
func createTestSuite(t *testing.T, store Store, name string) *Suite {
	t.Helper()

	s := &Suite{Name: name, CreatedBy: uuid.New()}
	if err := store.Create(context.Background(), s); err != nil {
		t.Fatalf("failed to create test suite: %v", err)
	}
	return s
}

// createMemberTest inserts a no-code test usable as a suite member.
func createMemberTest(t *testing.T, db *gorm.DB, name string, steps nocodetest.Steps) *nocodetest.Test {
	t.Helper()

	tests := nocodetest.NewMySQLStore(db, logger.NewTestLogger())
	nt := &nocodetest.Test{
		Name:      name,
		BaseURL:   "https://example.com",
		Steps:     steps,
		CreatedBy: uuid.New(),
	}
	if err := tests.Create(context.Background(), nt); err != nil {
		t.Fatalf("failed to create member test: %v", err)
	}
	return nt
}
