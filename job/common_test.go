package job

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a test database and job store for testing.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Job{})

	log := logger.NewTestLogger()
	store := NewMySQLStore(db, log)

	return db, store
}

// enqueueTestJob creates a pending job with the given priority and returns it.
func enqueueTestJob(t *testing.T, store Store, runID uuid.UUID, priority int) *Job {
	t.Helper()

	j := &Job{
		TestID:   uuid.New(),
		RunID:    runID,
		Priority: priority,
		Config:   JSONMap{"base_url": "https://example.com"},
	}
	if err := store.Create(context.Background(), j); err != nil {
		t.Fatalf("failed to enqueue test job: %v", err)
	}
	return j
}
