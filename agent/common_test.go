package agent

import (
	"context"
	"testing"

	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/testutil"
	"gorm.io/gorm"
)

// setupTestStore creates a test database and agent store for testing.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Agent{})

	log := logger.NewTestLogger()
	store := NewMySQLStore(db, log)

	return db, store
}

// registerTestAgent registers an agent with default values and returns it.
func registerTestAgent(t *testing.T, store Store, agentID string) *Agent {
	t.Helper()

	a, _, err := Register(context.Background(), store, agentID, agentID+" display", Tags{"chromium"}, 1)
	if err != nil {
		t.Fatalf("failed to register test agent: %v", err)
	}
	return a
}
