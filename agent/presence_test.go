package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testdeckhq/testdeck/logger"
)

func TestTrackerSnapshot(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	tracker := NewTracker(store, logger.NewTestLogger())

	registerTestAgent(t, store, "persisted-1")
	registerTestAgent(t, store, "persisted-2")

	t.Run("persisted agents only", func(t *testing.T) {
		agents, err := tracker.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, agents, 2)
		assert.Equal(t, "persisted-1", agents[0].AgentID)
		assert.Equal(t, "persisted-2", agents[1].AgentID)
	})

	t.Run("ephemeral agents appended after persisted", func(t *testing.T) {
		tracker.ActivateLocal("local-b", "Local B", Tags{"chromium"})
		tracker.ActivateLocal("local-a", "Local A", Tags{"chromium"})

		agents, err := tracker.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, agents, 4)

		assert.Equal(t, "local-a", agents[2].AgentID)
		assert.Equal(t, "local-b", agents[3].AgentID)
		assert.True(t, agents[2].Ephemeral)

		require.NotNil(t, agents[2].Status)
		assert.Equal(t, StatusOnline, *agents[2].Status)
		assert.NotNil(t, agents[2].LastHeartbeat)
	})

	t.Run("persisted row shadows ephemeral with same id", func(t *testing.T) {
		tracker.ActivateLocal("persisted-1", "Shadowed Local", nil)

		agents, err := tracker.Snapshot(ctx)
		require.NoError(t, err)
		require.Len(t, agents, 4)
		assert.False(t, agents[0].Ephemeral)
		assert.NotEqual(t, "Shadowed Local", agents[0].Name)
	})

	t.Run("deactivation removes ephemeral agent", func(t *testing.T) {
		tracker.DeactivateLocal("local-a")
		tracker.DeactivateLocal("local-b")
		tracker.DeactivateLocal("persisted-1")

		agents, err := tracker.Snapshot(ctx)
		require.NoError(t, err)
		assert.Len(t, agents, 2)
	})

	t.Run("snapshot is deterministic", func(t *testing.T) {
		tracker.ActivateLocal("local-z", "Local Z", nil)
		tracker.ActivateLocal("local-m", "Local M", nil)

		first, err := tracker.Snapshot(ctx)
		require.NoError(t, err)
		second, err := tracker.Snapshot(ctx)
		require.NoError(t, err)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].AgentID, second[i].AgentID)
		}
	})

	t.Run("reactivation refreshes capabilities", func(t *testing.T) {
		tracker.ActivateLocal("local-z", "Local Z v2", Tags{"firefox"})

		agents, err := tracker.Snapshot(ctx)
		require.NoError(t, err)

		var found *Agent
		for _, a := range agents {
			if a.AgentID == "local-z" {
				found = a
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, "Local Z v2", found.Name)
		assert.Equal(t, Tags{"firefox"}, found.Browsers)
	})
}
