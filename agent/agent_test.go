package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStale(t *testing.T) {
	now := time.Now().UTC()

	t.Run("nil heartbeat is stale", func(t *testing.T) {
		assert.True(t, IsStale(nil, now))
	})

	t.Run("heartbeat within threshold is fresh", func(t *testing.T) {
		hb := now.Add(-StaleThreshold + time.Second)
		assert.False(t, IsStale(&hb, now))
	})

	t.Run("heartbeat beyond threshold is stale", func(t *testing.T) {
		hb := now.Add(-StaleThreshold - time.Second)
		assert.True(t, IsStale(&hb, now))
	})
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Now().UTC()
	fresh := now.Add(-30 * time.Second)
	stale := now.Add(-3 * time.Minute)

	online := StatusOnline
	busy := StatusBusy
	offline := StatusOffline

	t.Run("online with fresh heartbeat stays online", func(t *testing.T) {
		a := &Agent{Status: &online, LastHeartbeat: &fresh}
		assert.Equal(t, StatusOnline, EffectiveStatus(a, now))
	})

	t.Run("busy with fresh heartbeat stays busy", func(t *testing.T) {
		a := &Agent{Status: &busy, LastHeartbeat: &fresh}
		assert.Equal(t, StatusBusy, EffectiveStatus(a, now))
	})

	t.Run("online with stale heartbeat forced offline", func(t *testing.T) {
		a := &Agent{Status: &online, LastHeartbeat: &stale}
		assert.Equal(t, StatusOffline, EffectiveStatus(a, now))
	})

	t.Run("busy with stale heartbeat forced offline", func(t *testing.T) {
		a := &Agent{Status: &busy, LastHeartbeat: &stale}
		assert.Equal(t, StatusOffline, EffectiveStatus(a, now))
	})

	t.Run("stored offline passes through regardless of heartbeat", func(t *testing.T) {
		a := &Agent{Status: &offline, LastHeartbeat: &fresh}
		assert.Equal(t, StatusOffline, EffectiveStatus(a, now))
	})

	t.Run("no stored status with fresh heartbeat counts as online", func(t *testing.T) {
		a := &Agent{LastHeartbeat: &fresh}
		assert.Equal(t, StatusOnline, EffectiveStatus(a, now))
	})

	t.Run("no stored status and no heartbeat counts as offline", func(t *testing.T) {
		a := &Agent{}
		assert.Equal(t, StatusOffline, EffectiveStatus(a, now))
	})

	t.Run("heartbeat exactly at threshold is still fresh", func(t *testing.T) {
		hb := now.Add(-StaleThreshold)
		a := &Agent{Status: &online, LastHeartbeat: &hb}
		assert.Equal(t, StatusOnline, EffectiveStatus(a, now))
	})
}

func TestGenerateToken(t *testing.T) {
	raw, hash, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "tda_"))
	assert.Len(t, hash, 64)
	assert.Equal(t, HashToken(raw), hash)

	raw2, hash2, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
	assert.NotEqual(t, hash, hash2)
}

func TestAgentValidate(t *testing.T) {
	valid := func() *Agent {
		return &Agent{
			AgentID:   "agent-1",
			Name:      "Agent One",
			Capacity:  1,
			TokenHash: HashToken("tda_x"),
		}
	}

	t.Run("valid agent", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("blank agent_id", func(t *testing.T) {
		a := valid()
		a.AgentID = ""
		assert.ErrorIs(t, a.Validate(), ErrInvalidAgentID)
	})

	t.Run("blank name", func(t *testing.T) {
		a := valid()
		a.Name = ""
		assert.ErrorIs(t, a.Validate(), ErrInvalidAgentName)
	})

	t.Run("zero capacity", func(t *testing.T) {
		a := valid()
		a.Capacity = 0
		assert.ErrorIs(t, a.Validate(), ErrInvalidCapacity)
	})

	t.Run("bad status", func(t *testing.T) {
		a := valid()
		bad := Status("sleeping")
		a.Status = &bad
		assert.ErrorIs(t, a.Validate(), ErrInvalidStatus)
	})
}
