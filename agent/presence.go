package agent

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/testdeckhq/testdeck/logger"
)

// Tracker produces a single current view of known agents: persisted rows plus
// ephemeral local agents (in-browser helpers) that exist only while their
// activation flag is set. Ephemeral agents are never written to the store.
type Tracker struct {
	store  Store
	logger logger.Logger

	mu        sync.RWMutex
	ephemeral map[string]*Agent
}

// NewTracker creates a presence tracker over the given store.
func NewTracker(store Store, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Tracker{
		store:     store,
		logger:    log,
		ephemeral: make(map[string]*Agent),
	}
}

// ActivateLocal registers an ephemeral local agent under the given id. Calling
// it again for the same id refreshes the name and capabilities.
func (t *Tracker) ActivateLocal(agentID, name string, browsers Tags) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ephemeral[agentID] = &Agent{
		AgentID:   agentID,
		Name:      name,
		Browsers:  browsers,
		Capacity:  1,
		Ephemeral: true,
	}
}

// DeactivateLocal removes an ephemeral local agent. Persisted agents with the
// same id are unaffected.
func (t *Tracker) DeactivateLocal(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.ephemeral, agentID)
}

// Snapshot returns the merged agent list: every persisted agent, followed by
// active ephemeral agents whose ids are not shadowed by a persisted row.
// Ephemeral agents carry a synthetic fresh heartbeat so they render online.
// Output is deterministic for unchanged store contents and activation flags.
func (t *Tracker) Snapshot(ctx context.Context) ([]*Agent, error) {
	persisted, err := t.store.List(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(persisted))
	for _, a := range persisted {
		seen[a.AgentID] = true
	}

	t.mu.RLock()
	locals := make([]*Agent, 0, len(t.ephemeral))
	for id, a := range t.ephemeral {
		if seen[id] {
			continue
		}
		locals = append(locals, a)
	}
	t.mu.RUnlock()

	sort.Slice(locals, func(i, j int) bool { return locals[i].AgentID < locals[j].AgentID })

	now := time.Now().UTC()
	out := make([]*Agent, 0, len(persisted)+len(locals))
	out = append(out, persisted...)
	for _, a := range locals {
		status := StatusOnline
		hb := now
		local := *a
		local.Status = &status
		local.LastHeartbeat = &hb
		out = append(out, &local)
	}

	return out, nil
}
