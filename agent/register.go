package agent

import (
	"context"
)

// Register validates the request, generates a one-time bearer token, and
// persists the agent. The raw token is returned exactly once; only its hash
// is stored. Blank ids and names fail before any store write.
func Register(ctx context.Context, store Store, agentID, name string, browsers Tags, capacity int) (*Agent, string, error) {
	if agentID == "" {
		return nil, "", ErrInvalidAgentID
	}
	if name == "" {
		return nil, "", ErrInvalidAgentName
	}
	if capacity < 1 {
		capacity = 1
	}

	rawToken, hash, err := GenerateToken()
	if err != nil {
		return nil, "", err
	}

	a := &Agent{
		AgentID:   agentID,
		Name:      name,
		Capacity:  capacity,
		Browsers:  browsers,
		TokenHash: hash,
	}
	if err := store.Create(ctx, a); err != nil {
		return nil, "", err
	}

	return a, rawToken, nil
}
