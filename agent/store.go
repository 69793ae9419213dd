package agent

import (
	"context"
	"time"
)

// Store defines persistence operations for agents.
type Store interface {
	Create(ctx context.Context, a *Agent) error
	GetByAgentID(ctx context.Context, agentID string) (*Agent, error)
	GetByTokenHash(ctx context.Context, hash string) (*Agent, error)
	Update(ctx context.Context, agentID string, setters ...UpdateSetter) error
	Delete(ctx context.Context, agentID string) error
	List(ctx context.Context) ([]*Agent, error)

	// Heartbeat records a liveness signal: updates last_heartbeat to now and
	// refreshes the self-reported status, capacity and capabilities.
	Heartbeat(ctx context.Context, agentID string, status Status, capacity int, browsers Tags) error

	// AdjustRunningJobs adds delta to running_jobs, clamping at zero.
	AdjustRunningJobs(ctx context.Context, agentID string, delta int) error

	// MarkStaleOffline writes status=offline on every agent whose heartbeat is
	// older than the threshold and whose stored status is not already offline.
	// Returns the number of rows updated.
	MarkStaleOffline(ctx context.Context, threshold time.Duration) (int64, error)
}

// UpdateSetter mutates an agent during an update.
type UpdateSetter func(*Agent) error
