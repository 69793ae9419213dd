package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/testdeckhq/testdeck/agent"
	"github.com/testdeckhq/testdeck/job"
	"github.com/testdeckhq/testdeck/logger"
)

var (
	// ErrSessionRunning is returned when starting a session twice.
	ErrSessionRunning = errors.New("worker session is already running")

	// ErrSessionStopped is returned when stopping a session that never started.
	ErrSessionStopped = errors.New("worker session is not running")
)

const (
	// DefaultHeartbeatInterval is the cadence of liveness reports. It stays
	// well under the 2 minute staleness threshold.
	DefaultHeartbeatInterval = 30 * time.Second

	// DefaultPollInterval is how often an idle session asks for work.
	DefaultPollInterval = 5 * time.Second
)

// Session owns the heartbeat and poll loops of one running agent. Both loops
// start together on Start and stop together on Stop; no timer outlives the
// session. Loop failures are logged and swallowed, the next tick retries at
// the same fixed cadence.
type Session struct {
	client   *Client
	executor Executor
	logger   logger.Logger

	capacity int
	browsers []string

	heartbeatInterval time.Duration
	pollInterval      time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// SessionOption customizes a session.
type SessionOption func(*Session)

// WithHeartbeatInterval overrides the heartbeat cadence.
func WithHeartbeatInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.heartbeatInterval = d }
}

// WithPollInterval overrides the poll cadence.
func WithPollInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.pollInterval = d }
}

// NewSession creates a stopped session.
func NewSession(client *Client, executor Executor, capacity int, browsers []string, log logger.Logger, opts ...SessionOption) *Session {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &Session{
		client:            client,
		executor:          executor,
		logger:            log,
		capacity:          capacity,
		browsers:          browsers,
		heartbeatInterval: DefaultHeartbeatInterval,
		pollInterval:      DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start sends an immediate heartbeat and launches both loops.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSessionRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	s.sendHeartbeat(loopCtx, agent.StatusOnline)

	go s.run(loopCtx)

	s.logger.Info(ctx, "worker session started", map[string]interface{}{
		"heartbeat_interval": s.heartbeatInterval.String(),
		"poll_interval":      s.pollInterval.String(),
	})

	return nil
}

// Stop reports offline, cancels both loops and waits for them to exit.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSessionStopped
	}
	cancel := s.cancel
	done := s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done

	s.sendHeartbeat(ctx, agent.StatusOffline)

	s.logger.Info(ctx, "worker session stopped", nil)
	return nil
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			s.sendHeartbeat(ctx, agent.StatusOnline)
		case <-poll.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *Session) sendHeartbeat(ctx context.Context, status agent.Status) {
	err := s.client.Heartbeat(ctx, HeartbeatRequest{
		Status:   status,
		Capacity: s.capacity,
		Browsers: s.browsers,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn(ctx, "heartbeat failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// pollOnce claims at most one job, runs it to completion and reports back.
// The poll ticker keeps firing while a job runs; overlapping ticks are fine
// because the backend hands out work one claim at a time.
func (s *Session) pollOnce(ctx context.Context) {
	j, err := s.client.Poll(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn(ctx, "poll failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return
	}
	if j == nil {
		return
	}

	s.logger.Info(ctx, "job claimed", map[string]interface{}{
		"job_id":  j.ID.String(),
		"test_id": j.TestID.String(),
	})

	status, result, errorMessage := s.executor.Execute(ctx, j)
	if !status.IsTerminal() {
		status = job.StatusFailed
		errorMessage = "executor returned a non-terminal status"
	}

	err = s.client.ReportResult(ctx, j.ID, ResultRequest{
		Status:       status,
		Result:       result,
		ErrorMessage: errorMessage,
	})
	if err != nil {
		s.logger.Error(ctx, "failed to report job result", map[string]interface{}{
			"error":  err.Error(),
			"job_id": j.ID.String(),
		})
		return
	}

	s.logger.Info(ctx, "job finished", map[string]interface{}{
		"job_id": j.ID.String(),
		"status": string(status),
	})
}
