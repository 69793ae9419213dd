package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/testdeckhq/testdeck/agent"
	"github.com/testdeckhq/testdeck/execution"
	"github.com/testdeckhq/testdeck/job"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/notifier"
	"github.com/testdeckhq/testdeck/suite"
)

// Config tunes the background sweeps.
type Config struct {
	// SweepInterval is how often every sweep runs.
	SweepInterval time.Duration

	// ExecutionDeadline is how long an execution may stay running before the
	// crashed-executor sweep force-fails it.
	ExecutionDeadline time.Duration

	// OrphanGracePeriod is how old a running suite execution must be before
	// it is cancelled for having no linked jobs.
	OrphanGracePeriod time.Duration
}

// DefaultConfig returns the default sweep tuning.
func DefaultConfig() Config {
	return Config{
		SweepInterval:     30 * time.Second,
		ExecutionDeadline: 10 * time.Minute,
		OrphanGracePeriod: 2 * time.Minute,
	}
}

// Reconciler runs the periodic sweeps that keep derived state honest: stale
// agents go offline, crashed executions go terminal, and agent-path suite
// executions get finalized or cancelled.
type Reconciler struct {
	cfg        Config
	agents     agent.Store
	executions execution.Store
	suites     suite.Store
	jobs       job.Store
	publisher  notifier.Publisher
	logger     logger.Logger
	cron       *cron.Cron
}

// New creates a reconciler. Call Start to begin sweeping.
func New(cfg Config, agents agent.Store, executions execution.Store, suites suite.Store, jobs job.Store, publisher notifier.Publisher, log logger.Logger) *Reconciler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if cfg.ExecutionDeadline <= 0 {
		cfg.ExecutionDeadline = DefaultConfig().ExecutionDeadline
	}
	if cfg.OrphanGracePeriod <= 0 {
		cfg.OrphanGracePeriod = DefaultConfig().OrphanGracePeriod
	}
	if publisher == nil {
		publisher = notifier.NopPublisher{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Reconciler{
		cfg:        cfg,
		agents:     agents,
		executions: executions,
		suites:     suites,
		jobs:       jobs,
		publisher:  publisher,
		logger:     log,
	}
}

// Start schedules the sweeps. Each sweep swallows its own errors so one bad
// tick never stops the schedule.
func (r *Reconciler) Start() error {
	if r.cron != nil {
		return nil
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", r.cfg.SweepInterval)

	if _, err := c.AddFunc(spec, func() { r.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule reconciliation sweep: %w", err)
	}

	c.Start()
	r.cron = c

	r.logger.Info(context.Background(), "reconciler started", map[string]interface{}{
		"sweep_interval": r.cfg.SweepInterval.String(),
	})

	return nil
}

// Stop halts the schedule and waits for in-flight sweeps.
func (r *Reconciler) Stop() {
	if r.cron == nil {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.cron = nil
}

// Sweep runs every reconciliation pass once.
func (r *Reconciler) Sweep(ctx context.Context) {
	r.sweepStaleAgents(ctx)
	r.sweepCrashedExecutions(ctx)
	r.sweepSuiteExecutions(ctx)
}

// sweepStaleAgents persists the derived offline status for agents whose
// heartbeat is older than the staleness threshold.
func (r *Reconciler) sweepStaleAgents(ctx context.Context) {
	n, err := r.agents.MarkStaleOffline(ctx, agent.StaleThreshold)
	if err != nil {
		r.logger.Error(ctx, "stale agent sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if n > 0 {
		r.logger.Info(ctx, "marked stale agents offline", map[string]interface{}{
			"count": n,
		})
	}
}

// sweepCrashedExecutions force-fails executions that stayed running past the
// deadline, the same fallback the runner applies when it crashes mid-run.
func (r *Reconciler) sweepCrashedExecutions(ctx context.Context) {
	stale, err := r.executions.ListStaleRunning(ctx, r.cfg.ExecutionDeadline)
	if err != nil {
		r.logger.Error(ctx, "crashed execution sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, e := range stale {
		msg := fmt.Sprintf("execution exceeded the %s running deadline", r.cfg.ExecutionDeadline)
		fired, err := r.executions.ForceFailIfRunning(ctx, e.ID, msg)
		if err != nil {
			r.logger.Error(ctx, "failed to force-fail stale execution", map[string]interface{}{
				"error":        err.Error(),
				"execution_id": e.ID.String(),
			})
			continue
		}
		if fired {
			r.logger.Warn(ctx, "force-failed stale execution", map[string]interface{}{
				"execution_id": e.ID.String(),
			})
			if updated, err := r.executions.GetByID(ctx, e.ID); err == nil {
				r.publisher.Publish(ctx, notifier.Event{Type: notifier.TypeExecutionUpdated, Payload: updated})
			}
		}
	}
}

// sweepSuiteExecutions finalizes running aggregates whose linked jobs all
// finished, backfilling outcomes that were never reported, and cancels
// aggregates that were orphaned with no jobs at all.
func (r *Reconciler) sweepSuiteExecutions(ctx context.Context) {
	running, err := r.suites.ListRunningExecutions(ctx, 0)
	if err != nil {
		r.logger.Error(ctx, "suite execution sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, se := range running {
		jobs, err := r.jobs.ListBySuiteExecution(ctx, se.ID)
		if err != nil {
			r.logger.Error(ctx, "failed to list suite jobs", map[string]interface{}{
				"error":              err.Error(),
				"suite_execution_id": se.ID.String(),
			})
			continue
		}

		if len(jobs) == 0 {
			// Direct-path aggregates also have zero jobs; only cancel rows old
			// enough that the enqueue step clearly never completed.
			if time.Since(se.StartedAt) >= r.cfg.OrphanGracePeriod {
				r.cancelOrphan(ctx, se)
			}
			continue
		}

		allTerminal := true
		for _, j := range jobs {
			if !j.Status.IsTerminal() {
				allTerminal = false
				break
			}
		}
		if !allTerminal {
			continue
		}

		r.finalizeSuite(ctx, se, jobs)
	}
}

func (r *Reconciler) cancelOrphan(ctx context.Context, se *suite.Execution) {
	if err := r.suites.CancelExecution(ctx, se.ID); err != nil {
		r.logger.Error(ctx, "failed to cancel orphaned suite execution", map[string]interface{}{
			"error":              err.Error(),
			"suite_execution_id": se.ID.String(),
		})
		return
	}
	r.logger.Warn(ctx, "cancelled orphaned suite execution", map[string]interface{}{
		"suite_execution_id": se.ID.String(),
	})
	r.publishSuiteUpdate(ctx, se.ID)
}

// finalizeSuite backfills any member outcome the result path missed, then
// assigns the aggregate's terminal status.
func (r *Reconciler) finalizeSuite(ctx context.Context, se *suite.Execution, jobs []*job.Job) {
	recorded := make(map[string]bool, len(se.Results))
	for _, summary := range se.Results {
		recorded[summary.TestID.String()] = true
	}

	for _, j := range jobs {
		if recorded[j.TestID.String()] {
			continue
		}
		passed := j.Status == job.StatusCompleted
		status := "failed"
		if passed {
			status = "passed"
		}
		summary := suite.TestSummary{
			TestID: j.TestID,
			Status: status,
			Error:  j.ErrorMessage,
		}
		if err := r.suites.RecordResult(ctx, se.ID, summary, passed); err != nil {
			r.logger.Error(ctx, "failed to backfill suite result", map[string]interface{}{
				"error":              err.Error(),
				"suite_execution_id": se.ID.String(),
				"job_id":             j.ID.String(),
			})
			return
		}
	}

	if err := r.suites.FinalizeExecution(ctx, se.ID); err != nil {
		r.logger.Error(ctx, "failed to finalize suite execution", map[string]interface{}{
			"error":              err.Error(),
			"suite_execution_id": se.ID.String(),
		})
		return
	}

	r.logger.Info(ctx, "finalized suite execution", map[string]interface{}{
		"suite_execution_id": se.ID.String(),
	})
	r.publishSuiteUpdate(ctx, se.ID)
}

func (r *Reconciler) publishSuiteUpdate(ctx context.Context, id uuid.UUID) {
	if updated, err := r.suites.GetExecutionByID(ctx, id); err == nil {
		r.publisher.Publish(ctx, notifier.Event{Type: notifier.TypeSuiteExecutionUpdated, Payload: updated})
	}
}
