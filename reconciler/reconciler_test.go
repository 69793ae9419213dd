package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testdeckhq/testdeck/agent"
	"github.com/testdeckhq/testdeck/execution"
	"github.com/testdeckhq/testdeck/job"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"github.com/testdeckhq/testdeck/suite"
	"github.com/testdeckhq/testdeck/testutil"
	"gorm.io/gorm"
)

type testStores struct {
	db         *gorm.DB
	agents     agent.Store
	executions execution.Store
	suites     suite.Store
	jobs       job.Store
}

func setupReconciler(t *testing.T, cfg Config) (*Reconciler, testStores) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db,
		&agent.Agent{}, &execution.Execution{}, &job.Job{},
		&suite.Suite{}, &suite.Member{}, &suite.Execution{},
		&nocodetest.Test{},
	)

	log := logger.NewTestLogger()
	stores := testStores{
		db:         db,
		agents:     agent.NewMySQLStore(db, log),
		executions: execution.NewMySQLStore(db, log),
		suites:     suite.NewMySQLStore(db, log),
		jobs:       job.NewMySQLStore(db, log),
	}

	r := New(cfg, stores.agents, stores.executions, stores.suites, stores.jobs, nil, log)
	return r, stores
}

func createSuiteExecution(t *testing.T, stores testStores, totalTests int) *suite.Execution {
	t.Helper()
	ctx := context.Background()

	s := &suite.Suite{Name: "swept", CreatedBy: uuid.New()}
	require.NoError(t, stores.suites.Create(ctx, s))

	se := &suite.Execution{SuiteID: s.ID, TotalTests: totalTests}
	require.NoError(t, stores.suites.CreateExecution(ctx, se))
	return se
}

func TestSweepStaleAgents(t *testing.T) {
	r, stores := setupReconciler(t, DefaultConfig())
	ctx := context.Background()

	_, _, err := agent.Register(ctx, stores.agents, "stale-agent", "Stale", nil, 1)
	require.NoError(t, err)
	_, _, err = agent.Register(ctx, stores.agents, "fresh-agent", "Fresh", nil, 1)
	require.NoError(t, err)

	require.NoError(t, stores.agents.Heartbeat(ctx, "fresh-agent", agent.StatusOnline, 1, nil))
	old := time.Now().UTC().Add(-5 * time.Minute)
	require.NoError(t, stores.db.Model(&agent.Agent{}).Where("agent_id = ?", "stale-agent").
		Updates(map[string]interface{}{"status": string(agent.StatusOnline), "last_heartbeat": old}).Error)

	r.Sweep(ctx)

	stale, err := stores.agents.GetByAgentID(ctx, "stale-agent")
	require.NoError(t, err)
	require.NotNil(t, stale.Status)
	assert.Equal(t, agent.StatusOffline, *stale.Status)

	fresh, err := stores.agents.GetByAgentID(ctx, "fresh-agent")
	require.NoError(t, err)
	require.NotNil(t, fresh.Status)
	assert.Equal(t, agent.StatusOnline, *fresh.Status)
}

func TestSweepCrashedExecutions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExecutionDeadline = 10 * time.Minute
	r, stores := setupReconciler(t, cfg)
	ctx := context.Background()

	stuck := &execution.Execution{TestID: uuid.New(), TotalSteps: 1}
	require.NoError(t, stores.executions.Create(ctx, stuck))
	cancelling := &execution.Execution{TestID: uuid.New(), TotalSteps: 1}
	require.NoError(t, stores.executions.Create(ctx, cancelling))
	require.NoError(t, stores.executions.RequestCancel(ctx, cancelling.ID))
	fresh := &execution.Execution{TestID: uuid.New(), TotalSteps: 1}
	require.NoError(t, stores.executions.Create(ctx, fresh))

	old := time.Now().UTC().Add(-time.Hour)
	for _, id := range []uuid.UUID{stuck.ID, cancelling.ID} {
		require.NoError(t, stores.db.Model(&execution.Execution{}).Where("id = ?", id).
			Update("started_at", old).Error)
	}

	r.Sweep(ctx)

	got, err := stores.executions.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "running deadline")

	// A runner that crashed mid-cancel must not be re-listed forever.
	got, err = stores.executions.GetByID(ctx, cancelling.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)

	got, err = stores.executions.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusRunning, got.Status)
}

func TestSweepSuiteExecutions(t *testing.T) {
	t.Run("finalizes when every job is terminal", func(t *testing.T) {
		r, stores := setupReconciler(t, DefaultConfig())
		ctx := context.Background()

		se := createSuiteExecution(t, stores, 2)

		passedTest := uuid.New()
		failedTest := uuid.New()
		for _, tid := range []uuid.UUID{passedTest, failedTest} {
			j := &job.Job{TestID: tid, RunID: se.RunID, SuiteExecutionID: &se.ID}
			require.NoError(t, stores.jobs.Create(ctx, j))
			claimed, err := stores.jobs.ClaimNext(ctx, "worker-1")
			require.NoError(t, err)
			require.NotNil(t, claimed)
			if tid == passedTest {
				require.NoError(t, stores.jobs.Complete(ctx, claimed.ID, job.StatusCompleted, nil, ""))
			} else {
				require.NoError(t, stores.jobs.Complete(ctx, claimed.ID, job.StatusFailed, nil, "boom"))
			}
		}

		r.Sweep(ctx)

		got, err := stores.suites.GetExecutionByID(ctx, se.ID)
		require.NoError(t, err)
		assert.Equal(t, suite.ExecutionFailed, got.Status)
		assert.Equal(t, 1, got.PassedTests)
		assert.Equal(t, 1, got.FailedTests)
		require.Len(t, got.Results, 2)
	})

	t.Run("backfills only unrecorded outcomes", func(t *testing.T) {
		r, stores := setupReconciler(t, DefaultConfig())
		ctx := context.Background()

		se := createSuiteExecution(t, stores, 2)

		recordedTest := uuid.New()
		missedTest := uuid.New()
		for _, tid := range []uuid.UUID{recordedTest, missedTest} {
			j := &job.Job{TestID: tid, RunID: se.RunID, SuiteExecutionID: &se.ID}
			require.NoError(t, stores.jobs.Create(ctx, j))
			claimed, err := stores.jobs.ClaimNext(ctx, "worker-1")
			require.NoError(t, err)
			require.NotNil(t, claimed)
			require.NoError(t, stores.jobs.Complete(ctx, claimed.ID, job.StatusCompleted, nil, ""))
		}

		// The result path already folded in the first outcome.
		require.NoError(t, stores.suites.RecordResult(ctx, se.ID,
			suite.TestSummary{TestID: recordedTest, Status: "passed"}, true))

		r.Sweep(ctx)

		got, err := stores.suites.GetExecutionByID(ctx, se.ID)
		require.NoError(t, err)
		assert.Equal(t, suite.ExecutionPassed, got.Status)
		assert.Equal(t, 2, got.PassedTests)
		require.Len(t, got.Results, 2)
	})

	t.Run("leaves aggregates with in-flight jobs alone", func(t *testing.T) {
		r, stores := setupReconciler(t, DefaultConfig())
		ctx := context.Background()

		se := createSuiteExecution(t, stores, 1)
		j := &job.Job{TestID: uuid.New(), RunID: se.RunID, SuiteExecutionID: &se.ID}
		require.NoError(t, stores.jobs.Create(ctx, j))

		r.Sweep(ctx)

		got, err := stores.suites.GetExecutionByID(ctx, se.ID)
		require.NoError(t, err)
		assert.Equal(t, suite.ExecutionRunning, got.Status)
	})

	t.Run("cancels zero-job orphans past the grace period", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OrphanGracePeriod = 2 * time.Minute
		r, stores := setupReconciler(t, cfg)
		ctx := context.Background()

		orphan := createSuiteExecution(t, stores, 2)
		fresh := createSuiteExecution(t, stores, 2)

		old := time.Now().UTC().Add(-10 * time.Minute)
		require.NoError(t, stores.db.Model(&suite.Execution{}).Where("id = ?", orphan.ID).
			Update("started_at", old).Error)

		r.Sweep(ctx)

		got, err := stores.suites.GetExecutionByID(ctx, orphan.ID)
		require.NoError(t, err)
		assert.Equal(t, suite.ExecutionCancelled, got.Status)

		// A fresh zero-job aggregate could be a direct run mid-flight.
		got, err = stores.suites.GetExecutionByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, suite.ExecutionRunning, got.Status)
	})
}

func TestStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Hour
	r, _ := setupReconciler(t, cfg)

	require.NoError(t, r.Start())
	require.NoError(t, r.Start())
	r.Stop()
	r.Stop()
}
