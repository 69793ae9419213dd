package suite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testdeckhq/testdeck/execution"
	"github.com/testdeckhq/testdeck/job"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"gorm.io/gorm"
)

// stepFunc adapts a function to execution.StepExecutor for runner tests.
type stepFunc func(ctx context.Context, executionID uuid.UUID, baseURL string, stepIndex int, step map[string]interface{}) (execution.StepResult, error)

func (f stepFunc) ExecuteStep(ctx context.Context, executionID uuid.UUID, baseURL string, stepIndex int, step map[string]interface{}) (execution.StepResult, error) {
	return f(ctx, executionID, baseURL, stepIndex, step)
}

func setupRunner(t *testing.T, db *gorm.DB, store Store, executor execution.StepExecutor) (*Runner, nocodetest.Store, execution.Store, job.Store) {
	t.Helper()

	log := logger.NewTestLogger()
	tests := nocodetest.NewMySQLStore(db, log)
	executions := execution.NewMySQLStore(db, log)
	jobs := job.NewMySQLStore(db, log)
	execRunner := execution.NewRunner(executions, tests, executor, nil, log)

	return NewRunner(store, tests, executions, jobs, execRunner, nil, log), tests, executions, jobs
}

func singleStep() nocodetest.Steps {
	return nocodetest.Steps{{"action": "navigate", "url": "/"}}
}

func TestRunDirect(t *testing.T) {
	t.Run("empty suite rejected", func(t *testing.T) {
		db, store := setupTestStore(t)
		runner, _, _, _ := setupRunner(t, db, store, nil)

		s := createTestSuite(t, store, "empty")
		_, err := runner.RunDirect(context.Background(), s.ID)
		assert.ErrorIs(t, err, ErrEmptySuite)
	})

	t.Run("all members pass", func(t *testing.T) {
		db, store := setupTestStore(t)
		ctx := context.Background()

		executor := stepFunc(func(ctx context.Context, executionID uuid.UUID, baseURL string, stepIndex int, step map[string]interface{}) (execution.StepResult, error) {
			return execution.StepResult{Step: stepIndex, Status: "passed"}, nil
		})
		runner, _, executions, _ := setupRunner(t, db, store, executor)

		s := createTestSuite(t, store, "green")
		t1 := createMemberTest(t, db, "login", singleStep())
		t2 := createMemberTest(t, db, "checkout", singleStep())
		require.NoError(t, store.AddTest(ctx, s.ID, t1.ID))
		require.NoError(t, store.AddTest(ctx, s.ID, t2.ID))

		se, err := runner.RunDirect(ctx, s.ID)
		require.NoError(t, err)

		assert.Equal(t, ExecutionPassed, se.Status)
		assert.Equal(t, 2, se.TotalTests)
		assert.Equal(t, 2, se.PassedTests)
		assert.Equal(t, 0, se.FailedTests)
		require.Len(t, se.Results, 2)
		assert.Equal(t, "login", se.Results[0].Name)
		assert.Equal(t, "checkout", se.Results[1].Name)

		// Each member got its own linked execution row.
		for _, nt := range []uuid.UUID{t1.ID, t2.ID} {
			rows, err := executions.ListByTestID(ctx, nt, 10, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			require.NotNil(t, rows[0].SuiteExecutionID)
			assert.Equal(t, se.ID, *rows[0].SuiteExecutionID)
		}
	})

	t.Run("member failure does not stop the suite", func(t *testing.T) {
		db, store := setupTestStore(t)
		ctx := context.Background()

		failures := 0
		executor := stepFunc(func(ctx context.Context, executionID uuid.UUID, baseURL string, stepIndex int, step map[string]interface{}) (execution.StepResult, error) {
			if action, _ := step["action"].(string); action == "click" {
				failures++
				return execution.StepResult{Step: stepIndex, Status: "failed", Error: "element not found"}, nil
			}
			return execution.StepResult{Step: stepIndex, Status: "passed"}, nil
		})
		runner, _, _, _ := setupRunner(t, db, store, executor)

		s := createTestSuite(t, store, "mixed")
		t1 := createMemberTest(t, db, "ok-1", singleStep())
		t2 := createMemberTest(t, db, "broken", nocodetest.Steps{{"action": "click", "selector": "#gone"}})
		t3 := createMemberTest(t, db, "ok-2", singleStep())
		require.NoError(t, store.AddTest(ctx, s.ID, t1.ID))
		require.NoError(t, store.AddTest(ctx, s.ID, t2.ID))
		require.NoError(t, store.AddTest(ctx, s.ID, t3.ID))

		se, err := runner.RunDirect(ctx, s.ID)
		require.NoError(t, err)

		assert.Equal(t, ExecutionFailed, se.Status)
		assert.Equal(t, 3, se.TotalTests)
		assert.Equal(t, 2, se.PassedTests)
		assert.Equal(t, 1, se.FailedTests)
		assert.Equal(t, 1, failures)

		require.Len(t, se.Results, 3)
		assert.Equal(t, "broken", se.Results[1].Name)
		assert.Equal(t, "element not found", se.Results[1].Error)
	})

	t.Run("missing member test counts as failed", func(t *testing.T) {
		db, store := setupTestStore(t)
		ctx := context.Background()

		executor := stepFunc(func(ctx context.Context, executionID uuid.UUID, baseURL string, stepIndex int, step map[string]interface{}) (execution.StepResult, error) {
			return execution.StepResult{Step: stepIndex, Status: "passed"}, nil
		})
		runner, _, _, _ := setupRunner(t, db, store, executor)

		s := createTestSuite(t, store, "ghost")
		t1 := createMemberTest(t, db, "real", singleStep())
		require.NoError(t, store.AddTest(ctx, s.ID, t1.ID))
		require.NoError(t, store.AddTest(ctx, s.ID, uuid.New()))

		se, err := runner.RunDirect(ctx, s.ID)
		require.NoError(t, err)

		assert.Equal(t, ExecutionFailed, se.Status)
		assert.Equal(t, 1, se.PassedTests)
		assert.Equal(t, 1, se.FailedTests)
	})
}

func TestEnqueueForAgents(t *testing.T) {
	t.Run("one job per member sharing the run id", func(t *testing.T) {
		db, store := setupTestStore(t)
		ctx := context.Background()
		runner, _, _, jobs := setupRunner(t, db, store, nil)

		s := createTestSuite(t, store, "queued")
		t1 := createMemberTest(t, db, "login", singleStep())
		t2 := createMemberTest(t, db, "checkout", singleStep())
		require.NoError(t, store.AddTest(ctx, s.ID, t1.ID))
		require.NoError(t, store.AddTest(ctx, s.ID, t2.ID))

		se, created, err := runner.EnqueueForAgents(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, 2, se.TotalTests)
		assert.Equal(t, ExecutionRunning, se.Status)

		for _, j := range created {
			assert.Equal(t, se.RunID, j.RunID)
			require.NotNil(t, j.SuiteExecutionID)
			assert.Equal(t, se.ID, *j.SuiteExecutionID)
			assert.Equal(t, "https://example.com", j.Config["base_url"])
			assert.NotEmpty(t, j.Config["steps"])
		}

		linked, err := jobs.ListBySuiteExecution(ctx, se.ID)
		require.NoError(t, err)
		assert.Len(t, linked, 2)
	})

	t.Run("missing member tests are skipped", func(t *testing.T) {
		db, store := setupTestStore(t)
		ctx := context.Background()
		runner, _, _, _ := setupRunner(t, db, store, nil)

		s := createTestSuite(t, store, "partial")
		t1 := createMemberTest(t, db, "real", singleStep())
		require.NoError(t, store.AddTest(ctx, s.ID, t1.ID))
		require.NoError(t, store.AddTest(ctx, s.ID, uuid.New()))

		se, created, err := runner.EnqueueForAgents(ctx, s.ID)
		require.NoError(t, err)
		assert.Len(t, created, 1)
		assert.Equal(t, 1, se.TotalTests)
	})

	t.Run("suite of only missing tests rejected", func(t *testing.T) {
		db, store := setupTestStore(t)
		ctx := context.Background()
		runner, _, _, _ := setupRunner(t, db, store, nil)

		s := createTestSuite(t, store, "all-ghosts")
		require.NoError(t, store.AddTest(ctx, s.ID, uuid.New()))

		_, _, err := runner.EnqueueForAgents(ctx, s.ID)
		assert.ErrorIs(t, err, ErrEmptySuite)
	})
}
