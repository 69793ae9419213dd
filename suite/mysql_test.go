package suite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuiteMembership(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	s := createTestSuite(t, store, "smoke")
	testA := uuid.New()
	testB := uuid.New()
	testC := uuid.New()

	t.Run("members get sequential positions", func(t *testing.T) {
		require.NoError(t, store.AddTest(ctx, s.ID, testA))
		require.NoError(t, store.AddTest(ctx, s.ID, testB))
		require.NoError(t, store.AddTest(ctx, s.ID, testC))

		members, err := store.ListMembers(ctx, s.ID)
		require.NoError(t, err)
		require.Len(t, members, 3)
		assert.Equal(t, testA, members[0].TestID)
		assert.Equal(t, 0, members[0].Position)
		assert.Equal(t, 1, members[1].Position)
		assert.Equal(t, 2, members[2].Position)
	})

	t.Run("duplicate membership rejected", func(t *testing.T) {
		assert.ErrorIs(t, store.AddTest(ctx, s.ID, testA), ErrTestAlreadyInSuite)
	})

	t.Run("adding to an unknown suite", func(t *testing.T) {
		unknown := uuid.New()
		assert.ErrorIs(t, store.AddTest(ctx, unknown, testA), ErrSuiteNotFound)

		members, err := store.ListMembers(ctx, unknown)
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("remove unlinks the test", func(t *testing.T) {
		require.NoError(t, store.RemoveTest(ctx, s.ID, testB))

		members, err := store.ListMembers(ctx, s.ID)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})

	t.Run("removing a non-member", func(t *testing.T) {
		assert.ErrorIs(t, store.RemoveTest(ctx, s.ID, testB), ErrTestNotInSuite)
	})
}

func TestStoreRecordResult(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	s := createTestSuite(t, store, "record")

	t.Run("results and counters persist", func(t *testing.T) {
		se := &Execution{SuiteID: s.ID, TotalTests: 2}
		require.NoError(t, store.CreateExecution(ctx, se))
		assert.NotEqual(t, uuid.Nil, se.RunID)

		require.NoError(t, store.RecordResult(ctx, se.ID, TestSummary{TestID: uuid.New(), Name: "login", Status: "passed"}, true))
		require.NoError(t, store.RecordResult(ctx, se.ID, TestSummary{TestID: uuid.New(), Name: "checkout", Status: "failed", Error: "boom"}, false))

		got, err := store.GetExecutionByID(ctx, se.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.PassedTests)
		assert.Equal(t, 1, got.FailedTests)
		require.Len(t, got.Results, 2)
		assert.Equal(t, "login", got.Results[0].Name)
	})

	t.Run("overflow rejected", func(t *testing.T) {
		se := &Execution{SuiteID: s.ID, TotalTests: 1}
		require.NoError(t, store.CreateExecution(ctx, se))
		require.NoError(t, store.RecordResult(ctx, se.ID, TestSummary{TestID: uuid.New()}, true))

		err := store.RecordResult(ctx, se.ID, TestSummary{TestID: uuid.New()}, true)
		assert.ErrorIs(t, err, ErrCounterOverflow)
	})

	t.Run("unknown execution", func(t *testing.T) {
		err := store.RecordResult(ctx, uuid.New(), TestSummary{}, true)
		assert.ErrorIs(t, err, ErrExecutionNotFound)
	})
}

func TestStoreFinalizeExecution(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	s := createTestSuite(t, store, "finalize")

	t.Run("two passed one failed finalizes failed", func(t *testing.T) {
		se := &Execution{SuiteID: s.ID, TotalTests: 3}
		require.NoError(t, store.CreateExecution(ctx, se))

		require.NoError(t, store.RecordResult(ctx, se.ID, TestSummary{TestID: uuid.New(), Status: "passed"}, true))
		require.NoError(t, store.RecordResult(ctx, se.ID, TestSummary{TestID: uuid.New(), Status: "passed"}, true))
		require.NoError(t, store.RecordResult(ctx, se.ID, TestSummary{TestID: uuid.New(), Status: "failed"}, false))

		require.NoError(t, store.FinalizeExecution(ctx, se.ID))

		got, err := store.GetExecutionByID(ctx, se.ID)
		require.NoError(t, err)
		assert.Equal(t, ExecutionFailed, got.Status)
		assert.Equal(t, 2, got.PassedTests)
		assert.Equal(t, 1, got.FailedTests)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("incomplete aggregate cannot finalize", func(t *testing.T) {
		se := &Execution{SuiteID: s.ID, TotalTests: 2}
		require.NoError(t, store.CreateExecution(ctx, se))
		require.NoError(t, store.RecordResult(ctx, se.ID, TestSummary{TestID: uuid.New()}, true))

		assert.ErrorIs(t, store.FinalizeExecution(ctx, se.ID), ErrExecutionNotDone)
	})
}

func TestStoreCancelExecution(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	s := createTestSuite(t, store, "cancel")

	se := &Execution{SuiteID: s.ID, TotalTests: 2}
	require.NoError(t, store.CreateExecution(ctx, se))

	require.NoError(t, store.CancelExecution(ctx, se.ID))

	got, err := store.GetExecutionByID(ctx, se.ID)
	require.NoError(t, err)
	assert.Equal(t, ExecutionCancelled, got.Status)

	assert.ErrorIs(t, store.CancelExecution(ctx, se.ID), ErrExecutionFinished)
}

func TestListRunningExecutions(t *testing.T) {
	db, store := setupTestStore(t)
	ctx := context.Background()

	s := createTestSuite(t, store, "running")

	oldRunning := &Execution{SuiteID: s.ID, TotalTests: 1}
	require.NoError(t, store.CreateExecution(ctx, oldRunning))
	freshRunning := &Execution{SuiteID: s.ID, TotalTests: 1}
	require.NoError(t, store.CreateExecution(ctx, freshRunning))
	done := &Execution{SuiteID: s.ID, TotalTests: 0}
	require.NoError(t, store.CreateExecution(ctx, done))
	require.NoError(t, store.FinalizeExecution(ctx, done.ID))

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(&Execution{}).Where("id = ?", oldRunning.ID).
		Update("started_at", old).Error)

	t.Run("cutoff filters fresh aggregates", func(t *testing.T) {
		got, err := store.ListRunningExecutions(ctx, 10*time.Minute)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, oldRunning.ID, got[0].ID)
	})

	t.Run("zero cutoff returns every running aggregate", func(t *testing.T) {
		got, err := store.ListRunningExecutions(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestSuiteDelete(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	s := createTestSuite(t, store, "doomed")
	require.NoError(t, store.AddTest(ctx, s.ID, uuid.New()))

	require.NoError(t, store.Delete(ctx, s.ID))

	_, err := store.GetByID(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSuiteNotFound)

	members, err := store.ListMembers(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}
