package execution

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionAppendStep(t *testing.T) {
	t.Run("appends while running", func(t *testing.T) {
		e := &Execution{Status: StatusRunning}
		require.NoError(t, e.AppendStep(StepResult{Step: 1, Status: "passed"}))
		require.NoError(t, e.AppendStep(StepResult{Step: 2, Status: "passed"}))
		assert.Len(t, e.Results, 2)
		assert.Equal(t, 1, e.Results[0].Step)
	})

	t.Run("appends while cancelling", func(t *testing.T) {
		e := &Execution{Status: StatusCancelling}
		assert.NoError(t, e.AppendStep(StepResult{Step: 1, Status: "passed"}))
	})

	t.Run("rejected after a terminal state", func(t *testing.T) {
		for _, s := range []Status{StatusPassed, StatusFailed, StatusCancelled} {
			e := &Execution{Status: s}
			assert.ErrorIs(t, e.AppendStep(StepResult{Step: 1}), ErrExecutionFinished)
		}
	})
}

func TestExecutionCancelFlow(t *testing.T) {
	t.Run("running moves to cancelling then cancelled", func(t *testing.T) {
		e := &Execution{Status: StatusRunning}

		require.NoError(t, e.RequestCancel())
		assert.Equal(t, StatusCancelling, e.Status)
		assert.Nil(t, e.CompletedAt)

		require.NoError(t, e.ConfirmCancel())
		assert.Equal(t, StatusCancelled, e.Status)
		assert.NotNil(t, e.CompletedAt)
	})

	t.Run("cancel request is only valid while running", func(t *testing.T) {
		for _, s := range []Status{StatusCancelling, StatusPassed, StatusFailed, StatusCancelled} {
			e := &Execution{Status: s}
			assert.ErrorIs(t, e.RequestCancel(), ErrExecutionNotRunning)
		}
	})

	t.Run("confirm without a request is rejected", func(t *testing.T) {
		e := &Execution{Status: StatusRunning}
		assert.ErrorIs(t, e.ConfirmCancel(), ErrExecutionNotCancelling)
	})
}

func TestExecutionFinish(t *testing.T) {
	t.Run("running finishes passed", func(t *testing.T) {
		e := &Execution{Status: StatusRunning}
		require.NoError(t, e.Finish(StatusPassed, ""))
		assert.Equal(t, StatusPassed, e.Status)
		assert.NotNil(t, e.CompletedAt)
	})

	t.Run("cancelling may still finish failed", func(t *testing.T) {
		e := &Execution{Status: StatusCancelling}
		require.NoError(t, e.Finish(StatusFailed, "step 3 failed"))
		assert.Equal(t, StatusFailed, e.Status)
		assert.Equal(t, "step 3 failed", e.ErrorMessage)
	})

	t.Run("only passed or failed are accepted", func(t *testing.T) {
		e := &Execution{Status: StatusRunning}
		assert.ErrorIs(t, e.Finish(StatusCancelled, ""), ErrInvalidStatus)
		assert.ErrorIs(t, e.Finish(StatusRunning, ""), ErrInvalidStatus)
	})

	t.Run("terminal execution cannot finish again", func(t *testing.T) {
		e := &Execution{Status: StatusPassed}
		assert.ErrorIs(t, e.Finish(StatusFailed, ""), ErrExecutionFinished)
	})
}

func TestExecutionValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		e := &Execution{TestID: uuid.New()}
		assert.NoError(t, e.Validate())
	})

	t.Run("missing test_id", func(t *testing.T) {
		e := &Execution{}
		assert.ErrorIs(t, e.Validate(), ErrInvalidTestID)
	})

	t.Run("bad status", func(t *testing.T) {
		e := &Execution{TestID: uuid.New(), Status: Status("paused")}
		assert.ErrorIs(t, e.Validate(), ErrInvalidStatus)
	})
}
