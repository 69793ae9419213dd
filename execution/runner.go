package execution

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"github.com/testdeckhq/testdeck/notifier"
	"github.com/testdeckhq/testdeck/storage"
)

// StepExecutor performs one automation step against a browser.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, executionID uuid.UUID, baseURL string, stepIndex int, step map[string]interface{}) (StepResult, error)
}

// SimulatedExecutor is a stand-in step executor: it waits a fixed delay per
// step and reports success. Screenshot steps upload a placeholder artifact
// when blob storage is wired. Real browser runners plug in behind the same
// interface.
type SimulatedExecutor struct {
	StepDelay time.Duration
	Artifacts storage.BlobStorage
}

// ExecuteStep simulates one step.
func (s *SimulatedExecutor) ExecuteStep(ctx context.Context, executionID uuid.UUID, baseURL string, stepIndex int, step map[string]interface{}) (StepResult, error) {
	delay := s.StepDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	start := time.Now()
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return StepResult{}, ctx.Err()
	}

	result := StepResult{
		Step:       stepIndex,
		Status:     "passed",
		DurationMS: time.Since(start).Milliseconds(),
	}

	if action, _ := step["action"].(string); action == "screenshot" && s.Artifacts != nil {
		path := fmt.Sprintf("executions/%s/step_%d.png", executionID, stepIndex)
		if err := s.Artifacts.Upload(ctx, path, bytes.NewReader(placeholderPNG)); err == nil {
			result.Screenshot = path
		}
	}

	return result, nil
}

// Minimal 1x1 PNG used for simulated screenshot steps.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// Runner drives one execution through its step list: steps run strictly in
// order, a cancel request is honored between steps, and the owning test's
// status is updated best-effort on the terminal transition. Every mutation is
// published on the event bus so open dashboards update immediately.
type Runner struct {
	executions Store
	tests      nocodetest.Store
	executor   StepExecutor
	publisher  notifier.Publisher
	logger     logger.Logger
}

// NewRunner creates an execution runner.
func NewRunner(executions Store, tests nocodetest.Store, executor StepExecutor, publisher notifier.Publisher, log logger.Logger) *Runner {
	if publisher == nil {
		publisher = notifier.NopPublisher{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Runner{
		executions: executions,
		tests:      tests,
		executor:   executor,
		publisher:  publisher,
		logger:     log,
	}
}

// Invoke runs the execution and applies the reconciliation fallback: if the
// run errors while the row is still running, the row is force-failed so no
// execution is left in flight forever. Intended to be called from a goroutine;
// the HTTP caller does not await it.
func (r *Runner) Invoke(ctx context.Context, executionID uuid.UUID) {
	if err := r.Run(ctx, executionID); err != nil {
		msg := fmt.Sprintf("executor crashed: %v", err)
		if _, ffErr := r.executions.ForceFailIfRunning(ctx, executionID, msg); ffErr != nil {
			r.logger.Error(ctx, "reconciliation fallback failed", map[string]interface{}{
				"error":        ffErr.Error(),
				"execution_id": executionID.String(),
			})
			return
		}
		r.publishUpdate(ctx, executionID)
	}
}

// Run executes every step of the execution's test sequentially. Returns an
// error only when the runner itself could not proceed; a failing step is a
// normal terminal outcome, not an error.
func (r *Runner) Run(ctx context.Context, executionID uuid.UUID) error {
	e, err := r.executions.GetByID(ctx, executionID)
	if err != nil {
		return err
	}
	if !e.InFlight() {
		return ErrExecutionFinished
	}

	t, err := r.tests.GetByID(ctx, e.TestID)
	if err != nil {
		return err
	}

	for i, step := range t.Steps {
		cancelled, err := r.honorCancelRequest(ctx, executionID)
		if err != nil {
			return err
		}
		if cancelled {
			return nil
		}

		result, err := r.executor.ExecuteStep(ctx, executionID, t.BaseURL, i+1, step)
		if err != nil {
			failed := StepResult{
				Step:   i + 1,
				Status: "failed",
				Error:  err.Error(),
			}
			if appendErr := r.executions.AppendStep(ctx, executionID, failed); appendErr != nil {
				return appendErr
			}
			return r.finish(ctx, executionID, e.TestID, StatusFailed, err.Error())
		}

		if err := r.executions.AppendStep(ctx, executionID, result); err != nil {
			return err
		}
		r.publishUpdate(ctx, executionID)

		if result.Status == "failed" {
			return r.finish(ctx, executionID, e.TestID, StatusFailed, result.Error)
		}
	}

	return r.finish(ctx, executionID, e.TestID, StatusPassed, "")
}

// honorCancelRequest checks for a pending cancel and acknowledges it.
func (r *Runner) honorCancelRequest(ctx context.Context, executionID uuid.UUID) (bool, error) {
	current, err := r.executions.GetByID(ctx, executionID)
	if err != nil {
		return false, err
	}
	if current.Status != StatusCancelling {
		return false, nil
	}

	if err := r.executions.ConfirmCancel(ctx, executionID); err != nil {
		return false, err
	}
	r.updateTestStatus(ctx, current.TestID, nocodetest.StatusCancelled)
	r.publishUpdate(ctx, executionID)
	return true, nil
}

func (r *Runner) finish(ctx context.Context, executionID, testID uuid.UUID, status Status, errorMessage string) error {
	if err := r.executions.Finish(ctx, executionID, status, errorMessage); err != nil {
		return err
	}

	switch status {
	case StatusPassed:
		r.updateTestStatus(ctx, testID, nocodetest.StatusPassed)
	case StatusFailed:
		r.updateTestStatus(ctx, testID, nocodetest.StatusFailed)
	}

	r.publishUpdate(ctx, executionID)
	return nil
}

// updateTestStatus copies the terminal outcome onto the owning test.
// Best-effort: a failure here never fails the execution.
func (r *Runner) updateTestStatus(ctx context.Context, testID uuid.UUID, status nocodetest.Status) {
	if err := r.tests.Update(ctx, testID, nocodetest.SetStatus(status)); err != nil {
		r.logger.Warn(ctx, "failed to update test status", map[string]interface{}{
			"error":   err.Error(),
			"test_id": testID.String(),
			"status":  string(status),
		})
	}
}

func (r *Runner) publishUpdate(ctx context.Context, executionID uuid.UUID) {
	e, err := r.executions.GetByID(ctx, executionID)
	if err != nil {
		return
	}
	r.publisher.Publish(ctx, notifier.Event{Type: notifier.TypeExecutionUpdated, Payload: e})
}
