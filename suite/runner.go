package suite

import (
	"context"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/execution"
	"github.com/testdeckhq/testdeck/job"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"github.com/testdeckhq/testdeck/notifier"
)

// Runner starts suite runs over both execution paths: the direct sequential
// path and the agent queue path.
type Runner struct {
	suites     Store
	tests      nocodetest.Store
	executions execution.Store
	jobs       job.Store
	execRunner *execution.Runner
	publisher  notifier.Publisher
	logger     logger.Logger
}

// NewRunner creates a suite runner.
func NewRunner(suites Store, tests nocodetest.Store, executions execution.Store, jobs job.Store, execRunner *execution.Runner, publisher notifier.Publisher, log logger.Logger) *Runner {
	if publisher == nil {
		publisher = notifier.NopPublisher{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Runner{
		suites:     suites,
		tests:      tests,
		executions: executions,
		jobs:       jobs,
		execRunner: execRunner,
		publisher:  publisher,
		logger:     log,
	}
}

// RunDirect executes every member test strictly in order via the direct
// execution path. Each member runs to completion and the aggregate is
// persisted before the next member starts, so anyone polling the row sees a
// consistent intermediate state. A member whose invocation fails counts as
// failed and never aborts the rest of the suite.
func (r *Runner) RunDirect(ctx context.Context, suiteID uuid.UUID) (*Execution, error) {
	members, err := r.suites.ListMembers(ctx, suiteID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrEmptySuite
	}

	se := &Execution{
		SuiteID:    suiteID,
		TotalTests: len(members),
	}
	if err := r.suites.CreateExecution(ctx, se); err != nil {
		return nil, err
	}

	for _, member := range members {
		r.runMember(ctx, se.ID, member.TestID)
		r.publishUpdate(ctx, se.ID)
	}

	if err := r.suites.FinalizeExecution(ctx, se.ID); err != nil {
		return nil, err
	}
	r.publishUpdate(ctx, se.ID)

	return r.suites.GetExecutionByID(ctx, se.ID)
}

// runMember runs one member test and records its outcome on the aggregate.
func (r *Runner) runMember(ctx context.Context, suiteExecutionID, testID uuid.UUID) {
	t, err := r.tests.GetByID(ctx, testID)
	if err != nil {
		r.recordFailure(ctx, suiteExecutionID, testID, "", "test could not be loaded")
		return
	}

	e := &execution.Execution{
		TestID:           t.ID,
		SuiteExecutionID: &suiteExecutionID,
		TotalSteps:       len(t.Steps),
	}
	if err := r.executions.Create(ctx, e); err != nil {
		r.recordFailure(ctx, suiteExecutionID, t.ID, t.Name, "execution could not be created")
		return
	}

	if err := r.execRunner.Run(ctx, e.ID); err != nil {
		// Invocation failure: make sure the row is terminal, count as failed,
		// and keep going with the remaining members.
		r.logger.Warn(ctx, "suite member invocation failed", map[string]interface{}{
			"error":        err.Error(),
			"execution_id": e.ID.String(),
			"test_id":      t.ID.String(),
		})
		if _, ffErr := r.executions.ForceFailIfRunning(ctx, e.ID, "test execution failed"); ffErr != nil {
			r.logger.Error(ctx, "failed to force-fail suite member", map[string]interface{}{
				"error":        ffErr.Error(),
				"execution_id": e.ID.String(),
			})
		}
		r.recordFailure(ctx, suiteExecutionID, t.ID, t.Name, "test execution failed")
		return
	}

	final, err := r.executions.GetByID(ctx, e.ID)
	if err != nil {
		r.recordFailure(ctx, suiteExecutionID, t.ID, t.Name, "result could not be read back")
		return
	}

	passed := final.Status == execution.StatusPassed
	summary := TestSummary{
		TestID: t.ID,
		Name:   t.Name,
		Status: string(final.Status),
		Error:  final.ErrorMessage,
	}
	if err := r.suites.RecordResult(ctx, suiteExecutionID, summary, passed); err != nil {
		r.logger.Error(ctx, "failed to record suite member result", map[string]interface{}{
			"error":              err.Error(),
			"suite_execution_id": suiteExecutionID.String(),
			"test_id":            t.ID.String(),
		})
	}
}

func (r *Runner) recordFailure(ctx context.Context, suiteExecutionID, testID uuid.UUID, name, message string) {
	summary := TestSummary{
		TestID: testID,
		Name:   name,
		Status: string(execution.StatusFailed),
		Error:  message,
	}
	if err := r.suites.RecordResult(ctx, suiteExecutionID, summary, false); err != nil {
		r.logger.Error(ctx, "failed to record suite member failure", map[string]interface{}{
			"error":              err.Error(),
			"suite_execution_id": suiteExecutionID.String(),
			"test_id":            testID.String(),
		})
	}
}

// EnqueueForAgents creates the aggregate plus one pending job per member, all
// sharing the aggregate's run id. Jobs carry a config snapshot (base_url and
// steps) so agents read back exactly what was enqueued. Members whose test
// rows are missing are skipped; the aggregate's total reflects only the jobs
// actually enqueued.
func (r *Runner) EnqueueForAgents(ctx context.Context, suiteID uuid.UUID) (*Execution, []*job.Job, error) {
	members, err := r.suites.ListMembers(ctx, suiteID)
	if err != nil {
		return nil, nil, err
	}
	if len(members) == 0 {
		return nil, nil, ErrEmptySuite
	}

	tests := make([]*nocodetest.Test, 0, len(members))
	for _, member := range members {
		t, err := r.tests.GetByID(ctx, member.TestID)
		if err != nil {
			r.logger.Warn(ctx, "skipping suite member with missing test", map[string]interface{}{
				"suite_id": suiteID.String(),
				"test_id":  member.TestID.String(),
			})
			continue
		}
		tests = append(tests, t)
	}
	if len(tests) == 0 {
		return nil, nil, ErrEmptySuite
	}

	se := &Execution{
		SuiteID:    suiteID,
		TotalTests: len(tests),
	}
	if err := r.suites.CreateExecution(ctx, se); err != nil {
		return nil, nil, err
	}

	jobs := make([]*job.Job, 0, len(tests))
	for _, t := range tests {
		steps := make([]interface{}, 0, len(t.Steps))
		for _, step := range t.Steps {
			steps = append(steps, map[string]interface{}(step))
		}

		j := &job.Job{
			TestID:           t.ID,
			RunID:            se.RunID,
			SuiteExecutionID: &se.ID,
			Config: job.JSONMap{
				"base_url":           t.BaseURL,
				"steps":              steps,
				"suite_execution_id": se.ID.String(),
			},
		}
		if err := r.jobs.Create(ctx, j); err != nil {
			// Not atomic with the aggregate insert; the background finalizer
			// reconciles aggregates whose job set came up short.
			r.logger.Error(ctx, "failed to enqueue suite job", map[string]interface{}{
				"error":              err.Error(),
				"suite_execution_id": se.ID.String(),
				"test_id":            t.ID.String(),
			})
			continue
		}
		jobs = append(jobs, j)
	}

	r.publishUpdate(ctx, se.ID)

	return se, jobs, nil
}

func (r *Runner) publishUpdate(ctx context.Context, executionID uuid.UUID) {
	e, err := r.suites.GetExecutionByID(ctx, executionID)
	if err != nil {
		return
	}
	r.publisher.Publish(ctx, notifier.Event{Type: notifier.TypeSuiteExecutionUpdated, Payload: e})
}
