package worker

import (
	"context"
	"time"

	"github.com/testdeckhq/testdeck/job"
)

// Executor runs one claimed job to completion.
type Executor interface {
	Execute(ctx context.Context, j *job.Job) (job.Status, job.JSONMap, string)
}

// SimulatedExecutor walks the job's step snapshot with a fixed delay per step
// and reports every step as passed. Real browser runners implement Executor
// behind the same contract.
type SimulatedExecutor struct {
	StepDelay time.Duration
}

// Execute simulates the job's steps.
func (s *SimulatedExecutor) Execute(ctx context.Context, j *job.Job) (job.Status, job.JSONMap, string) {
	delay := s.StepDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}

	steps, _ := j.Config["steps"].([]interface{})

	results := make([]map[string]interface{}, 0, len(steps))
	for i := range steps {
		start := time.Now()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return job.StatusFailed, job.JSONMap{"steps": results}, "job interrupted"
		}
		results = append(results, map[string]interface{}{
			"step":        i + 1,
			"status":      "passed",
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}

	return job.StatusCompleted, job.JSONMap{"steps": results}, ""
}
