package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/job"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"github.com/testdeckhq/testdeck/notifier"
)

// JobHandler handles queued job requests from the dashboard side.
type JobHandler struct {
	jobs      job.Store
	tests     nocodetest.Store
	publisher notifier.Publisher
	logger    logger.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobs job.Store, tests nocodetest.Store, publisher notifier.Publisher, log logger.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, tests: tests, publisher: publisher, logger: log}
}

// CreateJobRequest represents a job creation request.
type CreateJobRequest struct {
	TestID     uuid.UUID `json:"test_id"`
	Priority   int       `json:"priority"`
	MaxRetries int       `json:"max_retries"`
}

// Create enqueues a single test for agent execution. The job snapshots the
// test's base URL and steps so later edits do not change queued work.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.tests.GetByID(r.Context(), req.TestID)
	if err != nil {
		if errors.Is(err, nocodetest.ErrTestNotFound) {
			respondError(w, http.StatusNotFound, "test not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load test")
		return
	}

	steps := make([]interface{}, 0, len(t.Steps))
	for _, step := range t.Steps {
		steps = append(steps, map[string]interface{}(step))
	}

	j := &job.Job{
		TestID:     t.ID,
		RunID:      uuid.New(),
		Priority:   req.Priority,
		MaxRetries: req.MaxRetries,
		Config: job.JSONMap{
			"base_url": t.BaseURL,
			"steps":    steps,
		},
	}

	if err := h.jobs.Create(r.Context(), j); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeJobUpdated, Payload: j})

	respondJSON(w, http.StatusCreated, j)
}

// GetByID handles single job retrieval.
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "job")
	if !ok {
		return
	}

	j, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	respondJSON(w, http.StatusOK, j)
}

// List handles paginated job listing, optionally filtered by run_id.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	if runIDStr := r.URL.Query().Get("run_id"); runIDStr != "" {
		runID, err := uuid.Parse(runIDStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid run_id: must be a valid UUID")
			return
		}
		jobs, err := h.jobs.ListByRunID(r.Context(), runID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}
		respondJSON(w, http.StatusOK, NewPaginatedResponse(jobs, len(jobs), len(jobs), 0))
		return
	}

	limit, offset := parsePagination(r)

	jobs, err := h.jobs.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	total, err := h.jobs.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count jobs")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(jobs, total, limit, offset))
}

// Cancel requests cancellation of a pending or running job. Running jobs are
// not force-stopped; the assigned agent observes the state change.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "job")
	if !ok {
		return
	}

	if err := h.jobs.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			respondError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, job.ErrJobNotCancellable):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to cancel job")
		}
		return
	}

	h.publishJobUpdate(r, id)

	respondSuccess(w, "job cancelled")
}

// Retry resets a terminal job back to pending. The previous assignment and
// timestamps are cleared so the job re-enters the queue from scratch.
func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "job")
	if !ok {
		return
	}

	if err := h.jobs.Retry(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, job.ErrJobNotFound):
			respondError(w, http.StatusNotFound, "job not found")
		case errors.Is(err, job.ErrJobNotTerminal):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to retry job")
		}
		return
	}

	h.publishJobUpdate(r, id)

	j, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	respondJSON(w, http.StatusOK, j)
}

// Delete removes a job record.
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "job")
	if !ok {
		return
	}

	if err := h.jobs.Delete(r.Context(), id); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}

	respondSuccess(w, "job deleted")
}

func (h *JobHandler) publishJobUpdate(r *http.Request, id uuid.UUID) {
	if j, err := h.jobs.GetByID(r.Context(), id); err == nil {
		h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeJobUpdated, Payload: j})
	}
}
