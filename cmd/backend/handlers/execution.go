package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/execution"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
	"github.com/testdeckhq/testdeck/notifier"
)

// ExecutionHandler handles direct test execution requests.
type ExecutionHandler struct {
	executions execution.Store
	tests      nocodetest.Store
	runner     *execution.Runner
	publisher  notifier.Publisher
	logger     logger.Logger
}

// NewExecutionHandler creates a new execution handler.
func NewExecutionHandler(executions execution.Store, tests nocodetest.Store, runner *execution.Runner, publisher notifier.Publisher, log logger.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		executions: executions,
		tests:      tests,
		runner:     runner,
		publisher:  publisher,
		logger:     log,
	}
}

// RunRequest represents a direct execution request.
type RunRequest struct {
	TestID uuid.UUID `json:"test_id"`
}

// Run creates an execution row and starts the runner in the background. The
// response returns immediately with the running row; progress streams over
// the websocket.
func (h *ExecutionHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
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

	e := &execution.Execution{
		TestID:     t.ID,
		TotalSteps: len(t.Steps),
	}
	if err := h.executions.Create(r.Context(), e); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create execution")
		return
	}

	if err := h.tests.Update(r.Context(), t.ID, nocodetest.SetStatus(nocodetest.StatusRunning)); err != nil {
		h.logger.Warn(r.Context(), "failed to mark test running", map[string]interface{}{
			"error":   err.Error(),
			"test_id": t.ID.String(),
		})
	}

	h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeExecutionUpdated, Payload: e})

	// Detached from the request context so the run survives the response.
	go h.runner.Invoke(context.Background(), e.ID)

	respondJSON(w, http.StatusAccepted, e)
}

// GetByID handles single execution retrieval.
func (h *ExecutionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "execution")
	if !ok {
		return
	}

	e, err := h.executions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, execution.ErrExecutionNotFound) {
			respondError(w, http.StatusNotFound, "execution not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get execution")
		return
	}

	respondJSON(w, http.StatusOK, e)
}

// List returns recent executions, or executions of one test when test_id is
// given.
func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	if testIDStr := r.URL.Query().Get("test_id"); testIDStr != "" {
		testID, err := uuid.Parse(testIDStr)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid test_id: must be a valid UUID")
			return
		}
		executions, err := h.executions.ListByTestID(r.Context(), testID, limit, offset)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list executions")
			return
		}
		respondJSON(w, http.StatusOK, NewPaginatedResponse(executions, len(executions), limit, offset))
		return
	}

	executions, err := h.executions.ListRecent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list executions")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(executions, len(executions), limit, 0))
}

// Cancel flags a running execution for cooperative cancellation. The executor
// confirms between steps; only then does the row turn cancelled.
func (h *ExecutionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "execution")
	if !ok {
		return
	}

	if err := h.executions.RequestCancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, execution.ErrExecutionNotFound):
			respondError(w, http.StatusNotFound, "execution not found")
		case errors.Is(err, execution.ErrExecutionNotRunning):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to request cancellation")
		}
		return
	}

	if e, err := h.executions.GetByID(r.Context(), id); err == nil {
		h.publisher.Publish(r.Context(), notifier.Event{Type: notifier.TypeExecutionUpdated, Payload: e})
	}

	respondSuccess(w, "cancellation requested")
}
