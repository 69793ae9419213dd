package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/suite"
)

// SuiteHandler handles suite CRUD, membership and run requests.
type SuiteHandler struct {
	suites suite.Store
	runner *suite.Runner
	logger logger.Logger
}

// NewSuiteHandler creates a new suite handler.
func NewSuiteHandler(suites suite.Store, runner *suite.Runner, log logger.Logger) *SuiteHandler {
	return &SuiteHandler{suites: suites, runner: runner, logger: log}
}

// CreateSuiteRequest represents a suite creation request.
type CreateSuiteRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles suite creation requests.
func (h *SuiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateSuiteRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s := &suite.Suite{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   userID,
	}

	if err := h.suites.Create(r.Context(), s); err != nil {
		if errors.Is(err, suite.ErrInvalidSuiteName) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create suite")
		return
	}

	respondJSON(w, http.StatusCreated, s)
}

// GetByID handles single suite retrieval, including its member list.
func (h *SuiteHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "suite")
	if !ok {
		return
	}

	s, err := h.suites.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, suite.ErrSuiteNotFound) {
			respondError(w, http.StatusNotFound, "suite not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get suite")
		return
	}

	members, err := h.suites.ListMembers(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list suite members")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"suite":   s,
		"members": members,
	})
}

// List handles paginated suite listing.
func (h *SuiteHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	suites, err := h.suites.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list suites")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(suites, len(suites), limit, offset))
}

// UpdateSuiteRequest represents a suite update request.
type UpdateSuiteRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Update handles partial suite updates.
func (h *SuiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "suite")
	if !ok {
		return
	}

	var req UpdateSuiteRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var setters []suite.UpdateSetter
	if req.Name != nil {
		setters = append(setters, suite.SetName(*req.Name))
	}
	if req.Description != nil {
		setters = append(setters, suite.SetDescription(*req.Description))
	}
	if len(setters) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	if err := h.suites.Update(r.Context(), id, setters...); err != nil {
		switch {
		case errors.Is(err, suite.ErrSuiteNotFound):
			respondError(w, http.StatusNotFound, "suite not found")
		case errors.Is(err, suite.ErrInvalidSuiteName):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to update suite")
		}
		return
	}

	s, err := h.suites.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get suite")
		return
	}

	respondJSON(w, http.StatusOK, s)
}

// Delete removes a suite and its member links.
func (h *SuiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "suite")
	if !ok {
		return
	}

	if err := h.suites.Delete(r.Context(), id); err != nil {
		if errors.Is(err, suite.ErrSuiteNotFound) {
			respondError(w, http.StatusNotFound, "suite not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete suite")
		return
	}

	respondSuccess(w, "suite deleted")
}

// AddTestRequest represents a suite membership request.
type AddTestRequest struct {
	TestID uuid.UUID `json:"test_id"`
}

// AddTest links a test into the suite at the next position.
func (h *SuiteHandler) AddTest(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "suite")
	if !ok {
		return
	}

	var req AddTestRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TestID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "test_id is required")
		return
	}

	if err := h.suites.AddTest(r.Context(), id, req.TestID); err != nil {
		if errors.Is(err, suite.ErrTestAlreadyInSuite) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to add test to suite")
		return
	}

	respondSuccess(w, "test added to suite")
}

// RemoveTest unlinks a test from the suite.
func (h *SuiteHandler) RemoveTest(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "suite")
	if !ok {
		return
	}
	testID, ok := parseUUIDOrRespond(w, r, "test_id", "test")
	if !ok {
		return
	}

	if err := h.suites.RemoveTest(r.Context(), id, testID); err != nil {
		if errors.Is(err, suite.ErrTestNotInSuite) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to remove test from suite")
		return
	}

	respondSuccess(w, "test removed from suite")
}

// RunSuiteRequest selects the execution path for a suite run.
type RunSuiteRequest struct {
	// Mode is "direct" (default) or "agent".
	Mode string `json:"mode"`
}

// Run starts a suite run. Direct mode runs the members sequentially in the
// background; agent mode enqueues one job per member for agents to claim.
func (h *SuiteHandler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "suite")
	if !ok {
		return
	}

	var req RunSuiteRequest
	if r.ContentLength > 0 {
		if err := parseJSON(r, &req, h.logger); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if _, err := h.suites.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, suite.ErrSuiteNotFound) {
			respondError(w, http.StatusNotFound, "suite not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get suite")
		return
	}

	switch req.Mode {
	case "agent":
		se, jobs, err := h.runner.EnqueueForAgents(r.Context(), id)
		if err != nil {
			if errors.Is(err, suite.ErrEmptySuite) {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, "failed to enqueue suite")
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"execution": se,
			"jobs":      jobs,
		})
	case "", "direct":
		members, err := h.suites.ListMembers(r.Context(), id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list suite members")
			return
		}
		if len(members) == 0 {
			respondError(w, http.StatusBadRequest, suite.ErrEmptySuite.Error())
			return
		}

		// Detached from the request context so the run survives the response.
		go func() {
			if _, err := h.runner.RunDirect(context.Background(), id); err != nil {
				h.logger.Error(context.Background(), "direct suite run failed", map[string]interface{}{
					"error":    err.Error(),
					"suite_id": id.String(),
				})
			}
		}()

		respondJSON(w, http.StatusAccepted, SuccessResponse{Message: "suite run started"})
	default:
		respondError(w, http.StatusBadRequest, "mode must be direct or agent")
	}
}

// GetExecution handles single suite execution retrieval.
func (h *SuiteHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "execution_id", "suite execution")
	if !ok {
		return
	}

	se, err := h.suites.GetExecutionByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, suite.ErrExecutionNotFound) {
			respondError(w, http.StatusNotFound, "suite execution not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get suite execution")
		return
	}

	respondJSON(w, http.StatusOK, se)
}

// ListExecutions returns the suite's execution history, newest first.
func (h *SuiteHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "suite")
	if !ok {
		return
	}

	limit, offset := parsePagination(r)

	executions, err := h.suites.ListExecutionsBySuite(r.Context(), id, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list suite executions")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(executions, len(executions), limit, offset))
}
