package handlers

import (
	"errors"
	"net/http"

	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/nocodetest"
)

// TestHandler handles no-code test CRUD requests.
type TestHandler struct {
	tests  nocodetest.Store
	logger logger.Logger
}

// NewTestHandler creates a new test handler.
func NewTestHandler(tests nocodetest.Store, log logger.Logger) *TestHandler {
	return &TestHandler{tests: tests, logger: log}
}

// CreateTestRequest represents a test creation request.
type CreateTestRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	BaseURL     string           `json:"base_url"`
	Steps       nocodetest.Steps `json:"steps"`
}

// Create handles test creation requests.
func (h *TestHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateTestRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := nocodetest.ValidateSteps(req.Steps, nocodetest.DefaultValidationLimits()); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := &nocodetest.Test{
		Name:        req.Name,
		Description: req.Description,
		BaseURL:     req.BaseURL,
		Steps:       req.Steps,
		Status:      nocodetest.StatusPending,
		CreatedBy:   userID,
	}

	if err := h.tests.Create(r.Context(), t); err != nil {
		if errors.Is(err, nocodetest.ErrInvalidTestName) || errors.Is(err, nocodetest.ErrInvalidBaseURL) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create test")
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// GetByID handles single test retrieval.
func (h *TestHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "test")
	if !ok {
		return
	}

	t, err := h.tests.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, nocodetest.ErrTestNotFound) {
			respondError(w, http.StatusNotFound, "test not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get test")
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// List handles paginated test listing.
func (h *TestHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	tests, err := h.tests.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tests")
		return
	}

	total, err := h.tests.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count tests")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(tests, total, limit, offset))
}

// UpdateTestRequest represents a test update request. Pointer fields are
// applied only when present.
type UpdateTestRequest struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	BaseURL     *string           `json:"base_url,omitempty"`
	Steps       *nocodetest.Steps `json:"steps,omitempty"`
}

// Update handles partial test updates.
func (h *TestHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "test")
	if !ok {
		return
	}

	var req UpdateTestRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var setters []nocodetest.UpdateSetter
	if req.Name != nil {
		setters = append(setters, nocodetest.SetName(*req.Name))
	}
	if req.Description != nil {
		setters = append(setters, nocodetest.SetDescription(*req.Description))
	}
	if req.BaseURL != nil {
		setters = append(setters, nocodetest.SetBaseURL(*req.BaseURL))
	}
	if req.Steps != nil {
		if err := nocodetest.ValidateSteps(*req.Steps, nocodetest.DefaultValidationLimits()); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		setters = append(setters, nocodetest.SetSteps(*req.Steps))
	}
	if len(setters) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	if err := h.tests.Update(r.Context(), id, setters...); err != nil {
		switch {
		case errors.Is(err, nocodetest.ErrTestNotFound):
			respondError(w, http.StatusNotFound, "test not found")
		case errors.Is(err, nocodetest.ErrInvalidTestName), errors.Is(err, nocodetest.ErrInvalidBaseURL):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to update test")
		}
		return
	}

	t, err := h.tests.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get test")
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// Delete handles test deletion.
func (h *TestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "test")
	if !ok {
		return
	}

	if err := h.tests.Delete(r.Context(), id); err != nil {
		if errors.Is(err, nocodetest.ErrTestNotFound) {
			respondError(w, http.StatusNotFound, "test not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete test")
		return
	}

	respondSuccess(w, "test deleted")
}
