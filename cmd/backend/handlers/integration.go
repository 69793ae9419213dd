package handlers

import (
	"errors"
	"net/http"

	"github.com/testdeckhq/testdeck/integration"
	"github.com/testdeckhq/testdeck/logger"
)

// IntegrationHandler handles integration configuration requests. Credentials
// are encrypted before they reach the store and never returned.
type IntegrationHandler struct {
	integrations integration.Store
	encryptKey   []byte
	logger       logger.Logger
}

// NewIntegrationHandler creates a new integration handler.
func NewIntegrationHandler(integrations integration.Store, encryptKey []byte, log logger.Logger) *IntegrationHandler {
	return &IntegrationHandler{
		integrations: integrations,
		encryptKey:   encryptKey,
		logger:       log,
	}
}

// CreateIntegrationRequest represents an integration creation request.
type CreateIntegrationRequest struct {
	Name        string                   `json:"name"`
	Provider    integration.ProviderType `json:"provider"`
	Credentials map[string]string        `json:"credentials"`
}

// Create handles integration creation requests.
func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateIntegrationRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Credentials) == 0 {
		respondError(w, http.StatusBadRequest, "credentials are required")
		return
	}

	encrypted, err := integration.EncryptCredentials(h.encryptKey, req.Credentials)
	if err != nil {
		h.logger.Error(r.Context(), "failed to encrypt credentials", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	i := &integration.Integration{
		CreatedBy:            userID,
		Name:                 req.Name,
		Provider:             req.Provider,
		EncryptedCredentials: encrypted,
		IsActive:             true,
	}

	if err := h.integrations.Create(r.Context(), i); err != nil {
		if errors.Is(err, integration.ErrInvalidName) || errors.Is(err, integration.ErrInvalidProvider) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create integration")
		return
	}

	respondJSON(w, http.StatusCreated, i)
}

// GetByID handles single integration retrieval.
func (h *IntegrationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "integration")
	if !ok {
		return
	}

	i, err := h.integrations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, integration.ErrIntegrationNotFound) {
			respondError(w, http.StatusNotFound, "integration not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get integration")
		return
	}

	respondJSON(w, http.StatusOK, i)
}

// List handles paginated integration listing.
func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	integrations, err := h.integrations.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list integrations")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(integrations, len(integrations), limit, offset))
}

// UpdateIntegrationRequest represents an integration update request.
type UpdateIntegrationRequest struct {
	Name        *string           `json:"name,omitempty"`
	IsActive    *bool             `json:"is_active,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

// Update handles partial integration updates. Supplying credentials replaces
// the stored blob wholesale.
func (h *IntegrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "integration")
	if !ok {
		return
	}

	var req UpdateIntegrationRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var setters []integration.UpdateSetter
	if req.Name != nil {
		setters = append(setters, integration.SetName(*req.Name))
	}
	if req.IsActive != nil {
		setters = append(setters, integration.SetIsActive(*req.IsActive))
	}
	if len(req.Credentials) > 0 {
		encrypted, err := integration.EncryptCredentials(h.encryptKey, req.Credentials)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to store credentials")
			return
		}
		setters = append(setters, integration.SetEncryptedCredentials(encrypted))
	}
	if len(setters) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	if err := h.integrations.Update(r.Context(), id, setters...); err != nil {
		switch {
		case errors.Is(err, integration.ErrIntegrationNotFound):
			respondError(w, http.StatusNotFound, "integration not found")
		case errors.Is(err, integration.ErrInvalidName):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to update integration")
		}
		return
	}

	i, err := h.integrations.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get integration")
		return
	}

	respondJSON(w, http.StatusOK, i)
}

// Delete handles integration deletion.
func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "integration")
	if !ok {
		return
	}

	if err := h.integrations.Delete(r.Context(), id); err != nil {
		if errors.Is(err, integration.ErrIntegrationNotFound) {
			respondError(w, http.StatusNotFound, "integration not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete integration")
		return
	}

	respondSuccess(w, "integration deleted")
}
