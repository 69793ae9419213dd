package handlers

import (
	"errors"
	"net/http"

	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/user"
)

// UserHandler handles user management requests.
type UserHandler struct {
	userStore user.Store
	logger    logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userStore user.Store, log logger.Logger) *UserHandler {
	return &UserHandler{userStore: userStore, logger: log}
}

// List handles paginated user listing.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, err := h.userStore.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(users, len(users), limit, offset))
}

// GetByID handles single user retrieval.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "user")
	if !ok {
		return
	}

	u, err := h.userStore.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	respondJSON(w, http.StatusOK, u)
}

// UpdateUserRequest represents a user update request.
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Update handles partial user updates.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "user")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var setters []user.UpdateSetter
	if req.Email != nil {
		setters = append(setters, user.SetEmail(*req.Email))
	}
	if req.Username != nil {
		setters = append(setters, user.SetUsername(*req.Username))
	}
	if req.Password != nil {
		setters = append(setters, user.SetPassword(*req.Password))
	}
	if len(setters) == 0 {
		respondError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	if err := h.userStore.Update(r.Context(), id, setters...); err != nil {
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, user.ErrDuplicateEmail):
			respondError(w, http.StatusConflict, "email already exists")
		case errors.Is(err, user.ErrInvalidEmail), errors.Is(err, user.ErrInvalidUsername), errors.Is(err, user.ErrPasswordTooShort):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	u, err := h.userStore.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get user")
		return
	}

	respondJSON(w, http.StatusOK, u)
}

// Delete handles user deactivation.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "user")
	if !ok {
		return
	}

	if err := h.userStore.Delete(r.Context(), id); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	respondSuccess(w, "user deleted")
}
