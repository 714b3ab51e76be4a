package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/diagnostic-booking-api/internal/apperr"
	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

// Handler handles HTTP requests for users
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new users handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

type registerResponse struct {
	Message    string  `json:"message,omitempty"`
	InsertedID *string `json:"insertedId"`
}

// Register handles POST /users. A repeat registration is not an error.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.Create(r.Context(), &req)
	if errors.Is(err, ErrEmailTaken) {
		apperr.WriteJSON(w, http.StatusOK, registerResponse{Message: "User already exists"})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}

	h.logger.Info("user registered", "user_id", user.ID)
	apperr.WriteJSON(w, http.StatusCreated, registerResponse{InsertedID: &user.ID})
}

// List handles GET /users (admin only).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []*User{}
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

// CheckAdmin handles GET /users/admin/{email}. Callers may only ask about themselves.
func (h *Handler) CheckAdmin(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperr.Write(w, h.logger, apperr.New(apperr.KindUnauthorized, ""))
		return
	}
	email := NormalizeEmail(chi.URLParam(r, "email"))
	if email != NormalizeEmail(identity.Email) {
		apperr.Write(w, h.logger, apperr.New(apperr.KindForbidden, ""))
		return
	}

	admin := false
	user, err := h.repo.GetByEmail(r.Context(), email)
	switch {
	case err == nil:
		admin = user.IsAdmin()
	case errors.Is(err, ErrUserNotFound):
	default:
		h.fail(w, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]bool{"admin": admin})
}

// MakeAdmin handles PATCH /users/admin/{id}.
func (h *Handler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.repo.SetRole(r.Context(), id, auth.RoleAdmin)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("user promoted to admin", "user_id", id)
	apperr.WriteJSON(w, http.StatusOK, map[string]any{"modifiedCount": 1, "user": user})
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetStatus handles PATCH /users/status/{id}.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	user, err := h.repo.SetStatus(r.Context(), id, status)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("user status changed", "user_id", id, "status", status)
	apperr.WriteJSON(w, http.StatusOK, map[string]any{"modifiedCount": 1, "user": user})
}

// Delete handles DELETE /users/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("user deleted", "user_id", id)
	apperr.WriteJSON(w, http.StatusOK, map[string]int{"deletedCount": 1})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		err = apperr.Wrap(apperr.KindNotFound, "user not found", err)
	case errors.Is(err, ErrMissingEmail), errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidStatus):
		err = apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	apperr.Write(w, h.logger, err)
}
