package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/diagnostic-booking-api/internal/apperr"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

// Handler serves the test catalog.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /tests.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tests, err := h.repo.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if tests == nil {
		tests = []*Test{}
	}
	apperr.WriteJSON(w, http.StatusOK, tests)
}

// Get handles GET /tests/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	test, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, test)
}

// Create handles POST /tests (admin only).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	test, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("test created", "test_id", test.ID, "slot", test.Slot)
	apperr.WriteJSON(w, http.StatusCreated, map[string]any{"insertedId": test.ID, "test": test})
}

// Update handles PATCH /tests/{id} (admin only).
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	test, err := h.repo.Update(r.Context(), id, &req)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("test updated", "test_id", id)
	apperr.WriteJSON(w, http.StatusOK, map[string]any{"modifiedCount": 1, "test": test})
}

// Delete handles DELETE /tests/{id} (admin only).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("test deleted", "test_id", id)
	apperr.WriteJSON(w, http.StatusOK, map[string]int{"deletedCount": 1})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTestNotFound):
		err = apperr.Wrap(apperr.KindNotFound, "test not found", err)
	case errors.Is(err, ErrMissingName), errors.Is(err, ErrInvalidPrice), errors.Is(err, ErrNegativeSlot):
		err = apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	apperr.Write(w, h.logger, err)
}
