package bookings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/diagnostic-booking-api/internal/apperr"
	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
	"github.com/wolfman30/diagnostic-booking-api/internal/catalog"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Create handles POST /bookings. The booking is always made for the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperr.Write(w, h.logger, apperr.New(apperr.KindUnauthorized, ""))
		return
	}
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	booking, err := h.service.Book(r.Context(), identity.Email, &req)
	if err != nil {
		h.fail(w, err)
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, map[string]any{"insertedId": booking.ID, "booking": booking})
}

// ListOwn handles GET /bookings/{email}.
func (h *Handler) ListOwn(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperr.Write(w, h.logger, apperr.New(apperr.KindUnauthorized, ""))
		return
	}
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if !strings.EqualFold(email, identity.Email) {
		apperr.Write(w, h.logger, apperr.New(apperr.KindForbidden, ""))
		return
	}
	list, err := h.service.ListForOwner(r.Context(), email)
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []*Booking{}
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

// Cancel handles PATCH /bookings/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperr.Write(w, h.logger, apperr.New(apperr.KindUnauthorized, ""))
		return
	}
	booking, err := h.service.Cancel(r.Context(), identity.Email, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]any{"modifiedCount": 1, "booking": booking})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookingNotFound):
		err = apperr.Wrap(apperr.KindNotFound, "booking not found", err)
	case errors.Is(err, catalog.ErrTestNotFound):
		err = apperr.Wrap(apperr.KindNotFound, "test not found", err)
	case errors.Is(err, ErrNotOwner):
		err = apperr.Wrap(apperr.KindForbidden, "", err)
	case errors.Is(err, ErrAlreadyCanceled):
		err = apperr.Wrap(apperr.KindConflict, "booking already canceled", err)
	case errors.Is(err, ErrMissingTest):
		err = apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	apperr.Write(w, h.logger, err)
}
