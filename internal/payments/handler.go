package payments

import (
	"bytes"
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

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplay         = "Idempotent-Replay"
)

// Handler exposes the checkout endpoints.
type Handler struct {
	workflow    *Workflow
	idempotency *IdempotencyStore
	logger      *logging.Logger
}

// NewHandler wires the checkout handler. idempotency may be nil.
func NewHandler(workflow *Workflow, idempotency *IdempotencyStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{workflow: workflow, idempotency: idempotency, logger: logger}
}

type createIntentRequest struct {
	Amount *float64 `json:"amount"`
	Price  *float64 `json:"price"`
}

type createIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CreateIntent handles POST /create-payment-intent.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperr.Write(w, h.logger, apperr.New(apperr.KindUnauthorized, ""))
		return
	}
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var amount float64
	switch {
	case req.Amount != nil:
		amount = *req.Amount
	case req.Price != nil:
		amount = *req.Price
	}

	secret, err := h.workflow.CreateIntent(r.Context(), identity.Email, amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, createIntentResponse{ClientSecret: secret})
}

// Commit handles POST /payments. A repeated Idempotency-Key replays the first response.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperr.Write(w, h.logger, apperr.New(apperr.KindUnauthorized, ""))
		return
	}
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		req.Email = identity.Email
	}
	if !strings.EqualFold(strings.TrimSpace(req.Email), identity.Email) {
		apperr.Write(w, h.logger, apperr.New(apperr.KindForbidden, ""))
		return
	}

	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if key != "" && h.idempotency != nil {
		stored, err := h.idempotency.Claim(r.Context(), identity.Email, key)
		switch {
		case errors.Is(err, ErrRequestInFlight):
			h.fail(w, err)
			return
		case err != nil:
			// Redis trouble should not block checkout; the ledger still rejects duplicate transactions.
			h.logger.Warn("idempotency claim failed", "error", err)
			key = ""
		case stored != nil:
			w.Header().Set(headerReplay, "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		}
	} else {
		key = ""
	}

	result, err := h.workflow.Commit(r.Context(), &req)
	if err != nil {
		if key != "" {
			if relErr := h.idempotency.Release(r.Context(), identity.Email, key); relErr != nil {
				h.logger.Warn("idempotency release failed", "error", relErr)
			}
		}
		h.fail(w, err)
		return
	}

	if key != "" {
		var buf bytes.Buffer
		if encErr := json.NewEncoder(&buf).Encode(result); encErr == nil {
			stored := StoredResponse{Status: http.StatusOK, Body: buf.Bytes()}
			if err := h.idempotency.Complete(r.Context(), identity.Email, key, stored); err != nil {
				h.logger.Warn("idempotency complete failed", "error", err)
			}
		}
	}
	apperr.WriteJSON(w, http.StatusOK, result)
}

// History handles GET /payments/{email}.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
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
	list, err := h.workflow.History(r.Context(), email)
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []*Payment{}
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMissingEmail), errors.Is(err, ErrMissingTest):
		err = apperr.Wrap(apperr.KindValidation, err.Error(), err)
	case errors.Is(err, ErrChargeMismatch):
		err = apperr.Wrap(apperr.KindValidation, "payment could not be verified", err)
	case errors.Is(err, catalog.ErrTestNotFound):
		err = apperr.Wrap(apperr.KindNotFound, "test not found", err)
	case errors.Is(err, catalog.ErrSlotUnavailable):
		err = apperr.Wrap(apperr.KindConflict, "no slots available", err)
	case errors.Is(err, ErrDuplicatePayment):
		err = apperr.Wrap(apperr.KindConflict, "payment already recorded", err)
	case errors.Is(err, ErrRequestInFlight):
		err = apperr.Wrap(apperr.KindConflict, "request already in progress", err)
	case errors.Is(err, ErrTooManyIntents):
		err = apperr.Wrap(apperr.KindTooManyRequests, "", err)
	case errors.Is(err, ErrGateway):
		err = apperr.Wrap(apperr.KindUpstreamPayment, "payment provider unavailable", err)
	case errors.Is(err, ErrPartialCommit):
		err = apperr.Wrap(apperr.KindPartialCommit, "payment could not be recorded", err)
	}
	apperr.Write(w, h.logger, err)
}
