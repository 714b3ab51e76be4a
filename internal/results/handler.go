package results

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/diagnostic-booking-api/internal/apperr"
	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

var resultsTracer = otel.Tracer("diagnostic.internal.results")

// ReportNotifier tells a patient their report is ready.
type ReportNotifier interface {
	NotifyReportReady(ctx context.Context, result *TestResult) error
}

// Handler serves patient results and staff report uploads.
type Handler struct {
	repo     Repository
	notifier ReportNotifier
	logger   *logging.Logger
}

// NewHandler creates a results handler. notifier may be nil.
func NewHandler(repo Repository, notifier ReportNotifier, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, notifier: notifier, logger: logger}
}

// ListOwn handles GET /testResult/{email}.
func (h *Handler) ListOwn(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		apperr.Write(w, h.logger, apperr.New(apperr.KindUnauthorized, ""))
		return
	}
	email := chi.URLParam(r, "email")
	if !strings.EqualFold(strings.TrimSpace(email), identity.Email) {
		apperr.Write(w, h.logger, apperr.New(apperr.KindForbidden, ""))
		return
	}
	list, err := h.repo.ListByEmail(r.Context(), email)
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*TestResult{}
	}
	apperr.WriteJSON(w, http.StatusOK, list)
}

// AttachReport handles PATCH /testResult/{id} (admin only).
func (h *Handler) AttachReport(w http.ResponseWriter, r *http.Request) {
	ctx, span := resultsTracer.Start(r.Context(), "results.attach_report")
	defer span.End()

	var req AttachReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		apperr.Write(w, h.logger, apperr.Wrap(apperr.KindValidation, err.Error(), err))
		return
	}

	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("diagnostic.result_id", id))
	result, err := h.repo.AttachReport(ctx, id, req.Report)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, ErrResultNotFound):
			err = apperr.Wrap(apperr.KindNotFound, "result not found", err)
		case errors.Is(err, ErrResultCanceled):
			err = apperr.Wrap(apperr.KindConflict, "result was canceled", err)
		}
		apperr.Write(w, h.logger, err)
		return
	}
	h.logger.Info("report attached", "result_id", id, "test_id", result.TestID)

	if h.notifier != nil {
		if err := h.notifier.NotifyReportReady(ctx, result); err != nil {
			span.RecordError(err)
			h.logger.Warn("report notification failed", "error", err, "result_id", id)
		}
	}
	apperr.WriteJSON(w, http.StatusOK, map[string]any{"modifiedCount": 1, "result": result})
}
