// Package apperr classifies failures into the small set of kinds the HTTP
// layer knows how to render.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

// Kind is a stable failure category.
type Kind string

const (
	KindUnauthorized    Kind = "unauthorized"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindTooManyRequests Kind = "too_many_requests"
	KindUpstreamPayment Kind = "upstream_payment"
	KindPartialCommit   Kind = "partial_commit"
	KindInternal        Kind = "internal"
)

// Error carries a Kind, a client-safe message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf reports the kind of err, KindInternal when unclassified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Status maps a kind onto its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindUpstreamPayment:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var defaultMessages = map[Kind]string{
	KindUnauthorized:    "unauthorized access",
	KindForbidden:       "forbidden access",
	KindNotFound:        "not found",
	KindValidation:      "invalid request",
	KindConflict:        "conflict",
	KindTooManyRequests: "too many requests",
	KindUpstreamPayment: "payment provider error",
	KindPartialCommit:   "payment could not be recorded",
	KindInternal:        "internal server error",
}

// Write renders err as {"message": ...}. Causes are logged, never sent.
func Write(w http.ResponseWriter, logger *logging.Logger, err error) {
	if logger == nil {
		logger = logging.Default()
	}
	kind := KindOf(err)
	message := defaultMessages[kind]
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	status := Status(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", string(kind), "error", err)
		if kind == KindInternal {
			message = defaultMessages[KindInternal]
		}
	}
	WriteMessage(w, status, message)
}

// WriteMessage writes a JSON {"message": ...} body with the given status.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
