package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/wolfman30/diagnostic-booking-api/internal/apperr"
	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

// TokenIssuer signs identity tokens.
type TokenIssuer interface {
	Issue(identity auth.Identity) (string, error)
}

// TokenHandler serves POST /jwt.
type TokenHandler struct {
	issuer TokenIssuer
	repo   Repository
	logger *logging.Logger
}

func NewTokenHandler(issuer TokenIssuer, repo Repository, logger *logging.Logger) *TokenHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &TokenHandler{issuer: issuer, repo: repo, logger: logger}
}

type tokenRequest struct {
	Email string `json:"email"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Issue signs a one-hour token for the posted email. The role claim mirrors the
// stored user; unknown emails get the user role.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := NormalizeEmail(req.Email)
	if email == "" {
		apperr.Write(w, h.logger, apperr.Wrap(apperr.KindValidation, ErrMissingEmail.Error(), ErrMissingEmail))
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		apperr.Write(w, h.logger, apperr.Wrap(apperr.KindValidation, ErrInvalidEmail.Error(), ErrInvalidEmail))
		return
	}

	role := auth.RoleUser
	if h.repo != nil {
		user, err := h.repo.GetByEmail(r.Context(), email)
		switch {
		case err == nil:
			role = user.Role
		case errors.Is(err, ErrUserNotFound):
		default:
			apperr.Write(w, h.logger, err)
			return
		}
	}

	token, err := h.issuer.Issue(auth.Identity{Email: email, Role: role})
	if err != nil {
		apperr.Write(w, h.logger, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, tokenResponse{Token: token})
}
