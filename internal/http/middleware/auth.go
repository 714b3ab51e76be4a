package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/diagnostic-booking-api/internal/apperr"
	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
	"github.com/wolfman30/diagnostic-booking-api/internal/users"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

// TokenVerifier decodes a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// UserLookup loads the stored user record behind an identity.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
}

// RequireIdentity rejects requests without a valid bearer token and attaches
// the verified identity to the request context otherwise.
func RequireIdentity(verifier TokenVerifier, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || verifier == nil {
				apperr.Write(w, logger, apperr.New(apperr.KindUnauthorized, ""))
				return
			}
			identity, err := verifier.Verify(token)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, auth.ErrExpired) {
					reason = "expired"
				}
				logger.Debug("token rejected", "reason", reason, "path", r.URL.Path)
				apperr.Write(w, logger, apperr.Wrap(apperr.KindUnauthorized, "", err))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin runs after RequireIdentity. The role is read from the stored
// user record, not from the token, and non-admins never reach next.
func RequireAdmin(lookup UserLookup, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				apperr.Write(w, logger, apperr.New(apperr.KindUnauthorized, ""))
				return
			}
			user, err := lookup.GetByEmail(r.Context(), identity.Email)
			if err != nil && !errors.Is(err, users.ErrUserNotFound) {
				apperr.Write(w, logger, err)
				return
			}
			if err != nil || !user.IsAdmin() {
				logger.Warn("admin access denied", "email", identity.Email, "path", r.URL.Path)
				apperr.Write(w, logger, apperr.New(apperr.KindForbidden, ""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
