package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/diagnostic-booking-api/internal/apperr"
	"github.com/wolfman30/diagnostic-booking-api/internal/bookings"
	"github.com/wolfman30/diagnostic-booking-api/internal/catalog"
	httpmiddleware "github.com/wolfman30/diagnostic-booking-api/internal/http/middleware"
	"github.com/wolfman30/diagnostic-booking-api/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking-api/internal/payments"
	"github.com/wolfman30/diagnostic-booking-api/internal/results"
	"github.com/wolfman30/diagnostic-booking-api/internal/users"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

const banner = "My server is running now"

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	Tokens   httpmiddleware.TokenVerifier
	Users    httpmiddleware.UserLookup
	JWT      *users.TokenHandler
	User     *users.Handler
	Catalog  *catalog.Handler
	Bookings *bookings.Handler
	Payments *payments.Handler
	Results  *results.Handler

	HTTPMetrics        *metrics.HTTPMetrics
	MetricsHandler     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(httpmiddleware.Metrics(cfg.HTTPMetrics))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	requireIdentity := httpmiddleware.RequireIdentity(cfg.Tokens, logger)
	requireAdmin := httpmiddleware.RequireAdmin(cfg.Users, logger)
	rateLimit := httpmiddleware.RateLimit(cfg.RateLimiter)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteMessage(w, http.StatusNotFound, "not found")
	})

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Use(rateLimit)
		public.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(banner))
		})
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			apperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.JWT != nil {
			public.Post("/jwt", cfg.JWT.Issue)
		}
		if cfg.User != nil {
			public.Post("/users", cfg.User.Register)
		}
		if cfg.Catalog != nil {
			public.Get("/tests", cfg.Catalog.List)
			public.Get("/tests/{id}", cfg.Catalog.Get)
		}
	})

	// Authenticated endpoints; limits are keyed by caller email here.
	r.Group(func(authed chi.Router) {
		authed.Use(requireIdentity)
		authed.Use(rateLimit)

		if cfg.User != nil {
			authed.Get("/users/admin/{email}", cfg.User.CheckAdmin)
		}
		if cfg.Bookings != nil {
			authed.Post("/bookings", cfg.Bookings.Create)
			authed.Get("/bookings/{email}", cfg.Bookings.ListOwn)
			authed.Patch("/bookings/{id}/cancel", cfg.Bookings.Cancel)
		}
		if cfg.Payments != nil {
			authed.Post("/create-payment-intent", cfg.Payments.CreateIntent)
			authed.Post("/payments", cfg.Payments.Commit)
			authed.Get("/payments/{email}", cfg.Payments.History)
		}
		if cfg.Results != nil {
			authed.Get("/testResult/{email}", cfg.Results.ListOwn)
		}

		// Admin endpoints; RequireAdmin short-circuits before any handler runs.
		authed.Group(func(admin chi.Router) {
			admin.Use(requireAdmin)
			if cfg.User != nil {
				admin.Get("/users", cfg.User.List)
				admin.Patch("/users/admin/{id}", cfg.User.MakeAdmin)
				admin.Patch("/users/status/{id}", cfg.User.SetStatus)
				admin.Delete("/users/{id}", cfg.User.Delete)
			}
			if cfg.Catalog != nil {
				admin.Post("/tests", cfg.Catalog.Create)
				admin.Patch("/tests/{id}", cfg.Catalog.Update)
				admin.Delete("/tests/{id}", cfg.Catalog.Delete)
			}
			if cfg.Results != nil {
				admin.Patch("/testResult/{id}", cfg.Results.AttachReport)
			}
		})
	})

	return r
}
