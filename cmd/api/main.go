package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/diagnostic-booking-api/internal/api/router"
	"github.com/wolfman30/diagnostic-booking-api/internal/app/bootstrap"
	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
	"github.com/wolfman30/diagnostic-booking-api/internal/bookings"
	"github.com/wolfman30/diagnostic-booking-api/internal/catalog"
	appconfig "github.com/wolfman30/diagnostic-booking-api/internal/config"
	"github.com/wolfman30/diagnostic-booking-api/internal/events"
	httpmiddleware "github.com/wolfman30/diagnostic-booking-api/internal/http/middleware"
	"github.com/wolfman30/diagnostic-booking-api/internal/notify"
	"github.com/wolfman30/diagnostic-booking-api/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking-api/internal/payments"
	"github.com/wolfman30/diagnostic-booking-api/internal/results"
	"github.com/wolfman30/diagnostic-booking-api/internal/users"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

// stores groups the repositories behind one storage mode.
type stores struct {
	users    users.Repository
	catalog  catalog.Repository
	bookings bookings.Repository
	results  results.Repository
	ledger   payments.Ledger
	outbox   *events.OutboxStore
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting diagnostic booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_store", cfg.UseMemoryStore,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewTokenService(cfg.AccessTokenSecret)
	if err != nil {
		logger.Error("ACCESS_TOKEN_SECRET is required", "error", err)
		os.Exit(1)
	}

	pool, err := bootstrap.BuildPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}
	st := buildStores(pool, logger)

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	gateway := payments.NewStripeIntentService(cfg.StripeSecretKey, cfg.PaymentCurrency, logger).
		WithBaseURL(cfg.StripeBaseURL).
		WithDryRun(cfg.StripeDryRun)
	workflow := payments.NewWorkflow(gateway, st.ledger, logger).
		WithMetrics(paymentMetrics).
		WithVelocity(buildVelocity(redisClient, cfg, logger))
	if !cfg.StripeDryRun {
		workflow.WithVerifier(gateway)
	}

	awsClients, err := bootstrap.BuildAWSClients(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	notifier := notify.NewService(buildEmailSender(cfg, awsClients.SES, logger), logger).
		WithSiteURL(cfg.SiteURL)
	if st.outbox != nil {
		notifier.WithRecorder(st.outbox)
	}

	if st.outbox != nil && cfg.PaymentEventsQueueURL != "" {
		publisher := events.NewSQSPublisher(awsClients.SQS, cfg.PaymentEventsQueueURL)
		deliverer := events.NewDeliverer(st.outbox, publisher, logger).WithInterval(cfg.OutboxPollInterval)
		go deliverer.Start(ctx)
		logger.Info("outbox delivery enabled", "queue_url", cfg.PaymentEventsQueueURL)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunEviction(time.Minute, 10*time.Minute, ctx.Done())

	r := router.New(&router.Config{
		Logger:             logger,
		Tokens:             tokens,
		Users:              st.users,
		JWT:                users.NewTokenHandler(tokens, st.users, logger),
		User:               users.NewHandler(st.users, logger),
		Catalog:            catalog.NewHandler(st.catalog, logger),
		Bookings:           bookings.NewHandler(bookings.NewService(st.bookings, st.catalog, logger), logger),
		Payments:           payments.NewHandler(workflow, payments.NewIdempotencyStore(redisClient, cfg.IdempotencyTTL), logger),
		Results:            results.NewHandler(st.results, notifier, logger),
		HTTPMetrics:        httpMetrics,
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func buildStores(pool *pgxpool.Pool, logger *logging.Logger) stores {
	if pool == nil {
		testRepo := catalog.NewInMemoryRepository()
		resultRepo := results.NewInMemoryRepository()
		logger.Warn("using in-memory store; data is lost on restart and outbox events are not recorded")
		return stores{
			users:    users.NewInMemoryRepository(),
			catalog:  testRepo,
			bookings: bookings.NewInMemoryRepository(),
			results:  resultRepo,
			ledger:   payments.NewMemoryLedger(testRepo, resultRepo, logger),
		}
	}
	return stores{
		users:    users.NewPostgresRepository(pool),
		catalog:  catalog.NewPostgresRepository(pool),
		bookings: bookings.NewPostgresRepository(pool),
		results:  results.NewPostgresRepository(pool),
		ledger:   payments.NewPostgresLedger(pool, logger),
		outbox:   events.NewOutboxStore(pool),
	}
}

func buildVelocity(client *redis.Client, cfg *appconfig.Config, logger *logging.Logger) *payments.VelocityChecker {
	return payments.NewVelocityChecker(client, payments.VelocityConfig{
		MaxIntentsPerEmail: cfg.IntentVelocityMax,
		IntentWindow:       cfg.IntentVelocityWindow,
	}, logger)
}

// buildEmailSender prefers SendGrid, then SES, and falls back to a logging stub.
func buildEmailSender(cfg *appconfig.Config, ses *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	from := notify.Sender{Name: cfg.SendGridFromName, ReplyTo: cfg.EmailReplyTo}
	if cfg.SendGridAPIKey != "" && cfg.SendGridFromEmail != "" {
		from.Email = cfg.SendGridFromEmail
		return notify.NewSendGridSender(cfg.SendGridAPIKey, from, logger)
	}
	if cfg.SESFromEmail != "" && ses != nil {
		from.Email = cfg.SESFromEmail
		return notify.NewSESSender(ses, from, logger)
	}
	return notify.NewStubEmailSender(logger)
}
