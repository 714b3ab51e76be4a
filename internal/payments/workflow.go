package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/diagnostic-booking-api/internal/catalog"
	"github.com/wolfman30/diagnostic-booking-api/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking-api/internal/results"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

var paymentsTracer = otel.Tracer("diagnostic.internal.payments")

// IntentCreator opens a card payment intent with the gateway.
type IntentCreator interface {
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
}

// IntentVerifier loads a confirmed intent so commits can be checked against it.
type IntentVerifier interface {
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// Workflow creates payment intents and commits confirmed checkouts.
type Workflow struct {
	gateway  IntentCreator
	verifier IntentVerifier
	ledger   Ledger
	velocity *VelocityChecker
	metrics  *metrics.PaymentMetrics
	logger   *logging.Logger
	now      func() time.Time
}

func NewWorkflow(gateway IntentCreator, ledger Ledger, logger *logging.Logger) *Workflow {
	if gateway == nil {
		panic("payments: gateway required")
	}
	if ledger == nil {
		panic("payments: ledger required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflow{
		gateway: gateway,
		ledger:  ledger,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithVerifier requires every commit to reference a succeeded intent for the same amount.
func (w *Workflow) WithVerifier(v IntentVerifier) *Workflow {
	w.verifier = v
	return w
}

func (w *Workflow) WithVelocity(v *VelocityChecker) *Workflow {
	w.velocity = v
	return w
}

func (w *Workflow) WithMetrics(m *metrics.PaymentMetrics) *Workflow {
	w.metrics = m
	return w
}

// CreateIntent converts amount to minor units and returns the gateway client secret.
// Gateway failures are returned as ErrGateway and never retried.
func (w *Workflow) CreateIntent(ctx context.Context, email string, amount float64) (string, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.create_intent")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	cents, err := ChargeCents(amount)
	if err != nil {
		w.metrics.ObserveIntent("invalid")
		return "", err
	}
	span.SetAttributes(attribute.Int64("diagnostic.amount_cents", cents))

	check, err := w.velocity.CheckIntent(ctx, email)
	if err == nil && !check.Allowed {
		w.metrics.ObserveIntent("throttled")
		return "", ErrTooManyIntents
	}

	intent, err := w.gateway.CreateIntent(ctx, IntentParams{AmountCents: cents, Email: email})
	if err != nil {
		span.RecordError(err)
		w.metrics.ObserveIntent("gateway_error")
		w.logger.Error("payment intent failed", "error", err, "amount_cents", cents)
		if !errors.Is(err, ErrGateway) {
			err = fmt.Errorf("%w: %v", ErrGateway, err)
		}
		return "", err
	}
	w.metrics.ObserveIntent("created")
	w.logger.Info("payment intent created", "intent_id", intent.ID, "amount_cents", cents)
	return intent.ClientSecret, nil
}

// Commit records a confirmed checkout. The slot is decremented by the ledger;
// any client-supplied slot value is only compared for logging.
func (w *Workflow) Commit(ctx context.Context, req *PaymentRequest) (*CommitResult, error) {
	start := w.now()
	ctx, span := paymentsTracer.Start(ctx, "payments.commit")
	defer span.End()

	if err := req.Validate(); err != nil {
		w.observeCommit("invalid", start)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("diagnostic.test_id", req.TestID),
		attribute.String("diagnostic.transaction_id", req.TransactionID),
	)
	cents := ToMinorUnits(req.Amount)

	if err := w.verifyCharge(ctx, req, cents); err != nil {
		span.RecordError(err)
		w.observeCommit("unverified", start)
		return nil, err
	}

	now := w.now()
	payment := &Payment{
		ID:            uuid.New().String(),
		Email:         req.Email,
		TestID:        req.TestID,
		TestName:      req.TestName,
		Amount:        req.Amount,
		AmountCents:   cents,
		TransactionID: req.TransactionID,
		Date:          req.Date,
		CreatedAt:     now,
	}
	result := &results.TestResult{
		ID:        uuid.New().String(),
		Email:     req.Email,
		TestID:    req.TestID,
		TestName:  req.TestName,
		PaymentID: payment.ID,
		Date:      req.Date,
		Status:    results.StatusPending,
		CreatedAt: now,
	}

	update, err := w.ledger.Commit(ctx, payment, result)
	if err != nil {
		span.RecordError(err)
		outcome := commitOutcome(err)
		w.observeCommit(outcome, start)
		if outcome == "partial" || outcome == "error" {
			w.logger.Error("payment commit failed", "error", err, "test_id", req.TestID)
		} else {
			w.logger.Info("payment commit rejected", "reason", outcome, "test_id", req.TestID)
		}
		return nil, err
	}

	if req.Slot != nil && *req.Slot != update.Remaining {
		w.logger.Warn("client slot disagrees with ledger", "test_id", req.TestID, "client_slot", *req.Slot, "slot_remaining", update.Remaining)
	}
	w.observeCommit("committed", start)
	w.logger.Info("payment committed", "payment_id", payment.ID, "result_id", result.ID, "test_id", req.TestID, "slot_remaining", update.Remaining)
	return &CommitResult{Payment: payment, SlotUpdate: update, Result: result}, nil
}

// History lists a caller's payments, newest first.
func (w *Workflow) History(ctx context.Context, email string) ([]*Payment, error) {
	return w.ledger.ListByEmail(ctx, email)
}

func (w *Workflow) verifyCharge(ctx context.Context, req *PaymentRequest, cents int64) error {
	if w.verifier == nil {
		return nil
	}
	if req.TransactionID == "" {
		return fmt.Errorf("%w: transactionId is required", ErrChargeMismatch)
	}
	intent, err := w.verifier.RetrieveIntent(ctx, req.TransactionID)
	if err != nil {
		if !errors.Is(err, ErrGateway) {
			err = fmt.Errorf("%w: %v", ErrGateway, err)
		}
		return err
	}
	if intent.Status != "succeeded" {
		return fmt.Errorf("%w: intent status %s", ErrChargeMismatch, intent.Status)
	}
	if intent.Amount != cents {
		return fmt.Errorf("%w: charged %d, submitted %d", ErrChargeMismatch, intent.Amount, cents)
	}
	// Intents are opened with the caller's email in metadata; another caller's
	// succeeded intent must not book for this one.
	if !strings.EqualFold(intent.Metadata[metadataEmail], req.Email) {
		return fmt.Errorf("%w: intent belongs to another customer", ErrChargeMismatch)
	}
	return nil
}

func (w *Workflow) observeCommit(outcome string, start time.Time) {
	w.metrics.ObserveCommit(outcome, w.now().Sub(start).Seconds())
}

func commitOutcome(err error) string {
	switch {
	case errors.Is(err, catalog.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, catalog.ErrTestNotFound):
		return "test_not_found"
	case errors.Is(err, ErrDuplicatePayment):
		return "duplicate"
	case errors.Is(err, ErrPartialCommit):
		return "partial"
	default:
		return "error"
	}
}
