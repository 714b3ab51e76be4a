package payments

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/diagnostic-booking-api/internal/catalog"
	"github.com/wolfman30/diagnostic-booking-api/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking-api/internal/results"
)

type stubGateway struct {
	mu      sync.Mutex
	calls   []IntentParams
	err     error
	intents map[string]*Intent
}

func (g *stubGateway) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, params)
	if g.err != nil {
		return nil, g.err
	}
	return &Intent{ID: "pi_test", ClientSecret: "pi_test_secret", Amount: params.AmountCents, Currency: "usd"}, nil
}

func (g *stubGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	if intent, ok := g.intents[id]; ok {
		return intent, nil
	}
	return nil, errors.New("no such intent")
}

type workflowFixture struct {
	workflow *Workflow
	gateway  *stubGateway
	catalog  *catalog.InMemoryRepository
	results  *results.InMemoryRepository
	ledger   *MemoryLedger
	registry *prometheus.Registry
}

func newWorkflowFixture(t *testing.T, slot int) *workflowFixture {
	t.Helper()
	cat := seedCatalog(t, slot)
	res := results.NewInMemoryRepository()
	ledger := NewMemoryLedger(cat, res, nil)
	gateway := &stubGateway{}
	reg := prometheus.NewRegistry()
	wf := NewWorkflow(gateway, ledger, nil).WithMetrics(metrics.NewPaymentMetrics(reg))
	return &workflowFixture{workflow: wf, gateway: gateway, catalog: cat, results: res, ledger: ledger, registry: reg}
}

func TestWorkflowCreateIntentConvertsToCents(t *testing.T) {
	f := newWorkflowFixture(t, 1)

	secret, err := f.workflow.CreateIntent(context.Background(), "A@B.com", 25.50)
	require.NoError(t, err)
	assert.Equal(t, "pi_test_secret", secret)
	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, int64(2550), f.gateway.calls[0].AmountCents)
	assert.Equal(t, "a@b.com", f.gateway.calls[0].Email)
}

func TestWorkflowCreateIntentRejectsBadAmount(t *testing.T) {
	f := newWorkflowFixture(t, 1)

	for _, amount := range []float64{0, -5, 0.001, 1e20, math.Inf(1), math.NaN()} {
		_, err := f.workflow.CreateIntent(context.Background(), "a@b.com", amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %v", amount)
	}
	assert.Empty(t, f.gateway.calls)
}

func TestWorkflowCreateIntentGatewayFailure(t *testing.T) {
	f := newWorkflowFixture(t, 1)
	f.gateway.err = errors.New("connection refused")

	_, err := f.workflow.CreateIntent(context.Background(), "a@b.com", 10)
	require.ErrorIs(t, err, ErrGateway)
	assert.Len(t, f.gateway.calls, 1, "gateway errors are not retried")
}

func TestWorkflowCreateIntentVelocity(t *testing.T) {
	f := newWorkflowFixture(t, 1)
	client, _ := setupTestRedis(t)
	f.workflow.WithVelocity(NewVelocityChecker(client, VelocityConfig{MaxIntentsPerEmail: 2}, nil))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.workflow.CreateIntent(ctx, "a@b.com", 10)
		require.NoError(t, err)
	}
	_, err := f.workflow.CreateIntent(ctx, "a@b.com", 10)
	assert.ErrorIs(t, err, ErrTooManyIntents)
	assert.Len(t, f.gateway.calls, 2)
}

func TestWorkflowCommitTakesLastSlot(t *testing.T) {
	f := newWorkflowFixture(t, 1)
	ctx := context.Background()
	stale := 7

	res, err := f.workflow.Commit(ctx, &PaymentRequest{
		Email:         "Pat@Example.com",
		TestID:        "t-1",
		TestName:      "CBC",
		Amount:        25.50,
		Slot:          &stale,
		TransactionID: "pi_1",
		Date:          "2026-10-20",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.SlotUpdate.Remaining)
	assert.Equal(t, int64(2550), res.Payment.AmountCents)
	assert.Equal(t, "pat@example.com", res.Payment.Email)
	assert.Equal(t, res.Payment.ID, res.Result.PaymentID)
	assert.Equal(t, results.StatusPending, res.Result.Status)

	test, err := f.catalog.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 0, test.Slot, "client slot must be ignored")

	payments, _ := f.workflow.History(ctx, "pat@example.com")
	assert.Len(t, payments, 1)
	list, _ := f.results.ListByEmail(ctx, "pat@example.com")
	assert.Len(t, list, 1)

	_, err = f.workflow.Commit(ctx, &PaymentRequest{Email: "other@example.com", TestID: "t-1", Amount: 25.50})
	assert.ErrorIs(t, err, catalog.ErrSlotUnavailable)

	assert.Equal(t, 1.0, commitCount(t, f.registry, "committed"))
	assert.Equal(t, 1.0, commitCount(t, f.registry, "slot_unavailable"))
}

func TestWorkflowCommitValidates(t *testing.T) {
	f := newWorkflowFixture(t, 1)
	ctx := context.Background()

	_, err := f.workflow.Commit(ctx, &PaymentRequest{TestID: "t-1", Amount: 10})
	assert.ErrorIs(t, err, ErrMissingEmail)
	_, err = f.workflow.Commit(ctx, &PaymentRequest{Email: "a@b.com", Amount: 10})
	assert.ErrorIs(t, err, ErrMissingTest)
	for _, amount := range []float64{0, -1, 0.001, 0.009, 1e20, MaxChargeAmount + 1, math.Inf(1), math.NaN()} {
		_, err = f.workflow.Commit(ctx, &PaymentRequest{Email: "a@b.com", TestID: "t-1", Amount: amount})
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %v", amount)
	}

	test, _ := f.catalog.Get(ctx, "t-1")
	assert.Equal(t, 1, test.Slot, "rejected amounts must not consume the slot")
	payments, _ := f.workflow.History(ctx, "a@b.com")
	assert.Empty(t, payments)
}

func TestChargeCents(t *testing.T) {
	cents, err := ChargeCents(0.01)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cents)

	cents, err = ChargeCents(MaxChargeAmount)
	require.NoError(t, err)
	assert.Equal(t, int64(99999999), cents)

	_, err = ChargeCents(0.004)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWorkflowCommitVerifiesCharge(t *testing.T) {
	f := newWorkflowFixture(t, 3)
	f.gateway.intents = map[string]*Intent{
		"pi_ok":      {ID: "pi_ok", Amount: 2550, Status: "succeeded", Metadata: map[string]string{"email": "A@b.com"}},
		"pi_short":   {ID: "pi_short", Amount: 100, Status: "succeeded", Metadata: map[string]string{"email": "a@b.com"}},
		"pi_pending": {ID: "pi_pending", Amount: 2550, Status: "requires_payment_method", Metadata: map[string]string{"email": "a@b.com"}},
		"pi_other":   {ID: "pi_other", Amount: 2550, Status: "succeeded", Metadata: map[string]string{"email": "victim@b.com"}},
		"pi_no_meta": {ID: "pi_no_meta", Amount: 2550, Status: "succeeded"},
	}
	f.workflow.WithVerifier(f.gateway)
	ctx := context.Background()
	req := func(txn string) *PaymentRequest {
		return &PaymentRequest{Email: "a@b.com", TestID: "t-1", Amount: 25.50, TransactionID: txn}
	}

	_, err := f.workflow.Commit(ctx, req(""))
	assert.ErrorIs(t, err, ErrChargeMismatch)
	_, err = f.workflow.Commit(ctx, req("pi_short"))
	assert.ErrorIs(t, err, ErrChargeMismatch)
	_, err = f.workflow.Commit(ctx, req("pi_pending"))
	assert.ErrorIs(t, err, ErrChargeMismatch)
	_, err = f.workflow.Commit(ctx, req("pi_other"))
	assert.ErrorIs(t, err, ErrChargeMismatch, "another customer's intent")
	_, err = f.workflow.Commit(ctx, req("pi_no_meta"))
	assert.ErrorIs(t, err, ErrChargeMismatch)
	_, err = f.workflow.Commit(ctx, req("pi_missing"))
	assert.ErrorIs(t, err, ErrGateway)

	test, _ := f.catalog.Get(ctx, "t-1")
	assert.Equal(t, 3, test.Slot, "unverified commits must not consume slots")

	_, err = f.workflow.Commit(ctx, req("pi_ok"))
	require.NoError(t, err)
	_, err = f.workflow.Commit(ctx, req("pi_ok"))
	assert.ErrorIs(t, err, ErrDuplicatePayment)
}

func commitCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "diagnostic_payments_commits_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
