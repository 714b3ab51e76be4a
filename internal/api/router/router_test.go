package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
	"github.com/wolfman30/diagnostic-booking-api/internal/bookings"
	"github.com/wolfman30/diagnostic-booking-api/internal/catalog"
	"github.com/wolfman30/diagnostic-booking-api/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking-api/internal/payments"
	"github.com/wolfman30/diagnostic-booking-api/internal/results"
	"github.com/wolfman30/diagnostic-booking-api/internal/users"
	"github.com/wolfman30/diagnostic-booking-api/pkg/logging"
)

type testServer struct {
	handler http.Handler
	tokens  *auth.TokenService
	users   *users.InMemoryRepository
	catalog *catalog.InMemoryRepository
	results *results.InMemoryRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logging.NewWithWriter("error", io.Discard)

	tokens, err := auth.NewTokenService("router-test-secret")
	require.NoError(t, err)
	userRepo := users.NewInMemoryRepository()
	userRepo.Put(users.User{ID: "u-admin", Email: "admin@lab.org", Role: auth.RoleAdmin, Status: users.StatusActive})
	testRepo := catalog.NewInMemoryRepository()
	resultRepo := results.NewInMemoryRepository()

	gateway := payments.NewStripeIntentService("", "usd", logger).WithDryRun(true)
	ledger := payments.NewMemoryLedger(testRepo, resultRepo, logger)
	workflow := payments.NewWorkflow(gateway, ledger, logger)

	reg := prometheus.NewRegistry()
	cfg := &Config{
		Logger:         logger,
		Tokens:         tokens,
		Users:          userRepo,
		JWT:            users.NewTokenHandler(tokens, userRepo, logger),
		User:           users.NewHandler(userRepo, logger),
		Catalog:        catalog.NewHandler(testRepo, logger),
		Bookings:       bookings.NewHandler(bookings.NewService(bookings.NewInMemoryRepository(), testRepo, logger), logger),
		Payments:       payments.NewHandler(workflow, nil, logger),
		Results:        results.NewHandler(resultRepo, nil, logger),
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	return &testServer{handler: New(cfg), tokens: tokens, users: userRepo, catalog: testRepo, results: resultRepo}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T, email string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/jwt", "", map[string]string{"email": email})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func TestRouterPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "My server is running now", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/tests", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "diagnostic_http_requests_total")
}

func TestRouterRejectsMissingAndBadTokens(t *testing.T) {
	s := newTestServer(t)

	for _, token := range []string{"", "garbage"} {
		rec := s.do(t, http.MethodPost, "/payments", token, map[string]any{"testId": "t-1", "amount": 10})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"message":"unauthorized access"}`, rec.Body.String())
	}
}

func TestRouterCheckAdminForRegularUser(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/users", "", map[string]string{"name": "A", "email": "a@x.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	token := s.token(t, "a@x.com")
	rec = s.do(t, http.MethodGet, "/users/admin/a@x.com", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"admin":false}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/users/admin/admin@lab.org", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterAdminGuardBlocksMutation(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "a@x.com")

	rec := s.do(t, http.MethodPost, "/tests", token, map[string]any{"name": "CBC", "price": 25.5, "slot": 3})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"message":"forbidden access"}`, rec.Body.String())

	list, err := s.catalog.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, list, "guarded handler must not run")
}

func TestRouterCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin@lab.org")
	patient := s.token(t, "pat@example.com")

	rec := s.do(t, http.MethodPost, "/tests", admin, map[string]any{"name": "CBC", "price": 25.5, "slot": 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		InsertedID string `json:"insertedId"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = s.do(t, http.MethodPost, "/create-payment-intent", patient, map[string]any{"amount": 25.5})
	require.Equal(t, http.StatusOK, rec.Code)
	var intent map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&intent))
	assert.NotEmpty(t, intent["clientSecret"])

	rec = s.do(t, http.MethodPost, "/payments", patient, map[string]any{
		"testId": created.InsertedID, "testName": "CBC", "amount": 25.5, "slot": 1, "transactionId": "pi_dry",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var commit struct {
		Payment struct {
			ID          string `json:"_id"`
			AmountCents int64  `json:"amountCents"`
		} `json:"paymentResult"`
		SlotUpdate struct {
			Remaining int `json:"remaining"`
		} `json:"updateSlot"`
		Result struct {
			ID     string `json:"_id"`
			Status string `json:"status"`
		} `json:"resultInsert"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&commit))
	assert.Equal(t, int64(2550), commit.Payment.AmountCents)
	assert.Equal(t, 0, commit.SlotUpdate.Remaining)
	assert.Equal(t, "pending", commit.Result.Status)

	test, err := s.catalog.Get(t.Context(), created.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, 0, test.Slot)

	rec = s.do(t, http.MethodPost, "/payments", s.token(t, "late@example.com"), map[string]any{
		"testId": created.InsertedID, "amount": 25.5,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/payments/pat@example.com", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	assert.Len(t, history, 1)

	rec = s.do(t, http.MethodPatch, "/testResult/"+commit.Result.ID, patient, map[string]string{"report": "https://r/1.pdf"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = s.do(t, http.MethodPatch, "/testResult/"+commit.Result.ID, admin, map[string]string{"report": "https://r/1.pdf"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/testResult/pat@example.com", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "complete", list[0]["status"])
	assert.Equal(t, "https://r/1.pdf", list[0]["report"])
}

func TestRouterBookingOwnership(t *testing.T) {
	s := newTestServer(t)
	s.catalog.Put(catalog.Test{ID: "t-1", Name: "CBC", Price: 25.5, Slot: 2})
	patient := s.token(t, "pat@example.com")

	rec := s.do(t, http.MethodPost, "/bookings", patient, map[string]string{"testId": "t-1", "date": "2026-10-20"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/bookings/pat@example.com", patient, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/bookings/pat@example.com", s.token(t, "other@example.com"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
