package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
)

func asUser(r *http.Request, email string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{Email: email, Role: auth.RoleUser}))
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func postJSON(t *testing.T, path string, v any) *http.Request {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
}

func TestHandlerCreateIntent(t *testing.T) {
	f := newWorkflowFixture(t, 1)
	h := NewHandler(f.workflow, nil, nil)

	rec := httptest.NewRecorder()
	h.CreateIntent(rec, asUser(postJSON(t, "/create-payment-intent", map[string]any{"price": 25.5}), "a@b.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp createIntentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "pi_test_secret", resp.ClientSecret)
	assert.Equal(t, int64(2550), f.gateway.calls[0].AmountCents)

	rec = httptest.NewRecorder()
	h.CreateIntent(rec, asUser(postJSON(t, "/create-payment-intent", map[string]any{"amount": 0}), "a@b.com"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.gateway.err = errors.New("down")
	rec = httptest.NewRecorder()
	h.CreateIntent(rec, asUser(postJSON(t, "/create-payment-intent", map[string]any{"amount": 5}), "a@b.com"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = httptest.NewRecorder()
	h.CreateIntent(rec, postJSON(t, "/create-payment-intent", map[string]any{"amount": 5}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerCommit(t *testing.T) {
	f := newWorkflowFixture(t, 1)
	h := NewHandler(f.workflow, nil, nil)

	rec := httptest.NewRecorder()
	h.Commit(rec, asUser(postJSON(t, "/payments", map[string]any{
		"testId": "t-1", "testName": "CBC", "amount": 25.5, "slot": 99, "transactionId": "pi_1",
	}), "a@b.com"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Payment    Payment    `json:"paymentResult"`
		SlotUpdate SlotUpdate `json:"updateSlot"`
		Result     struct {
			ID        string `json:"_id"`
			PaymentID string `json:"paymentId"`
		} `json:"resultInsert"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "a@b.com", body.Payment.Email)
	assert.Equal(t, 0, body.SlotUpdate.Remaining)
	assert.Equal(t, 1, body.SlotUpdate.ModifiedCount)
	assert.NotEmpty(t, body.Result.ID)

	rec = httptest.NewRecorder()
	h.Commit(rec, asUser(postJSON(t, "/payments", map[string]any{"testId": "t-1", "amount": 25.5}), "c@d.com"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.Commit(rec, asUser(postJSON(t, "/payments", map[string]any{"testId": "nope", "amount": 25.5}), "c@d.com"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCommitRejectsOtherEmail(t *testing.T) {
	f := newWorkflowFixture(t, 1)
	h := NewHandler(f.workflow, nil, nil)

	rec := httptest.NewRecorder()
	h.Commit(rec, asUser(postJSON(t, "/payments", map[string]any{
		"email": "victim@b.com", "testId": "t-1", "amount": 25.5,
	}), "a@b.com"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	test, _ := f.catalog.Get(context.Background(), "t-1")
	assert.Equal(t, 1, test.Slot)
}

func TestHandlerCommitIdempotencyReplay(t *testing.T) {
	f := newWorkflowFixture(t, 5)
	client, _ := setupTestRedis(t)
	h := NewHandler(f.workflow, NewIdempotencyStore(client, 0), nil)
	payload := map[string]any{"testId": "t-1", "amount": 25.5}

	send := func() *httptest.ResponseRecorder {
		req := asUser(postJSON(t, "/payments", payload), "a@b.com")
		req.Header.Set(headerIdempotencyKey, "checkout-1")
		rec := httptest.NewRecorder()
		h.Commit(rec, req)
		return rec
	}

	first := send()
	require.Equal(t, http.StatusOK, first.Code)
	second := send()
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(headerReplay))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	test, _ := f.catalog.Get(context.Background(), "t-1")
	assert.Equal(t, 4, test.Slot, "replay must not take another slot")
}

func TestHandlerCommitReleasesKeyOnFailure(t *testing.T) {
	f := newWorkflowFixture(t, 0)
	client, _ := setupTestRedis(t)
	h := NewHandler(f.workflow, NewIdempotencyStore(client, 0), nil)

	for i := 0; i < 2; i++ {
		req := asUser(postJSON(t, "/payments", map[string]any{"testId": "t-1", "amount": 25.5}), "a@b.com")
		req.Header.Set(headerIdempotencyKey, "checkout-2")
		rec := httptest.NewRecorder()
		h.Commit(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Empty(t, rec.Header().Get(headerReplay))
	}
}

func TestHandlerHistoryOwnerOnly(t *testing.T) {
	f := newWorkflowFixture(t, 2)
	h := NewHandler(f.workflow, nil, nil)
	_, err := f.workflow.Commit(context.Background(), &PaymentRequest{Email: "a@b.com", TestID: "t-1", Amount: 10})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.History(rec, withParam(asUser(httptest.NewRequest(http.MethodGet, "/payments/a@b.com", nil), "a@b.com"), "email", "a@b.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Payment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = httptest.NewRecorder()
	h.History(rec, withParam(asUser(httptest.NewRequest(http.MethodGet, "/payments/a@b.com", nil), "x@y.com"), "email", "a@b.com"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
