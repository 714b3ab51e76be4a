package bookings

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
)

func request(method, target, body, caller string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	ctx := req.Context()
	if caller != "" {
		ctx = auth.WithIdentity(ctx, auth.Identity{Email: caller, Role: auth.RoleUser})
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rctx))
}

func TestHandlerBookingFlow(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Create(rec, request(http.MethodPost, "/bookings", `{"testId":"t-1","email":"someone-else@x.com"}`, "a@x.com", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		InsertedID string  `json:"insertedId"`
		Booking    Booking `json:"booking"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "a@x.com", created.Booking.Email)

	rec = httptest.NewRecorder()
	h.ListOwn(rec, request(http.MethodGet, "/bookings/a@x.com", "", "a@x.com", map[string]string{"email": "a@x.com"}))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Booking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = httptest.NewRecorder()
	h.ListOwn(rec, request(http.MethodGet, "/bookings/a@x.com", "", "b@x.com", map[string]string{"email": "a@x.com"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.Cancel(rec, request(http.MethodPatch, "/bookings/x/cancel", "", "b@x.com", map[string]string{"id": created.InsertedID}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.Cancel(rec, request(http.MethodPatch, "/bookings/x/cancel", "", "a@x.com", map[string]string{"id": created.InsertedID}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Cancel(rec, request(http.MethodPatch, "/bookings/x/cancel", "", "a@x.com", map[string]string{"id": created.InsertedID}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerCreateUnknownTest(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Create(rec, request(http.MethodPost, "/bookings", `{"testId":"missing"}`, "a@x.com", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Create(rec, request(http.MethodPost, "/bookings", `{"testId":"t-1"}`, "", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
