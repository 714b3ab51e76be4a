package results

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

type recordingNotifier struct {
	calls []*TestResult
	err   error
}

func (n *recordingNotifier) NotifyReportReady(ctx context.Context, result *TestResult) error {
	n.calls = append(n.calls, result)
	return n.err
}

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func asCaller(r *http.Request, email string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{Email: email, Role: auth.RoleUser}))
}

func TestListOwnIsOwnerOnly(t *testing.T) {
	repo := NewInMemoryRepository()
	_ = repo.Create(context.Background(), &TestResult{Email: "a@x.com", TestID: "t-1"})
	h := NewHandler(repo, nil, nil)

	rec := httptest.NewRecorder()
	req := asCaller(httptest.NewRequest(http.MethodGet, "/testResult/a@x.com", nil), "a@x.com")
	h.ListOwn(rec, withParam(req, "email", "a@x.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []TestResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = httptest.NewRecorder()
	req = asCaller(httptest.NewRequest(http.MethodGet, "/testResult/a@x.com", nil), "b@x.com")
	h.ListOwn(rec, withParam(req, "email", "a@x.com"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAttachReportNotifiesPatient(t *testing.T) {
	repo := NewInMemoryRepository()
	_ = repo.Create(context.Background(), &TestResult{ID: "r-1", Email: "a@x.com", TestID: "t-1"})
	notifier := &recordingNotifier{}
	h := NewHandler(repo, notifier, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/testResult/r-1", bytes.NewBufferString(`{"report":"https://lab/r-1.pdf"}`))
	h.AttachReport(rec, withParam(req, "id", "r-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "a@x.com", notifier.calls[0].Email)
	stored, _ := repo.Get(context.Background(), "r-1")
	assert.Equal(t, StatusComplete, stored.Status)
}

func TestAttachReportNotifierFailureStillSucceeds(t *testing.T) {
	repo := NewInMemoryRepository()
	_ = repo.Create(context.Background(), &TestResult{ID: "r-1", Email: "a@x.com"})
	h := NewHandler(repo, &recordingNotifier{err: errors.New("smtp down")}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/testResult/r-1", bytes.NewBufferString(`{"report":"r.pdf"}`))
	h.AttachReport(rec, withParam(req, "id", "r-1"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAttachReportErrors(t *testing.T) {
	h := NewHandler(NewInMemoryRepository(), nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/testResult/r-1", bytes.NewBufferString(`{"report":"  "}`))
	h.AttachReport(rec, withParam(req, "id", "r-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/testResult/missing", bytes.NewBufferString(`{"report":"r.pdf"}`))
	h.AttachReport(rec, withParam(req, "id", "missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
