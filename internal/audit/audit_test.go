package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxestimator-api/internal/common"
	"github.com/noah-isme/taxestimator-api/internal/obs"
)

type memStore struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	limit   int
	offset  int
}

func (m *memStore) Insert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) ListByActor(_ context.Context, userID string, limit, offset int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit, m.offset = limit, offset
	var out []Entry
	for _, e := range m.entries {
		if e.ActorUserID == userID {
			out = append(out, e)
		}
	}
	return out, m.err
}

func TestServiceRecord(t *testing.T) {
	store := &memStore{}
	svc := Service{Store: store, Enabled: true, SamplingRate: 1}
	userID := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/reminders?source=web", nil)
	req.Header.Set("User-Agent", "tester")
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/reminders"))

	err := svc.Record(req.Context(), Actor{Kind: ActorKindUser, UserID: userID}, "", "", "", req, http.StatusCreated, nil)
	require.NoError(t, err)
	require.Len(t, store.entries, 1)

	got := store.entries[0]
	assert.Equal(t, ActorKindUser, got.ActorKind)
	assert.Equal(t, userID, got.ActorUserID)
	assert.Equal(t, "POST /api/v1/reminders", got.Action)
	assert.Equal(t, "reminders", got.ResourceType)
	assert.Equal(t, "10.0.0.2", got.IP)
	assert.Equal(t, "req-123", got.RequestID)
	assert.Equal(t, http.StatusCreated, got.Status)
	assert.JSONEq(t, `{"query":"source=web"}`, string(got.Metadata))
}

func TestServiceRecordDisabled(t *testing.T) {
	store := &memStore{}
	svc := Service{Store: store}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{}, "", "", "", req, http.StatusOK, nil))
	assert.Empty(t, store.entries)
}

func TestServiceRecordNormalisesActor(t *testing.T) {
	store := &memStore{}
	svc := Service{Store: store, Enabled: true}
	req := httptest.NewRequest(http.MethodDelete, "/x", nil)
	require.NoError(t, svc.Record(req.Context(), Actor{Kind: "robot", UserID: "u"}, "", "", "", req, 0, nil))
	require.Len(t, store.entries, 1)
	assert.Equal(t, ActorKindAnonymous, store.entries[0].ActorKind)
	assert.Empty(t, store.entries[0].ActorUserID)
	assert.Equal(t, http.StatusOK, store.entries[0].Status)
}

func TestServiceRecordRequiresStore(t *testing.T) {
	svc := Service{Enabled: true}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Error(t, svc.Record(req.Context(), Actor{}, "", "", "", req, 200, nil))
	assert.Error(t, Service{Enabled: true, Store: &memStore{}}.Record(context.Background(), Actor{}, "", "", "", nil, 200, nil))
}

func TestBuildResource(t *testing.T) {
	cases := map[string]string{
		"/api/v1/calculations":   "calculations",
		"/api/v1/reminders/{id}": "reminders",
		"/internal/jobs":         "internal.jobs",
		"":                       "unknown",
		"/api/v1/{id}":           "unknown",
	}
	for route, want := range cases {
		assert.Equal(t, want, buildResource("", route), route)
	}
	assert.Equal(t, "calculation", buildResource(" calculation ", "/ignored"))
}

func TestHTTPRecorderMiddleware(t *testing.T) {
	store := &memStore{}
	svc := &Service{Store: store, Enabled: true}
	rec := HTTPRecorder{Service: svc}
	userID := uuid.NewString()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithUserID(req.Context(), userID)))
		})
	})
	r.With(rec.Middleware(HTTPConfig{
		Action:          "reminder.delete",
		ResourceType:    "reminder",
		ResourceIDParam: "id",
		MetadataFunc: func(_ *http.Request, status int) map[string]any {
			return map[string]any{"status": status}
		},
	})).Delete("/reminders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/reminders/abc", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Len(t, store.entries, 1)
	got := store.entries[0]
	assert.Equal(t, "reminder.delete", got.Action)
	assert.Equal(t, "reminder", got.ResourceType)
	assert.Equal(t, "abc", got.ResourceID)
	assert.Equal(t, userID, got.ActorUserID)
	assert.Equal(t, http.StatusNoContent, got.Status)
	assert.JSONEq(t, `{"status":204}`, string(got.Metadata))
}

func TestHTTPRecorderReportsStoreErrors(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	var reported error
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}, OnError: func(err error) { reported = err }}
	h := rec.Middleware(HTTPConfig{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.EqualError(t, reported, "db down")
}

func TestHandlerList(t *testing.T) {
	userID := uuid.NewString()
	store := &memStore{entries: []Entry{
		{ActorKind: ActorKindUser, ActorUserID: userID, Action: "calculation.create"},
		{ActorKind: ActorKindUser, ActorUserID: uuid.NewString(), Action: "calculation.create"},
	}}
	h := Handler{Store: store}

	req := httptest.NewRequest(http.MethodGet, "/audit?page=3&limit=25", nil)
	req = req.WithContext(common.WithUserID(req.Context(), userID))
	rr := httptest.NewRecorder()
	h.List(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 25, store.limit)
	assert.Equal(t, 50, store.offset)
	var payload struct {
		Data []Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)
	assert.Equal(t, "calculation.create", payload.Data[0].Action)
}

func TestHandlerListRequiresUser(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler{Store: &memStore{}}.List(rr, httptest.NewRequest(http.MethodGet, "/audit", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
