package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

type fakeBook struct {
	positions  []domain.Position
	realized   float64
	unrealized float64
}

func (f *fakeBook) Positions() []domain.Position { return f.positions }
func (f *fakeBook) RealizedPnl() float64         { return f.realized }
func (f *fakeBook) UnrealizedPnl() float64       { return f.unrealized }

type fakeExecStore struct {
	results []domain.ExecutionResult
	since   time.Time
}

func (f *fakeExecStore) Insert(_ context.Context, res domain.ExecutionResult) error {
	f.results = append(f.results, res)
	return nil
}

func (f *fakeExecStore) ListSince(_ context.Context, since time.Time) ([]domain.ExecutionResult, error) {
	f.since = since
	return f.results, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := New(Config{Port: 0}, &fakeBook{}, nil, discard())

	rec := get(t, srv.Handler(), "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestPositionsAndPnl(t *testing.T) {
	book := &fakeBook{
		positions:  []domain.Position{{TokenID: "tok-1", BucketLabel: "45-49", Size: 100}},
		realized:   12.5,
		unrealized: -3.25,
	}
	srv := New(Config{Port: 0}, book, nil, discard())

	rec := get(t, srv.Handler(), "/api/positions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var positions []domain.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "tok-1", positions[0].TokenID)

	rec = get(t, srv.Handler(), "/api/pnl", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pnl map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pnl))
	assert.Equal(t, 12.5, pnl["realized"])
	assert.Equal(t, -3.25, pnl["unrealized"])
}

func TestExecutionsWindow(t *testing.T) {
	store := &fakeExecStore{results: []domain.ExecutionResult{{ID: "ex-1"}}}
	srv := New(Config{Port: 0}, &fakeBook{}, store, discard())

	rec := get(t, srv.Handler(), "/api/executions?hours=6", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.WithinDuration(t, time.Now().Add(-6*time.Hour), store.since, time.Minute)

	rec = get(t, srv.Handler(), "/api/executions?hours=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecutionsDisabled(t *testing.T) {
	srv := New(Config{Port: 0}, &fakeBook{}, nil, discard())

	rec := get(t, srv.Handler(), "/api/executions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthGuardsEverythingButHealth(t *testing.T) {
	srv := New(Config{Port: 0, APIKey: "sekrit"}, &fakeBook{}, nil, discard())

	rec := get(t, srv.Handler(), "/api/positions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, srv.Handler(), "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv.Handler(), "/api/positions", map[string]string{"X-API-Key": "sekrit"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := New(Config{Port: 0}, &fakeBook{}, nil, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
