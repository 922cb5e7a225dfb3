package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/metrics"
	"github.com/JakeFAU/review-crawler/internal/progress"
	"github.com/JakeFAU/review-crawler/internal/progress/sinks"
	"github.com/JakeFAU/review-crawler/internal/storage/memory"
	"github.com/JakeFAU/review-crawler/internal/store"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(Options{}), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ReadyzReflectsCheck(t *testing.T) {
	t.Parallel()

	ready := newTestServer(Options{Ready: func(context.Context) error { return nil }})
	require.Equal(t, http.StatusOK, serve(t, ready, "/readyz").Code)

	notReady := newTestServer(Options{Ready: func(context.Context) error { return errors.New("db down") }})
	require.Equal(t, http.StatusServiceUnavailable, serve(t, notReady, "/readyz").Code)
}

func TestServer_MetricsServesRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := sinks.NewPrometheusSink(reg)
	require.NoError(t, err)
	require.NotNil(t, sink)
	httpMetrics, err := metrics.NewHTTP(reg)
	require.NoError(t, err)

	server := newTestServer(Options{Gatherer: reg, HTTPMetrics: httpMetrics})
	serve(t, server, "/healthz")
	rec := serve(t, server, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "reviews_sessions_running")
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_SessionStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusServiceUnavailable, serve(t, newTestServer(Options{}), "/v1/session").Code)

	status := sinks.NewStatusSink()
	server := newTestServer(Options{Status: status})
	require.Equal(t, http.StatusNotFound, serve(t, server, "/v1/session").Code)

	runID := uuid.New()
	start := progress.Event{
		RunID:      progress.UUIDToBytes(runID),
		TS:         time.Now(),
		Stage:      progress.StageSessionStart,
		Source:     "reviews.example.com",
		SnapshotID: "acme_reviews",
	}
	require.NoError(t, status.Consume(context.Background(), []progress.Event{start}))

	rec := serve(t, server, "/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Session sinks.SessionStatus `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, runID.String(), body.Session.RunID)
	require.Equal(t, sinks.StateRunning, body.Session.State)
}

func TestServer_RunsRoutes(t *testing.T) {
	t.Parallel()

	repo := memory.NewRunStore()
	runID := uuid.New()
	require.NoError(t, repo.StartRun(context.Background(), store.Run{
		ID:         runID,
		Source:     "reviews.example.com",
		SnapshotID: "acme_reviews",
		StartedAt:  time.Now(),
	}))
	server := newTestServer(Options{Runs: repo})

	rec := serve(t, server, "/v1/runs/"+runID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "acme_reviews")

	rec = serve(t, server, "/v1/runs?status=running")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), runID.String())

	require.Equal(t, http.StatusNotFound, serve(t, server, "/v1/runs/"+uuid.NewString()).Code)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	server := newTestServer(Options{APIKey: "secret", Runs: memory.NewRunStore()})

	require.Equal(t, http.StatusForbidden, serve(t, server, "/v1/runs").Code)
	require.Equal(t, http.StatusOK, serve(t, server, "/v1/runs?api_key=secret").Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusOK, serve(t, server, "/healthz").Code)
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newTestServer(Options{}).ListenAndServe(ctx, "127.0.0.1:0")
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(Options{}), "/healthz")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	t.Parallel()

	handler := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func newTestServer(opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.NewRegistry()
	}
	opts.Logger = zap.NewNop()
	return NewServer(opts)
}

func serve(t *testing.T, server *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}
