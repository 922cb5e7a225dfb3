package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	m, err := NewHTTP(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewHTTP() error = %v", err)
	}
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/notfound", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/test", "/notfound"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if val := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "200")); val != 1 {
		t.Errorf("Expected requests for GET /test to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "404")); val != 1 {
		t.Errorf("Expected requests for GET /notfound to be 1, got %f", val)
	}
	if val := testutil.CollectAndCount(m.requestDuration); val <= 0 {
		t.Errorf("Expected request duration to be observed, got %d", val)
	}
}
