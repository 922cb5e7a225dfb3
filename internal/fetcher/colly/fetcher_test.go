package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/review-crawler/internal/review"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", RespectRobots: false, Timeout: time.Second}, nil)
	collector := f.buildCollector(review.PageRequest{Page: 1}, &review.RawPage{}, new(error))
	if collector.UserAgent != "coverage-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.IgnoreRobotsTxt {
		t.Fatal("expected robots txt to be ignored")
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"X-Trace": {"yes"}}}, nil)
	var result review.RawPage
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, review.PageRequest{Page: 7}, &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("X-Trace") != "yes" {
		t.Fatalf("expected header propagation, got %+v", collyReq.Headers)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/?page=7"),
		},
	})
	if result.StatusCode != http.StatusOK || string(result.Body) != "body" || result.Page != 7 {
		t.Fatalf("unexpected result: %+v", result)
	}

	hooks.onError(&colly.Response{StatusCode: http.StatusTooManyRequests}, errors.New("Too Many Requests"))
	if fetchErr == nil || fetchErr.Error() != "status 429: Too Many Requests" {
		t.Fatalf("expected fetchErr with status, got %v", fetchErr)
	}
}

func TestFetchAddsPageAndParams(t *testing.T) {
	t.Parallel()

	queries := make(chan url.Values, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.Query()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><article>hi</article></body></html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{Params: url.Values{"sort": {"recency"}}}, nil)
	page, err := f.Fetch(context.Background(), review.PageRequest{SourceURL: srv.URL + "/company/acme", Page: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gotQuery := <-queries
	if gotQuery.Get("page") != "2" || gotQuery.Get("sort") != "recency" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
	if page.Page != 2 || page.StatusCode != http.StatusOK {
		t.Fatalf("unexpected page: %+v", page)
	}
	if string(page.Body) != "<html><body><article>hi</article></body></html>" {
		t.Fatalf("unexpected body %q", page.Body)
	}
}

func TestFetchReturnsErrorOnHTTPFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{}, nil)
	if _, err := f.Fetch(context.Background(), review.PageRequest{SourceURL: srv.URL, Page: 1}); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestFetchRejectsBadSource(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	if _, err := f.Fetch(context.Background(), review.PageRequest{SourceURL: "not a url", Page: 1}); err == nil {
		t.Fatal("expected error for relative source url")
	}
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
