package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/review-crawler/internal/progress"
)

// PrometheusSink exports collection progress via Prometheus. It owns all
// collectors for sessions and per-page counters.
type PrometheusSink struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	sessionsRunning   prometheus.Gauge
	sessionRuntime    *prometheus.HistogramVec

	pages         *prometheus.CounterVec
	recordsFound  *prometheus.CounterVec
	recordsAdded  *prometheus.CounterVec
	fetchAttempts *prometheus.CounterVec
	pageDuration  *prometheus.HistogramVec

	tracker *sessionTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviews_sessions_started_total",
			Help: "Total collection sessions that have started.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviews_sessions_completed_total",
			Help: "Total sessions completed partitioned by stop reason.",
		}, []string{"stop_reason"}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reviews_sessions_running",
			Help: "Current number of running sessions.",
		}),
		sessionRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviews_session_runtime_seconds",
			Help:    "Wall time per completed session.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"stop_reason"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviews_pages_total",
			Help: "Processed pages partitioned by source and outcome.",
		}, []string{"source", "outcome"}),
		recordsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviews_records_found_total",
			Help: "Raw records extracted per source.",
		}, []string{"source"}),
		recordsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviews_records_added_total",
			Help: "Records accepted into the snapshot per source.",
		}, []string{"source"}),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviews_fetch_attempts_total",
			Help: "Page fetch attempts per source, including retries.",
		}, []string{"source"}),
		pageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviews_page_duration_seconds",
			Help:    "Page processing duration partitioned by source and outcome.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source", "outcome"}),
		tracker: newSessionTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsCompleted,
		s.sessionsRunning,
		s.sessionRuntime,
		s.pages,
		s.recordsFound,
		s.recordsAdded,
		s.fetchAttempts,
		s.pageDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageSessionStart, progress.StageSessionDone, progress.StageSessionError:
			s.handleSessionEvent(evt)
		case progress.StagePageDone:
			s.handlePageEvent(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) handleSessionEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSessionStart:
		s.sessionsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.sessionsRunning.Inc()
		}
		return
	case progress.StageSessionDone:
		s.observeCompletion(evt, evt.StopReason)
	case progress.StageSessionError:
		s.observeCompletion(evt, "error")
	}
	if s.tracker.complete(evt.RunID) {
		s.sessionsRunning.Dec()
	}
}

func (s *PrometheusSink) observeCompletion(evt progress.Event, label string) {
	s.sessionsCompleted.WithLabelValues(label).Inc()
	if evt.Dur > 0 {
		s.sessionRuntime.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handlePageEvent(evt progress.Event) {
	source := evt.Source
	if source == "" {
		source = "unknown"
	}
	outcome := string(evt.Outcome)
	s.pages.WithLabelValues(source, outcome).Inc()
	if evt.Found > 0 {
		s.recordsFound.WithLabelValues(source).Add(float64(evt.Found))
	}
	if evt.Added > 0 {
		s.recordsAdded.WithLabelValues(source).Add(float64(evt.Added))
	}
	if evt.Attempts > 0 {
		s.fetchAttempts.WithLabelValues(source).Add(float64(evt.Attempts))
	}
	if evt.Dur > 0 {
		s.pageDuration.WithLabelValues(source, outcome).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type sessionTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{running: make(map[[16]byte]struct{})}
}

func (t *sessionTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *sessionTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
