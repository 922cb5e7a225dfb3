package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/metrics"
	"github.com/JakeFAU/review-crawler/internal/progress"
	"github.com/JakeFAU/review-crawler/internal/review"
)

// Config identifies what a session collects and where it persists.
type Config struct {
	SourceURL string
	// SnapshotID is the identifier every page is saved under.
	SnapshotID string
	// PriorSnapshotID is loaded when Resume is set. Defaults to SnapshotID.
	PriorSnapshotID string
	Resume          bool
	RunID           string
}

// Result summarizes a finished session.
type Result struct {
	RunID      string
	SnapshotID string
	Records    []review.Record
	Resumed    int
	Added      int
	Pages      int
	LastPage   int
	StopReason review.StopReason
	StartedAt  time.Time
	FinishedAt time.Time
}

// Collector drives the fetch, extract, filter, persist and stop cycle.
type Collector struct {
	cfg       Config
	criteria  review.Criteria
	source    review.PageSource
	extractor review.Extractor
	store     review.SnapshotStore
	clock     review.Clock
	pacer     Pacer
	retry     RetryPolicy
	emitter   progress.Emitter
	logger    *zap.Logger
}

// New wires a Collector. Nil pacer, retry policy and emitter fall back to
// no pacing, the fixed default policy and a no-op emitter.
func New(
	cfg Config,
	criteria review.Criteria,
	source review.PageSource,
	extractor review.Extractor,
	store review.SnapshotStore,
	clock review.Clock,
	pacer Pacer,
	retry RetryPolicy,
	emitter progress.Emitter,
	logger *zap.Logger,
) (*Collector, error) {
	if source == nil || extractor == nil || store == nil || clock == nil {
		return nil, errors.New("collector requires source, extractor, store and clock")
	}
	if cfg.SourceURL == "" {
		return nil, errors.New("collector requires a source url")
	}
	if cfg.SnapshotID == "" {
		return nil, errors.New("collector requires a snapshot id")
	}
	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("validate criteria: %w", err)
	}
	if retry == nil {
		retry = NewFixedRetryPolicy(DefaultMaxAttempts, DefaultRetryDelay)
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		cfg:       cfg,
		criteria:  criteria,
		source:    source,
		extractor: extractor,
		store:     store,
		clock:     clock,
		pacer:     pacer,
		retry:     retry,
		emitter:   emitter,
		logger:    logger.Named("collector"),
	}, nil
}

// Run executes one session. Cancellation of ctx is not an error: the page in
// flight is discarded, the accepted sequence is saved, and the result carries
// review.StopCanceled. Only snapshot store failures are returned.
func (c *Collector) Run(ctx context.Context) (Result, error) {
	started := c.clock.Now().UTC()
	criteria := c.criteria.WithCutoff(started)
	policy := review.NewPolicy(criteria)
	runID := progress.ParseRunID(c.cfg.RunID)
	source := metrics.SanitizeSite(c.cfg.SourceURL)

	res := Result{RunID: c.cfg.RunID, SnapshotID: c.cfg.SnapshotID, StartedAt: started}
	logger := c.logger.With(
		zap.String("run_id", c.cfg.RunID),
		zap.String("snapshot_id", c.cfg.SnapshotID),
		zap.String("criteria", criteria.Describe()),
	)

	// The run starts before the prior snapshot loads so a failed load is
	// still recorded against it.
	c.emitter.Emit(progress.Event{
		RunID:      runID,
		TS:         started,
		Stage:      progress.StageSessionStart,
		Source:     source,
		SnapshotID: c.cfg.SnapshotID,
	})

	prior, err := c.loadPrior(ctx)
	if err != nil {
		c.emitError(runID, source, err)
		return res, err
	}
	sess := newSession(prior)
	res.Resumed = len(prior)
	if res.Resumed > 0 {
		logger.Info("resumed session", zap.Int("records", res.Resumed))
	}

	stop := review.StopNone
	for cursor := 1; stop == review.StopNone; cursor++ {
		if stop = policy.BeforeFetch(cursor); stop != review.StopNone {
			break
		}
		if ctx.Err() != nil {
			stop = review.StopCanceled
			break
		}
		pageStart := c.clock.Now()
		raw, attempts, ok := c.fetchPage(ctx, cursor, logger)
		if ctx.Err() != nil {
			logger.Info("page discarded after cancellation", zap.Int("page", cursor))
			stop = review.StopCanceled
			break
		}
		staged := sess.stage(raw, criteria)
		outcome := sess.commit(staged)
		res.Pages++
		res.LastPage = cursor
		res.Added += outcome.Added

		if err := c.save(ctx, sess); err != nil {
			c.emitError(runID, source, err)
			res.Records = sess.snapshot()
			return res, err
		}

		stop = policy.AfterPage(outcome)
		logger.Info("page processed",
			zap.Int("page", cursor),
			zap.Int("found", staged.found),
			zap.Int("added", outcome.Added),
			zap.Int("duplicates", staged.duplicates),
			zap.Int("rejected", staged.rejected),
			zap.Int("skipped_date", staged.skippedDate),
			zap.Int("skipped_empty", staged.skippedEmpty),
			zap.Int("total", len(sess.records)),
			zap.Int("no_additions", outcome.ConsecutiveNoAdditions),
			zap.Int("signature_repeats", outcome.SignatureRepeats),
		)
		c.emitter.Emit(progress.Event{
			RunID:      runID,
			TS:         c.clock.Now().UTC(),
			Stage:      progress.StagePageDone,
			Source:     source,
			SnapshotID: c.cfg.SnapshotID,
			Page:       cursor,
			Outcome:    pageOutcome(ok, staged.found, outcome.Added),
			Found:      staged.found,
			Added:      outcome.Added,
			Total:      len(sess.records),
			Attempts:   attempts,
			Dur:        nonNegative(c.clock.Now().Sub(pageStart)),
		})
	}

	if err := c.save(ctx, sess); err != nil {
		c.emitError(runID, source, err)
		res.Records = sess.snapshot()
		return res, err
	}
	res.Records = sess.snapshot()
	res.StopReason = stop
	res.FinishedAt = c.clock.Now().UTC()
	logger.Info("session finished",
		zap.String("stop_reason", string(stop)),
		zap.Int("pages", res.Pages),
		zap.Int("added", res.Added),
		zap.Int("total", len(res.Records)),
	)
	c.emitter.Emit(progress.Event{
		RunID:      runID,
		TS:         res.FinishedAt,
		Stage:      progress.StageSessionDone,
		Source:     source,
		SnapshotID: c.cfg.SnapshotID,
		Added:      res.Added,
		Total:      len(res.Records),
		StopReason: string(stop),
		Dur:        nonNegative(res.FinishedAt.Sub(started)),
	})
	return res, nil
}

func (c *Collector) loadPrior(ctx context.Context) ([]review.Record, error) {
	if !c.cfg.Resume {
		return nil, nil
	}
	id := c.cfg.PriorSnapshotID
	if id == "" {
		id = c.cfg.SnapshotID
	}
	records, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: load snapshot %q: %w", review.ErrSnapshotStore, id, err)
	}
	return records, nil
}

// save writes the full sequence. It ignores cancellation of ctx so the final
// persist after an interrupt still lands.
func (c *Collector) save(ctx context.Context, sess *session) error {
	if err := c.store.Save(context.WithoutCancel(ctx), c.cfg.SnapshotID, sess.snapshot()); err != nil {
		return fmt.Errorf("%w: save snapshot %q: %w", review.ErrSnapshotStore, c.cfg.SnapshotID, err)
	}
	return nil
}

// fetchPage fetches and extracts one page. A page that cannot be fetched or
// extracted yields no records; ok is false when the fetch itself failed.
func (c *Collector) fetchPage(ctx context.Context, cursor int, logger *zap.Logger) ([]review.RawRecord, int, bool) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, 0, false
		}
	}
	page, attempts, err := c.fetch(ctx, cursor)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("page fetch failed, treating as empty", zap.Int("page", cursor), zap.Error(err))
		}
		return nil, attempts, false
	}
	raw, err := c.extractor.Extract(page)
	if err != nil {
		logger.Warn("page extraction failed, treating as empty", zap.Int("page", cursor), zap.Error(err))
		return nil, attempts, true
	}
	return raw, attempts, true
}

func (c *Collector) fetch(ctx context.Context, cursor int) (review.RawPage, int, error) {
	req := review.PageRequest{SourceURL: c.cfg.SourceURL, Page: cursor}
	for attempt := 1; ; attempt++ {
		page, err := c.source.Fetch(ctx, req)
		if err == nil {
			return page, attempt, nil
		}
		if !c.retry.ShouldRetry(err, attempt) {
			return review.RawPage{}, attempt, &review.FetchError{Page: cursor, Attempts: attempt, Err: err}
		}
		delay := c.retry.Backoff(attempt)
		c.logger.Debug("retrying page fetch",
			zap.Int("page", cursor),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleep(ctx, delay); err != nil {
			return review.RawPage{}, attempt, &review.FetchError{Page: cursor, Attempts: attempt, Err: err}
		}
	}
}

func (c *Collector) emitError(runID [16]byte, source string, err error) {
	c.emitter.Emit(progress.Event{
		RunID:      runID,
		TS:         c.clock.Now().UTC(),
		Stage:      progress.StageSessionError,
		Source:     source,
		SnapshotID: c.cfg.SnapshotID,
		Note:       err.Error(),
	})
}

func pageOutcome(fetched bool, found, added int) progress.PageOutcome {
	switch {
	case !fetched:
		return progress.PageFetchFailed
	case found == 0:
		return progress.PageEmpty
	case added == 0:
		return progress.PageNoAdditions
	default:
		return progress.PageAdded
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
