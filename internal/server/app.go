// Package server builds the long-lived services behind the CLI commands and
// runs collection sessions against them.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/api"
	"github.com/JakeFAU/review-crawler/internal/clock/system"
	"github.com/JakeFAU/review-crawler/internal/collector"
	"github.com/JakeFAU/review-crawler/internal/config"
	"github.com/JakeFAU/review-crawler/internal/export"
	"github.com/JakeFAU/review-crawler/internal/extract"
	"github.com/JakeFAU/review-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/review-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/review-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/review-crawler/internal/headless/detector"
	"github.com/JakeFAU/review-crawler/internal/id/uuid"
	"github.com/JakeFAU/review-crawler/internal/metrics"
	"github.com/JakeFAU/review-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/review-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/review-crawler/internal/progress/sinks"
	"github.com/JakeFAU/review-crawler/internal/publisher"
	memorypublisher "github.com/JakeFAU/review-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/review-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage"
	gcsstorage "github.com/JakeFAU/review-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/review-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/review-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/review-crawler/internal/storage/postgres"
	"github.com/JakeFAU/review-crawler/internal/store"
)

// App contains the application's dependencies.
type App struct {
	cfg      config.Config
	criteria review.Criteria
	logger   *zap.Logger
	clock    review.Clock
	ids      review.IDGenerator
	registry *prometheus.Registry

	store     review.SnapshotStore
	latest    review.LatestFinder
	exporter  *export.Writer
	source    review.PageSource
	extractor review.Extractor
	pacer     collector.Pacer
	retry     collector.RetryPolicy

	runs      store.RunRepository
	status    *progresssinks.StatusSink
	hub       *progress.Hub
	publisher publisher.Publisher
	apiServer *api.Server

	headless     *headlessfetcher.Fetcher
	pgPool       *pgxpool.Pool
	gcsClient    *gcstorage.Client
	pubsubClient *pubsub.Client
	gcpPublisher *gcppublisher.Publisher
}

// Build creates the application's dependencies. A failure part way through
// releases whatever was already opened.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	criteria, err := cfg.BuildCriteria()
	if err != nil {
		return nil, fmt.Errorf("build criteria: %w", err)
	}
	app := &App{
		cfg:       cfg,
		criteria:  criteria,
		logger:    logger,
		clock:     system.New(),
		ids:       uuid.New(),
		registry:  prometheus.NewRegistry(),
		extractor: extract.New(cfg.Extract),
	}
	app.logger.Info("building application dependencies",
		zap.String("source", metrics.SanitizeSite(cfg.Collector.SourceURL)),
		zap.String("criteria", criteria.Describe()),
		zap.String("storage", cfg.Storage.Backend),
	)

	steps := []func(context.Context) error{
		app.setupDatabase,
		app.setupStorage,
		app.setupSource,
		app.setupProgress,
		app.setupPublisher,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			app.Close(context.WithoutCancel(ctx))
			return nil, err
		}
	}
	app.setupPolicies()
	app.setupAPI()
	return app, nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Criteria returns the collection criteria derived from the configuration.
func (a *App) Criteria() review.Criteria {
	return a.criteria
}

func (a *App) setupDatabase(ctx context.Context) error {
	needPool := a.cfg.Storage.Backend == storage.BackendPostgres || a.cfg.DB.RunLedger
	if !needPool {
		a.runs = memorystorage.NewRunStore()
		return nil
	}
	pool, err := pgstore.NewPool(ctx, pgstore.Config{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
		MinConns: a.cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("postgres pool init failed: %w", err)
	}
	a.pgPool = pool
	a.logger.Info("postgres pool initialized", zap.Int32("max_conns", a.cfg.DB.MaxConns))

	if !a.cfg.DB.RunLedger {
		a.runs = memorystorage.NewRunStore()
		return nil
	}
	runs, err := pgstore.NewRunStore(pool, a.cfg.DB.RunsTable)
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	if err := runs.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("run store schema: %w", err)
	}
	a.runs = runs
	a.logger.Info("run ledger enabled", zap.String("table", a.cfg.DB.RunsTable))
	return nil
}

func (a *App) setupStorage(ctx context.Context) error {
	var snapshots review.SnapshotStore
	switch a.cfg.Storage.Backend {
	case storage.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcsClient = client
		gcsStore, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.GCSPrefix,
		})
		if err != nil {
			return fmt.Errorf("gcs snapshot store init failed: %w", err)
		}
		snapshots = gcsStore
		a.logger.Info("using GCS snapshot store", zap.String("bucket", a.cfg.Storage.GCSBucket))
	case storage.BackendPostgres:
		pgStore, err := pgstore.NewSnapshotStore(a.pgPool, a.cfg.DB.SnapshotTable)
		if err != nil {
			return fmt.Errorf("postgres snapshot store init failed: %w", err)
		}
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres snapshot schema: %w", err)
		}
		snapshots = pgStore
		a.logger.Info("using postgres snapshot store")
	case storage.BackendMemory:
		snapshots = memorystorage.NewSnapshotStore()
		a.logger.Info("using in-memory snapshot store")
	default:
		localStore, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("local snapshot store init failed: %w", err)
		}
		snapshots = localStore
		a.logger.Info("using local snapshot store", zap.String("dir", a.cfg.Storage.LocalDir))
	}

	if len(a.cfg.Export.Formats) > 0 {
		writer, err := export.NewWriter(export.Config{
			Dir:     a.cfg.Export.Dir,
			Formats: a.cfg.Export.Formats,
			Meta: export.Meta{
				Title:    metrics.SanitizeSite(a.cfg.Collector.SourceURL),
				Criteria: a.criteria.Describe(),
			},
		}, a.clock, a.logger)
		if err != nil {
			return fmt.Errorf("export writer init failed: %w", err)
		}
		a.exporter = writer
		if a.cfg.Export.EveryPage {
			snapshots = export.NewMirrorStore(snapshots, writer, a.logger)
		}
	}

	a.store = snapshots
	if finder, ok := snapshots.(review.LatestFinder); ok {
		a.latest = finder
	}
	return nil
}

func (a *App) setupSource(_ context.Context) error {
	params := fetcher.ParseParams(a.cfg.HTTP.Params)
	headers := make(http.Header, len(a.cfg.HTTP.Headers))
	for k, v := range a.cfg.HTTP.Headers {
		headers.Set(k, v)
	}
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.HTTP.UserAgent,
		RespectRobots: a.cfg.HTTP.RespectRobots,
		Timeout:       a.cfg.HTTPTimeout(),
		Params:        params,
		Headers:       headers,
	}, a.logger.Named("colly"))
	a.source = plain
	a.logger.Info("using colly page source", zap.String("user_agent", a.cfg.HTTP.UserAgent))

	if !a.cfg.Headless.Enabled {
		return nil
	}
	hc := a.cfg.Headless
	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       hc.MaxParallel,
		UserAgent:         a.cfg.HTTP.UserAgent,
		NavigationTimeout: time.Duration(hc.NavTimeoutSec) * time.Second,
		WaitSelector:      hc.WaitSelector,
		ExpandSelector:    hc.ExpandSelector,
		SettleDelay:       time.Duration(hc.SettleMillis) * time.Millisecond,
		Params:            params,
		Headers:           headers,
	}, a.logger.Named("headless"))
	if err != nil {
		if hc.Always {
			return fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.logger.Warn("headless fetcher init failed, using plain pages only", zap.Error(err))
		return nil
	}
	a.headless = headless
	if hc.Always {
		a.source = headless
		a.logger.Info("rendering every page headless", zap.Int("max_parallel", hc.MaxParallel))
		return nil
	}
	detect := detector.NewHeuristic(hc.PromotionThresh, a.cfg.Extract.CardSelector)
	a.source = fetcher.NewPromoting(plain, headless, detect, a.logger.Named("promote"))
	a.logger.Info("headless promotion enabled", zap.Int("threshold", hc.PromotionThresh))
	return nil
}

func (a *App) setupProgress(context.Context) error {
	promSink, err := progresssinks.NewPrometheusSink(a.registry)
	if err != nil {
		return fmt.Errorf("prometheus sink init failed: %w", err)
	}
	a.status = progresssinks.NewStatusSink()
	sinkList := []progress.Sink{
		progresssinks.NewLogSink(a.logger.Named("progress_log")),
		promSink,
		a.status,
		progresssinks.NewStoreSink(a.runs, a.logger.Named("progress_store")),
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress_hub")}, sinkList...)
	a.logger.Debug("progress hub initialized", zap.Int("sinks", len(sinkList)))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Debug("no Pub/Sub topic configured, using in-memory publisher")
		a.publisher = memorypublisher.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.gcpPublisher = gcppublisher.New(client)
	a.publisher = a.gcpPublisher
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupPolicies() {
	cc := a.cfg.Collector
	a.pacer = ratelimit.New(ratelimit.Config{Interval: cc.PageDelay, Burst: cc.PageBurst}, a.logger.Named("pacer"))
	switch cc.Backoff {
	case "exponential":
		a.retry = collector.NewExponentialRetryPolicy(cc.MaxAttempts, cc.RetryDelay, cc.MaxBackoff)
	default:
		a.retry = collector.NewFixedRetryPolicy(cc.MaxAttempts, cc.RetryDelay)
	}
}

func (a *App) setupAPI() {
	if !a.cfg.Server.Enabled {
		return
	}
	httpMetrics, err := metrics.NewHTTP(a.registry)
	if err != nil {
		a.logger.Warn("http metrics unavailable", zap.Error(err))
	}
	a.apiServer = api.NewServer(api.Options{
		Status:      a.status,
		Runs:        a.runs,
		Gatherer:    a.registry,
		HTTPMetrics: httpMetrics,
		Ready:       a.ready,
		APIKey:      a.cfg.Server.APIKey,
		Logger:      a.logger,
	})
}

func (a *App) ready(ctx context.Context) error {
	if a.pgPool == nil {
		return nil
	}
	if err := a.pgPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Serve runs the ops server until ctx is canceled. It returns immediately
// when the server is disabled.
func (a *App) Serve(ctx context.Context) error {
	if a.apiServer == nil {
		return nil
	}
	return a.apiServer.ListenAndServe(ctx, fmt.Sprintf(":%d", a.cfg.Server.Port))
}

// SnapshotID returns the configured snapshot identifier, or the generated
// name for a session starting at now.
func (a *App) SnapshotID(now time.Time) string {
	if a.cfg.Collector.SnapshotID != "" {
		return a.cfg.Collector.SnapshotID
	}
	return review.SnapshotName(a.cfg.Collector.SnapshotPrefix, a.criteria, now)
}

// Collect runs one session saving under snapshotID (generated when empty),
// then writes the configured outputs and announces completion.
func (a *App) Collect(ctx context.Context, snapshotID string) (collector.Result, error) {
	if snapshotID == "" {
		snapshotID = a.SnapshotID(a.clock.Now().UTC())
	}
	runID, err := a.ids.NewID()
	if err != nil {
		return collector.Result{}, fmt.Errorf("generate run id: %w", err)
	}
	prior, err := a.resolvePrior(ctx, snapshotID)
	if err != nil {
		return collector.Result{}, err
	}

	c, err := collector.New(
		collector.Config{
			SourceURL:       a.cfg.Collector.SourceURL,
			SnapshotID:      snapshotID,
			PriorSnapshotID: prior,
			Resume:          a.cfg.Collector.Resume,
			RunID:           runID,
		},
		a.criteria,
		a.source,
		a.extractor,
		a.store,
		a.clock,
		a.pacer,
		a.retry,
		a.hub,
		a.logger,
	)
	if err != nil {
		return collector.Result{}, fmt.Errorf("init collector: %w", err)
	}

	res, err := c.Run(ctx)
	if err != nil {
		return res, fmt.Errorf("run collector: %w", err)
	}
	a.writeOutputs(res)
	a.announce(ctx, res)
	return res, nil
}

// resolvePrior picks the snapshot a resumed session starts from: the
// configured one, else the newest with the prefix, else the session's own.
func (a *App) resolvePrior(ctx context.Context, snapshotID string) (string, error) {
	cc := a.cfg.Collector
	if !cc.Resume {
		return "", nil
	}
	if cc.From != "" {
		return cc.From, nil
	}
	if a.latest == nil {
		return snapshotID, nil
	}
	id, ok, err := a.latest.Latest(ctx, cc.SnapshotPrefix)
	if err != nil {
		return "", fmt.Errorf("%w: find latest snapshot: %w", review.ErrSnapshotStore, err)
	}
	if !ok {
		a.logger.Info("no prior snapshot found, starting fresh", zap.String("prefix", cc.SnapshotPrefix))
		return snapshotID, nil
	}
	a.logger.Info("resuming from latest snapshot", zap.String("prior", id))
	return id, nil
}

func (a *App) writeOutputs(res collector.Result) {
	if a.exporter == nil {
		return
	}
	paths, err := a.exporter.Write(res.SnapshotID, res.Records)
	if err != nil {
		a.logger.Warn("output write failed", zap.String("snapshot_id", res.SnapshotID), zap.Error(err))
		return
	}
	a.logger.Info("outputs written", zap.Strings("paths", paths))
}

func (a *App) announce(ctx context.Context, res collector.Result) {
	completion := publisher.NewCompletion(res, a.cfg.Collector.SourceURL, a.criteria.Mode)
	msgID, err := publisher.Announce(context.WithoutCancel(ctx), a.publisher, a.cfg.PubSub.TopicName, completion)
	if err != nil {
		a.logger.Warn("completion announcement failed", zap.Error(err))
		return
	}
	if msgID != "" {
		a.logger.Info("completion announced", zap.String("message_id", msgID))
	}
}

// Close releases every service the app opened. Progress events still
// buffered in the hub are flushed first.
func (a *App) Close(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.gcpPublisher != nil {
		a.gcpPublisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	a.logger.Info("shutdown complete")
}
