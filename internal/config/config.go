// Package config loads and validates review-crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/review-crawler/internal/extract"
	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage"
)

// EnvPrefix namespaces environment overrides, e.g. REVIEWS_COLLECTOR_SOURCE_URL.
const EnvPrefix = "REVIEWS"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Collector CollectorConfig `mapstructure:"collector"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Extract   extract.Config  `mapstructure:"extract"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Export    ExportConfig    `mapstructure:"export"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// CollectorConfig selects the source, the collection mode and the resume behavior.
// At most one mode may be set; none means all pages.
type CollectorConfig struct {
	SourceURL      string `mapstructure:"source_url" validate:"required,url"`
	SnapshotPrefix string `mapstructure:"snapshot_prefix" validate:"required"`
	// SnapshotID overrides the generated snapshot name.
	SnapshotID string `mapstructure:"snapshot_id"`
	Resume     bool   `mapstructure:"resume"`
	// From names the prior snapshot to resume from.
	From string `mapstructure:"from"`

	Pages      int      `mapstructure:"pages" validate:"gte=0"`
	AllPages   bool     `mapstructure:"all_pages"`
	MonthsBack int      `mapstructure:"months_back" validate:"gte=0"`
	StartDate  string   `mapstructure:"start_date"`
	EndDate    string   `mapstructure:"end_date"`
	Keywords   []string `mapstructure:"keywords"`

	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Backoff     string        `mapstructure:"backoff" validate:"oneof=fixed exponential"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	PageDelay   time.Duration `mapstructure:"page_delay"`
	PageBurst   int           `mapstructure:"page_burst" validate:"gte=0"`
}

// HTTPConfig configures the plain HTTP page source.
type HTTPConfig struct {
	UserAgent      string            `mapstructure:"user_agent" validate:"required"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds" validate:"gt=0"`
	RespectRobots  bool              `mapstructure:"respect_robots"`
	Params         map[string]string `mapstructure:"params"`
	Headers        map[string]string `mapstructure:"headers"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Always skips the plain fetch and renders every page headless.
	Always          bool   `mapstructure:"always"`
	MaxParallel     int    `mapstructure:"max_parallel"`
	NavTimeoutSec   int    `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int    `mapstructure:"promotion_threshold"`
	WaitSelector    string `mapstructure:"wait_selector"`
	ExpandSelector  string `mapstructure:"expand_selector"`
	SettleMillis    int    `mapstructure:"settle_ms"`
}

// StorageConfig picks the snapshot backend.
type StorageConfig struct {
	Backend   string `mapstructure:"backend" validate:"oneof=local memory gcs postgres"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DBConfig controls access to Postgres for snapshots and the run ledger.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	SnapshotTable string `mapstructure:"snapshot_table"`
	RunsTable     string `mapstructure:"runs_table"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MinConns      int32  `mapstructure:"min_conns"`
	// RunLedger records every session in RunsTable when DSN is set.
	RunLedger bool `mapstructure:"run_ledger"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the ops HTTP server that runs beside a session.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// ExportConfig controls the CSV/JSON/HTML output files.
type ExportConfig struct {
	Dir     string   `mapstructure:"dir"`
	Formats []string `mapstructure:"formats" validate:"dive,oneof=csv json html"`
	// EveryPage rewrites the outputs after each committed page.
	EveryPage bool `mapstructure:"every_page"`
}

// ScheduleConfig drives the schedule command.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// NewViper returns a Viper instance with defaults and env binding applied.
// Callers may bind flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the optional config file at path into v and decodes it.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = NewViper()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	// Comma-separated env values arrive as a single element.
	cfg.Collector.Keywords = splitList(cfg.Collector.Keywords)
	cfg.Export.Formats = splitList(cfg.Export.Formats)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a meaningful default are still registered so AutomaticEnv
	// overrides reach Unmarshal.
	for _, key := range []string{
		"collector.source_url", "collector.snapshot_id", "collector.from",
		"collector.start_date", "collector.end_date",
		"headless.expand_selector", "storage.gcs_bucket",
		"db.dsn", "db.snapshot_table", "db.runs_table",
		"pubsub.project_id", "pubsub.topic_name", "server.api_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("collector.resume", false)
	v.SetDefault("collector.pages", 0)
	v.SetDefault("collector.all_pages", false)
	v.SetDefault("collector.months_back", 0)
	v.SetDefault("collector.keywords", []string{})
	v.SetDefault("headless.always", false)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.run_ledger", false)
	v.SetDefault("export.every_page", false)
	v.SetDefault("collector.snapshot_prefix", "reviews")
	v.SetDefault("collector.max_attempts", 3)
	v.SetDefault("collector.retry_delay", 5*time.Second)
	v.SetDefault("collector.backoff", "fixed")
	v.SetDefault("collector.max_backoff", time.Minute)
	v.SetDefault("collector.page_delay", 2*time.Second)
	v.SetDefault("collector.page_burst", 1)
	v.SetDefault("http.user_agent", "review-crawler/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.respect_robots", true)
	v.SetDefault("http.params", map[string]string{"sort": "recency"})
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.promotion_threshold", 60)
	v.SetDefault("headless.wait_selector", "article")
	v.SetDefault("headless.settle_ms", 1500)
	def := extract.DefaultConfig()
	v.SetDefault("extract.card_selector", def.CardSelector)
	v.SetDefault("extract.reviewer_selector", def.ReviewerSelector)
	v.SetDefault("extract.default_reviewer", def.DefaultReviewer)
	v.SetDefault("extract.date_selector", def.DateSelector)
	v.SetDefault("extract.date_attr", def.DateAttr)
	v.SetDefault("extract.link_selector", def.LinkSelector)
	v.SetDefault("extract.body_selector", def.BodySelector)
	v.SetDefault("storage.backend", storage.BackendLocal)
	v.SetDefault("storage.local_dir", "output")
	v.SetDefault("storage.gcs_prefix", "snapshots")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("export.dir", "output")
	v.SetDefault("export.formats", []string{"csv", "json", "html"})
	v.SetDefault("schedule.cron", "0 */6 * * *")
}

var validate = validator.New()

// Validate enforces required values and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.BuildCriteria(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case storage.BackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case storage.BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case storage.BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres backend")
		}
	}
	if c.DB.RunLedger && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required when db.run_ledger is enabled")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Headless.Always && !c.Headless.Enabled {
		return fmt.Errorf("headless.always requires headless.enabled")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	return nil
}

// BuildCriteria turns the mode fields into review.Criteria. More than one
// mode is an error; no mode selects all pages.
func (c Config) BuildCriteria() (review.Criteria, error) {
	cc := c.Collector
	var selected []review.Criteria

	if cc.Pages > 0 || cc.AllPages {
		if cc.Pages > 0 && cc.AllPages {
			return review.Criteria{}, fmt.Errorf("%w: pages and all_pages are exclusive", review.ErrInvalidCriteria)
		}
		selected = append(selected, review.Criteria{Mode: review.ModePages, PageLimit: cc.Pages})
	}
	if cc.MonthsBack > 0 {
		selected = append(selected, review.Criteria{Mode: review.ModeMonths, MonthsBack: cc.MonthsBack})
	}
	if cc.StartDate != "" || cc.EndDate != "" {
		start, err := review.ParseDate(cc.StartDate)
		if err != nil {
			return review.Criteria{}, fmt.Errorf("%w: start_date: %w", review.ErrInvalidCriteria, err)
		}
		end, err := review.ParseDate(cc.EndDate)
		if err != nil {
			return review.Criteria{}, fmt.Errorf("%w: end_date: %w", review.ErrInvalidCriteria, err)
		}
		selected = append(selected, review.Criteria{Mode: review.ModeDateRange, Start: start, End: end})
	}
	if len(cc.Keywords) > 0 {
		andTerms, orTerms := review.ParseKeywords(cc.Keywords)
		selected = append(selected, review.Criteria{Mode: review.ModeKeywords, AndTerms: andTerms, OrTerms: orTerms})
	}

	var crit review.Criteria
	switch len(selected) {
	case 0:
		crit = review.Criteria{Mode: review.ModePages}
	case 1:
		crit = selected[0]
	default:
		return review.Criteria{}, fmt.Errorf("%w: select exactly one of pages, months_back, start/end date, keywords",
			review.ErrInvalidCriteria)
	}
	if err := crit.Validate(); err != nil {
		return review.Criteria{}, err
	}
	return crit, nil
}

// HTTPTimeout converts the HTTP timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
