// Package cmd defines and implements the CLI commands for the review-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/collector"
	"github.com/JakeFAU/review-crawler/internal/config"
	"github.com/JakeFAU/review-crawler/internal/logging"
	"github.com/JakeFAU/review-crawler/internal/server"
)

// App is the set of services the collect and schedule commands drive.
// It lets tests swap in a fake.
type App interface {
	Collect(ctx context.Context, snapshotID string) (collector.Result, error)
	Serve(ctx context.Context) error
	SnapshotID(now time.Time) string
	Close(ctx context.Context)
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return server.Build(ctx, cfg, logger)
}

type runtimeKeyType struct{}

var runtimeKey runtimeKeyType

// runtime is what the root command prepares for its subcommands.
type runtime struct {
	v      *viper.Viper
	logger *zap.Logger
}

// flagKeys maps command-line flags onto configuration keys. Only flags the
// running command defines are bound.
var flagKeys = map[string]string{
	"source-url":       "collector.source_url",
	"snapshot-prefix":  "collector.snapshot_prefix",
	"snapshot-id":      "collector.snapshot_id",
	"resume":           "collector.resume",
	"from":             "collector.from",
	"pages":            "collector.pages",
	"all-pages":        "collector.all_pages",
	"months-back":      "collector.months_back",
	"start-date":       "collector.start_date",
	"end-date":         "collector.end_date",
	"keywords":         "collector.keywords",
	"max-attempts":     "collector.max_attempts",
	"retry-delay":      "collector.retry_delay",
	"backoff":          "collector.backoff",
	"page-delay":       "collector.page_delay",
	"headless":         "headless.enabled",
	"headless-always":  "headless.always",
	"storage-backend":  "storage.backend",
	"output-dir":       "storage.local_dir",
	"export-dir":       "export.dir",
	"export-formats":   "export.formats",
	"export-each-page": "export.every_page",
	"serve":            "server.enabled",
	"port":             "server.port",
	"cron":             "schedule.cron",
	"log-level":        "logging.level",
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile, envFile string

	cmd := &cobra.Command{
		Use:   "review-crawler",
		Short: "Incrementally collect customer reviews from a paginated review site.",
		Long: `review-crawler walks the pages of a review listing, keeps the reviews that
match the selected criteria, and saves the accepted set after every page so
an interrupted run can be resumed without collecting anything twice.`,
		SilenceUsage: true,

		// Runs before every subcommand: loads .env files, the optional config
		// file and flag overrides, then installs the logger.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			if err := config.LoadDotEnv(files...); err != nil {
				return err
			}

			v := config.NewViper()
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}

			logger, err := logging.New(v.GetBool("logging.development"), v.GetString("logging.level"))
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, &runtime{v: v, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, ok := cmd.Context().Value(runtimeKey).(*runtime); ok {
				_ = rt.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newScheduleCmd())
	cmd.AddCommand(newDedupeCmd())
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if bindErr := v.BindPFlag(key, f); bindErr != nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

func runtimeFrom(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, errors.New("command runtime not initialized")
	}
	return rt, nil
}

// loadApp decodes the configuration and builds the application services.
func loadApp(ctx context.Context) (App, *runtime, error) {
	rt, err := runtimeFrom(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(rt.v, "")
	if err != nil {
		return nil, nil, err
	}
	app, err := newApp(ctx, cfg, rt.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return app, rt, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running
// command, which lets a collection save its progress before exiting.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Error("Command execution failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}
