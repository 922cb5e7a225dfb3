package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/review-crawler/internal/clock/system"
)

// newScheduleCmd creates and configures the 'schedule' subcommand.
func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Re-run collection on a cron schedule",
		Long: `Runs the collect pipeline every time the cron expression fires. Every run
resumes from the newest snapshot with the configured prefix and saves to the
same snapshot, so each run only adds reviews published since the last one.
Overlapping runs are skipped.`,
		Example: `  review-crawler schedule --cron "0 */6 * * *" --months-back 1
  review-crawler schedule --cron "@every 30m" --pages 3 --serve`,
		RunE: runScheduleCommand,
	}
	addCollectFlags(cmd.Flags())
	cmd.Flags().String("cron", "", "cron expression (5 fields or @every/@hourly descriptors)")
	cmd.Flags().Bool("serve", false, "run the ops HTTP server while scheduled")
	cmd.Flags().Int("port", 0, "ops HTTP server port")
	return cmd
}

func runScheduleCommand(cmd *cobra.Command, _ []string) error {
	rt, err := runtimeFrom(cmd.Context())
	if err != nil {
		return err
	}
	rt.v.Set("collector.resume", true)

	app, rt, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(app)

	spec := rt.v.GetString("schedule.cron")
	snapshotID := app.SnapshotID(system.New().Now())
	rt.logger.Info("Schedule started", zap.String("cron", spec), zap.String("snapshot_id", snapshotID))
	return runSchedule(cmd.Context(), app, spec, snapshotID, rt.logger, cmd.OutOrStdout())
}

// runSchedule blocks until ctx is canceled, running a session every time the
// cron expression fires. The ops server runs for the whole schedule.
func runSchedule(
	ctx context.Context,
	app App,
	spec, snapshotID string,
	logger *zap.Logger,
	out io.Writer,
) error {
	g, gctx := errgroup.WithContext(ctx)

	cl := cronLogger{logger: logger.Named("cron").Sugar()}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	scheduler := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	var outMu sync.Mutex
	if _, err := scheduler.AddFunc(spec, func() {
		res, err := app.Collect(gctx, snapshotID)
		if err != nil {
			logger.Error("Scheduled collection failed", zap.Error(err))
			return
		}
		outMu.Lock()
		defer outMu.Unlock()
		printSummary(out, res)
	}); err != nil {
		return fmt.Errorf("parse cron spec %q: %w", spec, err)
	}

	g.Go(func() error {
		return app.Serve(gctx)
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		logger.Info("Schedule stopped")
		return nil
	})
	return g.Wait()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
