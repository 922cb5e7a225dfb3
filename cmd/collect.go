package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/review-crawler/internal/collector"
)

// newCollectCmd creates and configures the 'collect' subcommand.
func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection session",
		Long: `Fetches review pages one after another, keeps the reviews that match the
selected mode, and saves the accepted set after every page. Exactly one mode
may be chosen: --pages/--all-pages, --months-back, --start-date/--end-date or
--keywords. With --resume, reviews already present in the prior snapshot are
not collected again.`,
		Example: `  review-crawler collect --source-url https://www.trustpilot.com/review/example.com --pages 5
  review-crawler collect --months-back 3 --resume
  review-crawler collect --keywords "refund AND late" --keywords +support`,
		RunE: runCollectCommand,
	}
	addCollectFlags(cmd.Flags())
	cmd.Flags().Bool("serve", false, "run the ops HTTP server while collecting")
	cmd.Flags().Int("port", 0, "ops HTTP server port")
	return cmd
}

func addCollectFlags(flags *pflag.FlagSet) {
	flags.String("source-url", "", "review listing URL")
	flags.String("snapshot-prefix", "", "prefix of generated snapshot names")
	flags.String("snapshot-id", "", "save under this snapshot instead of a generated name")
	flags.Bool("resume", false, "skip reviews already in the prior snapshot")
	flags.String("from", "", "prior snapshot to resume from (default: latest with the prefix)")
	flags.Int("pages", 0, "collect this many pages")
	flags.Bool("all-pages", false, "collect until the listing stops yielding new reviews")
	flags.Int("months-back", 0, "collect reviews from the last N months")
	flags.String("start-date", "", "first day of the date range (YYYY-MM-DD)")
	flags.String("end-date", "", "last day of the date range (YYYY-MM-DD)")
	flags.StringSlice("keywords", nil, "keyword terms; +term or 'a AND b' makes a term required")
	flags.Int("max-attempts", 0, "fetch attempts per page")
	flags.Duration("retry-delay", 0, "delay between fetch attempts")
	flags.String("backoff", "", "retry backoff: fixed or exponential")
	flags.Duration("page-delay", 0, "minimum spacing between page fetches")
	flags.Bool("headless", false, "promote script-rendered pages to headless Chrome")
	flags.Bool("headless-always", false, "render every page with headless Chrome")
	flags.String("storage-backend", "", "snapshot store: local, memory, gcs or postgres")
	flags.String("output-dir", "", "snapshot directory for the local store")
	flags.String("export-dir", "", "directory for csv/json/html outputs")
	flags.StringSlice("export-formats", nil, "output formats: csv, json, html")
	flags.Bool("export-each-page", false, "rewrite outputs after every page")
}

func runCollectCommand(cmd *cobra.Command, _ []string) error {
	app, rt, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(app)

	res, err := collectWithServer(cmd.Context(), app, "")
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), res)
	rt.logger.Info("Collect command finished.", zap.String("stop_reason", string(res.StopReason)))
	return nil
}

// collectWithServer runs one session with the ops server beside it. The
// server stops when the session ends; a server failure cancels the session.
func collectWithServer(ctx context.Context, app App, snapshotID string) (collector.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var res collector.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Serve(gctx)
	})
	g.Go(func() error {
		defer cancel()
		var err error
		res, err = app.Collect(gctx, snapshotID)
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

func closeApp(app App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	app.Close(ctx)
}

func printSummary(w io.Writer, res collector.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Collection summary")
	t.AppendHeader(table.Row{"Snapshot", "Pages", "Resumed", "Added", "Total", "Stop reason", "Duration"})
	t.AppendRow(table.Row{
		res.SnapshotID,
		res.Pages,
		res.Resumed,
		res.Added,
		len(res.Records),
		string(res.StopReason),
		durationOf(res).String(),
	})
	_, _ = fmt.Fprintln(w)
	t.Render()
}

func durationOf(res collector.Result) time.Duration {
	if res.FinishedAt.IsZero() || res.FinishedAt.Before(res.StartedAt) {
		return 0
	}
	return res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond)
}
