package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/dedupe"
)

// defaultDedupePatterns are used when no files are given.
var defaultDedupePatterns = []string{"*.csv", "*.json", "*.html"}

// newDedupeCmd creates and configures the 'dedupe' subcommand.
func newDedupeCmd() *cobra.Command {
	var noBackup bool
	var dir string

	cmd := &cobra.Command{
		Use:   "dedupe [files or globs...]",
		Short: "Remove duplicate reviews from output files",
		Long: `Rewrites CSV, JSON and HTML outputs keeping the first occurrence of every
review. Two reviews are duplicates when reviewer, date, canonical link and text
match after whitespace and case normalization. A .bak copy of each file is
written once before its first rewrite unless --no-backup is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFrom(cmd.Context())
			if err != nil {
				return err
			}
			patterns := args
			if len(patterns) == 0 {
				for _, p := range defaultDedupePatterns {
					patterns = append(patterns, filepath.Join(dir, p))
				}
			}
			return runDedupe(cmd, patterns, dedupe.Options{Backup: !noBackup}, rt.logger)
		},
	}
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "do not write .bak files")
	cmd.Flags().StringVar(&dir, "dir", "output", "directory searched when no files are given")
	return cmd
}

func runDedupe(cmd *cobra.Command, patterns []string, opts dedupe.Options, logger *zap.Logger) error {
	files, err := dedupe.Targets(patterns)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(files) == 0 {
		_, _ = fmt.Fprintln(out, "No matching files.")
		return nil
	}

	var failed int
	for _, path := range files {
		res, err := dedupe.File(path, opts)
		switch {
		case errors.Is(err, dedupe.ErrUnsupported):
			logger.Debug("skipping unsupported file", zap.String("path", path))
			continue
		case err != nil:
			failed++
			logger.Error("dedupe failed", zap.String("path", path), zap.Error(err))
			_, _ = fmt.Fprintf(out, "%s: error: %v\n", path, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s: %d -> %d (removed %d)\n", res.Path, res.Before, res.After, res.Removed())
	}
	if failed > 0 {
		return fmt.Errorf("dedupe failed for %d of %d files", failed, len(files))
	}
	return nil
}
