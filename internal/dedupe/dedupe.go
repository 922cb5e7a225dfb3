// Package dedupe removes duplicate reviews from previously written CSV, JSON
// and HTML output files.
package dedupe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage/local"
)

// ErrUnsupported is returned for files that are not .csv, .json or .html.
var ErrUnsupported = errors.New("unsupported file type")

// Options tunes a dedupe pass.
type Options struct {
	// Backup writes <path>.bak before the first rewrite of a file.
	Backup bool
}

// Result reports the record counts of one file.
type Result struct {
	Path   string
	Before int
	After  int
}

// Removed is the number of duplicates dropped.
func (r Result) Removed() int {
	if r.After > r.Before {
		return 0
	}
	return r.Before - r.After
}

// File dedupes path according to its extension. A missing file yields a zero Result.
func File(path string, opts Options) (Result, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Result{Path: path}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV(path, opts)
	case ".json":
		return JSON(path, opts)
	case ".html", ".htm":
		return HTML(path, opts)
	default:
		return Result{Path: path}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

// Targets expands glob patterns into a sorted, de-duplicated file list.
func Targets(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", p, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

type entryKey struct {
	reviewer string
	date     string
	link     string
	text     string
}

var whitespace = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	return strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(s), " "))
}

func keyOf(reviewer, date, link, text string) entryKey {
	return entryKey{
		reviewer: normalize(reviewer),
		date:     normalize(date),
		link:     review.Canonicalize(link),
		text:     normalize(text),
	}
}

// keySet tracks first occurrences.
type keySet map[entryKey]struct{}

func (s keySet) firstSeen(k entryKey) bool {
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

func rewrite(path string, data []byte, opts Options) error {
	if opts.Backup {
		if err := backup(path); err != nil {
			return err
		}
	}
	if err := local.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("rewrite %s: %w", path, err)
	}
	return nil
}

// backup copies path to path.bak unless a backup already exists.
func backup(path string) error {
	bak := path + ".bak"
	if _, err := os.Stat(bak); err == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read for backup: %w", err)
	}
	if err := os.WriteFile(bak, data, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}
