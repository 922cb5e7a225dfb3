package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage"
	"github.com/JakeFAU/review-crawler/internal/storage/local"
)

// Config selects the output directory and formats.
type Config struct {
	Dir     string
	Formats []string
	Meta    Meta
}

// Writer writes <dir>/<id>.<format> for every configured format.
type Writer struct {
	dir     string
	formats []Format
	meta    Meta
	clock   review.Clock
	logger  *zap.Logger
}

// NewWriter validates cfg and creates the output directory.
func NewWriter(cfg Config, clock review.Clock, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	formats := make([]Format, 0, len(cfg.Formats))
	for _, f := range cfg.Formats {
		switch Format(strings.ToLower(f)) {
		case FormatCSV, FormatJSON, FormatHTML:
			formats = append(formats, Format(strings.ToLower(f)))
		default:
			return nil, fmt.Errorf("unsupported export format %q", f)
		}
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Writer{
		dir:     cfg.Dir,
		formats: formats,
		meta:    cfg.Meta,
		clock:   clock,
		logger:  logger.Named("export"),
	}, nil
}

// Path returns the output file for id in format f.
func (w *Writer) Path(id string, f Format) string {
	return filepath.Join(w.dir, id+"."+string(f))
}

// Write renders records in every format and returns the written paths.
func (w *Writer) Write(id string, records []review.Record) ([]string, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	meta := w.meta
	if w.clock != nil {
		meta.GeneratedAt = w.clock.Now()
	}
	paths := make([]string, 0, len(w.formats))
	for _, f := range w.formats {
		var buf bytes.Buffer
		var err error
		switch f {
		case FormatCSV:
			err = WriteCSV(&buf, records)
		case FormatJSON:
			err = WriteJSON(&buf, records)
		case FormatHTML:
			err = WriteHTML(&buf, records, meta)
		}
		if err != nil {
			return paths, err
		}
		path := w.Path(id, f)
		if err := local.WriteFileAtomic(path, buf.Bytes()); err != nil {
			return paths, fmt.Errorf("write %s output: %w", f, err)
		}
		paths = append(paths, path)
	}
	w.logger.Debug("outputs written", zap.String("snapshot_id", id), zap.Int("records", len(records)),
		zap.Strings("paths", paths))
	return paths, nil
}
