// Package local implements a snapshot store on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage"
)

const snapshotExt = ".json"

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the directory holding one <id>.json file per snapshot.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// SnapshotStore keeps snapshots as JSON files.
type SnapshotStore struct {
	baseDir string
}

// New creates a filesystem-backed store, creating BaseDir when missing.
func New(cfg Config) (*SnapshotStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up test file: %w", err)
	}
	return &SnapshotStore{baseDir: cfg.BaseDir}, nil
}

// Path returns the file that holds snapshot id.
func (s *SnapshotStore) Path(id string) string {
	return filepath.Join(s.baseDir, id+snapshotExt)
}

// Load reads snapshot id. A missing file yields an empty sequence.
func (s *SnapshotStore) Load(_ context.Context, id string) ([]review.Record, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return []review.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", id, err)
	}
	records, err := storage.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", id, err)
	}
	return records, nil
}

// Save overwrites snapshot id. The file is replaced atomically so readers
// never observe a partially written snapshot.
func (s *SnapshotStore) Save(_ context.Context, id string, records []review.Record) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	data, err := storage.Encode(records)
	if err != nil {
		return err
	}
	if err := WriteFileAtomic(s.Path(id), data); err != nil {
		return fmt.Errorf("save snapshot %q: %w", id, err)
	}
	return nil
}

// WriteFileAtomic replaces path with data via a synced temp file in the same
// directory and a rename.
func WriteFileAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Latest returns the most recently written snapshot whose id starts with prefix.
func (s *SnapshotStore) Latest(_ context.Context, prefix string) (string, bool, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return "", false, fmt.Errorf("list snapshots: %w", err)
	}
	var (
		bestID   string
		bestTime time.Time
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		id := strings.TrimSuffix(name, snapshotExt)
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if bestID == "" || mod.After(bestTime) || (mod.Equal(bestTime) && id > bestID) {
			bestID, bestTime = id, mod
		}
	}
	return bestID, bestID != "", nil
}
