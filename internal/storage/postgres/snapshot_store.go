package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage"
)

// SnapshotStore keeps one row per snapshot with the records as jsonb.
type SnapshotStore struct {
	pool  dbPool
	table string
}

// NewSnapshotStore wraps an existing pool (a *pgxpool.Pool or a pgxmock pool).
func NewSnapshotStore(pool dbPool, table string) (*SnapshotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table, DefaultSnapshotTable)
	if err != nil {
		return nil, err
	}
	return &SnapshotStore{pool: pool, table: name}, nil
}

// EnsureSchema creates the snapshot table when missing.
func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id           TEXT PRIMARY KEY,
	records      JSONB NOT NULL,
	record_count INTEGER NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *SnapshotStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Load reads snapshot id. A missing row yields an empty sequence.
func (s *SnapshotStore) Load(ctx context.Context, id string) ([]review.Record, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT records FROM %s WHERE id = $1`, s.table)
	var data []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []review.Record{}, nil
		}
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return storage.Decode(data)
}

// Save upserts snapshot id with the full sequence.
func (s *SnapshotStore) Save(ctx context.Context, id string, records []review.Record) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	if records == nil {
		records = []review.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, records, record_count, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE
SET records = EXCLUDED.records,
	record_count = EXCLUDED.record_count,
	updated_at = EXCLUDED.updated_at`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, data, len(records)); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recently updated snapshot whose id starts with prefix.
func (s *SnapshotStore) Latest(ctx context.Context, prefix string) (string, bool, error) {
	query := fmt.Sprintf(`
SELECT id FROM %s
WHERE id LIKE $1 ESCAPE '\'
ORDER BY updated_at DESC, id DESC
LIMIT 1`, s.table)
	var id string
	if err := s.pool.QueryRow(ctx, query, escapeLike(prefix)+"%").Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("select latest snapshot: %w", err)
	}
	return id, true, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
