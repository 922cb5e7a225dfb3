// Package gcs provides a snapshot store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name, e.g. "snapshots".
	Prefix string
}

// objectInfo is the subset of object attributes Latest needs.
type objectInfo struct {
	Name    string
	Updated time.Time
}

// bucket abstracts the object operations so tests can run without GCS.
type bucket interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]objectInfo, error)
}

var errNotFound = errors.New("object not found")

// SnapshotStore writes snapshots to a configured GCS bucket.
type SnapshotStore struct {
	bucket bucket
	prefix string
}

// New creates a GCS-backed snapshot store.
func New(client *gcstorage.Client, cfg Config) (*SnapshotStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return newWithBucket(&clientBucket{handle: client.Bucket(cfg.Bucket)}, cfg.Prefix), nil
}

func newWithBucket(b bucket, prefix string) *SnapshotStore {
	return &SnapshotStore{bucket: b, prefix: strings.Trim(prefix, "/")}
}

func (s *SnapshotStore) objectName(id string) string {
	if s.prefix == "" {
		return id + ".json"
	}
	return path.Join(s.prefix, id+".json")
}

// Load downloads snapshot id. A missing object yields an empty sequence.
func (s *SnapshotStore) Load(ctx context.Context, id string) ([]review.Record, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	data, err := s.bucket.Get(ctx, s.objectName(id))
	if errors.Is(err, errNotFound) {
		return []review.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", s.objectName(id), err)
	}
	return storage.Decode(data)
}

// Save uploads snapshot id, replacing any previous generation.
func (s *SnapshotStore) Save(ctx context.Context, id string, records []review.Record) error {
	if err := storage.ValidateID(id); err != nil {
		return err
	}
	data, err := storage.Encode(records)
	if err != nil {
		return err
	}
	if err := s.bucket.Put(ctx, s.objectName(id), storage.ContentType, data); err != nil {
		return fmt.Errorf("write object %s: %w", s.objectName(id), err)
	}
	return nil
}

// Latest returns the most recently updated snapshot whose id starts with prefix.
func (s *SnapshotStore) Latest(ctx context.Context, prefix string) (string, bool, error) {
	objects, err := s.bucket.List(ctx, s.objectName(prefix))
	if err != nil {
		return "", false, fmt.Errorf("list objects: %w", err)
	}
	var best objectInfo
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Name, ".json") {
			continue
		}
		if best.Name == "" || obj.Updated.After(best.Updated) {
			best = obj
		}
	}
	if best.Name == "" {
		return "", false, nil
	}
	return strings.TrimSuffix(path.Base(best.Name), ".json"), true, nil
}

type clientBucket struct {
	handle *gcstorage.BucketHandle
}

func (b *clientBucket) Put(ctx context.Context, name, contentType string, data []byte) error {
	writer := b.handle.Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func (b *clientBucket) Get(ctx context.Context, name string) ([]byte, error) {
	reader, err := b.handle.Object(name).NewReader(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (b *clientBucket) List(ctx context.Context, prefix string) ([]objectInfo, error) {
	it := b.handle.Objects(ctx, &gcstorage.Query{Prefix: strings.TrimSuffix(prefix, ".json")})
	var out []objectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("iterate objects: %w", err)
		}
		out = append(out, objectInfo{Name: attrs.Name, Updated: attrs.Updated})
	}
}
