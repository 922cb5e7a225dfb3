package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage"
	"github.com/JakeFAU/review-crawler/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func sampleRecords() []review.Record {
	return []review.Record{
		{
			Reviewer:   "Ann",
			OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Link:       "https://reviews.example.com/reviews/1",
			Body:       "Fast, friendly \"service\"",
		},
		{
			Reviewer:   "<script>alert(1)</script>",
			OccurredAt: time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC),
			Link:       "https://reviews.example.com/reviews/2",
			Body:       "Line one\nline two",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"Ann", "2024-06-01", "https://reviews.example.com/reviews/1", "Fast, friendly \"service\""}, rows[1])
	assert.Equal(t, "Line one\nline two", rows[2][3])
}

func TestWriteJSONMatchesSnapshotFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRecords()))
	decoded, err := storage.Decode(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, "Ann", decoded[0].Reviewer)
	assert.Contains(t, buf.String(), `"reviews"`)
}

func TestWriteHTMLEscapesAndSummarizes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	meta := Meta{
		Title:       "Acme Reviews",
		Criteria:    "Reviews from the last 3 months",
		GeneratedAt: time.Date(2024, 6, 2, 8, 30, 0, 0, time.UTC),
	}
	require.NoError(t, WriteHTML(&buf, sampleRecords(), meta))

	out := buf.String()
	assert.Contains(t, out, "<title>Acme Reviews</title>")
	assert.Contains(t, out, "<strong>Total reviews scraped:</strong> 2<br>")
	assert.Contains(t, out, "2024-06-02 08:30:00")
	assert.Contains(t, out, "<strong>Search criteria:</strong> Reviews from the last 3 months")
	assert.Equal(t, 2, strings.Count(out, `<div class="card">`))
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestWriterWritesConfiguredFormats(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewWriter(Config{Dir: dir, Formats: []string{"csv", "HTML"}}, fixedClock{now: time.Now()}, nil)
	require.NoError(t, err)

	paths, err := w.Write("acme_pages-2", sampleRecords())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "acme_pages-2.csv"), filepath.Join(dir, "acme_pages-2.html")}, paths)
	for _, p := range paths {
		_, err := os.Stat(p)
		require.NoError(t, err)
	}
	_, err = os.Stat(filepath.Join(dir, "acme_pages-2.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewWriterRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(Config{Dir: ""}, nil, nil)
	require.Error(t, err)
	_, err = NewWriter(Config{Dir: t.TempDir(), Formats: []string{"xml"}}, nil, nil)
	require.ErrorContains(t, err, "xml")
}

func TestMirrorStoreExportsAfterSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, Formats: []string{"csv"}}, nil, nil)
	require.NoError(t, err)
	inner := memory.NewSnapshotStore()
	store := NewMirrorStore(inner, w, nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "acme", sampleRecords()))
	got, err := store.Load(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, got, 2)

	data, err := os.ReadFile(filepath.Join(dir, "acme.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "reviewer,date,link,text")

	id, ok, err := store.Latest(ctx, "ac")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "acme", id)
}

type failingStore struct{ err error }

func (f failingStore) Load(context.Context, string) ([]review.Record, error) { return nil, f.err }

func (f failingStore) Save(context.Context, string, []review.Record) error { return f.err }

func TestMirrorStoreSkipsExportOnSaveError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, Formats: []string{"csv"}}, nil, nil)
	require.NoError(t, err)
	boom := errors.New("disk full")
	store := NewMirrorStore(failingStore{err: boom}, w, nil)

	require.ErrorIs(t, store.Save(context.Background(), "acme", sampleRecords()), boom)
	_, statErr := os.Stat(filepath.Join(dir, "acme.csv"))
	require.ErrorIs(t, statErr, os.ErrNotExist)

	_, ok, err := store.Latest(context.Background(), "a")
	require.NoError(t, err)
	require.False(t, ok)
}
