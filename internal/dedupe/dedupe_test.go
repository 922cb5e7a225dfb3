package dedupe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/export"
	"github.com/JakeFAU/review-crawler/internal/review"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCSVRemovesNormalizedDuplicates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "acme.csv", strings.Join([]string{
		"reviewer,date,link,text",
		"Ann,2024-06-01,https://r.example.com/reviews/1,Great service",
		"ann ,2024-06-01,https://r.example.com/reviews/1?utm=x,great   SERVICE",
		"Bob,2024-06-02,https://r.example.com/reviews/2,Slow",
		"",
	}, "\n"))

	res, err := File(path, Options{Backup: true})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Before)
	assert.Equal(t, 2, res.After)
	assert.Equal(t, 1, res.Removed())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
	assert.NotContains(t, string(data), "utm=x")

	bak, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Contains(t, string(bak), "utm=x")
}

func TestBackupWrittenOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "acme.csv", "reviewer,date,link,text\nA,2024-01-01,,x\nA,2024-01-01,,x\n")

	_, err := File(path, Options{Backup: true})
	require.NoError(t, err)
	_, err = File(path, Options{Backup: true})
	require.NoError(t, err)

	bak, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(bak), "A,2024-01-01"), "backup must keep the original content")
}

func TestJSONDedupe(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "acme.json", `{"reviews":[
		{"reviewer":"Ann","date":"2024-06-01","link":"https://r.example.com/reviews/1","text":"Great"},
		{"reviewer":"Ann","date":"2024-06-01","link":"https://r.example.com/reviews/1#top","text":"great"},
		{"reviewer":"Ann","date":"2024-06-01","link":"https://r.example.com/reviews/9","text":"Great"}
	]}`)

	res, err := File(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Before)
	assert.Equal(t, 2, res.After)

	_, err = os.Stat(path + ".bak")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHTMLDedupeUpdatesSummary(t *testing.T) {
	t.Parallel()

	rec := review.Record{
		Reviewer:   "Ann",
		OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Link:       "https://r.example.com/reviews/1",
		Body:       "Great <b>service</b>",
	}
	other := rec
	other.Link = "https://r.example.com/reviews/2"

	dir := t.TempDir()
	path := filepath.Join(dir, "acme.html")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, export.WriteHTML(f, []review.Record{rec, rec, other}, export.Meta{Title: "Acme"}))
	require.NoError(t, f.Close())

	res, err := File(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Before)
	assert.Equal(t, 2, res.After)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Equal(t, 2, strings.Count(out, `class="card"`))
	assert.Contains(t, out, "<strong>Total reviews scraped:</strong> 2")
	assert.Contains(t, out, "&lt;b&gt;service&lt;/b&gt;")
}

func TestFileUnsupportedAndMissing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	res, err := File(filepath.Join(dir, "absent.csv"), Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Before)

	path := writeFile(t, dir, "notes.txt", "hello")
	_, err = File(path, Options{})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestTargets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	b := writeFile(t, dir, "b_reviews.csv", "")
	a := writeFile(t, dir, "a_reviews.csv", "")
	j := writeFile(t, dir, "a_reviews.json", "")

	got, err := Targets([]string{filepath.Join(dir, "*.csv"), filepath.Join(dir, "a_*"), filepath.Join(dir, "none*")})
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, j}, got)
}
