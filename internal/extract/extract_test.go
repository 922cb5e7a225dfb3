package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/review"
)

const listing = `<!doctype html>
<html><body>
<article>
  <span data-consumer-name-typography="true"> Jane D. </span>
  <time datetime="2024-06-10T08:30:00.000Z">June 10, 2024</time>
  <a href="/reviews/abc123?utm_medium=list">Great support</a>
  <p>Verified</p>
  <p>Support answered within minutes and refunded the duplicate charge.</p>
</article>
<article>
  <time>2024-06-09</time>
  <p>No link here, but the courier was rude.</p>
</article>
<article>
  <span data-consumer-name-typography="true"></span>
  <a href="https://other.example.com/reviews/zzz">teaser</a>
</article>
</body></html>`

func TestExtractDefaults(t *testing.T) {
	t.Parallel()

	page := review.RawPage{URL: "https://reviews.example.com/company/acme?page=1", Page: 1, Body: []byte(listing)}
	got, err := New(Config{}).Extract(page)
	require.NoError(t, err)

	want := []review.RawRecord{
		{
			Reviewer:      "Jane D.",
			OccurredAtRaw: "2024-06-10T08:30:00.000Z",
			LinkRaw:       "https://reviews.example.com/reviews/abc123?utm_medium=list",
			BodyRaw:       "Support answered within minutes and refunded the duplicate charge.",
		},
		{
			Reviewer:      "Unknown",
			OccurredAtRaw: "2024-06-09",
			BodyRaw:       "No link here, but the courier was rude.",
		},
		{
			Reviewer: "Unknown",
			LinkRaw:  "https://other.example.com/reviews/zzz",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractCustomSelectors(t *testing.T) {
	t.Parallel()

	body := `<div class="r"><b class="who">Sam</b><span class="when" data-d="2024-01-02">x</span>
<div class="txt">Slow delivery</div></div>`
	ex := New(Config{
		CardSelector:     "div.r",
		ReviewerSelector: "b.who",
		DateSelector:     "span.when",
		DateAttr:         "data-d",
		BodySelector:     "div.txt",
	})
	got, err := ex.Extract(review.RawPage{Body: []byte(body)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Sam", got[0].Reviewer)
	require.Equal(t, "2024-01-02", got[0].OccurredAtRaw)
	require.Equal(t, "Slow delivery", got[0].BodyRaw)
	require.Empty(t, got[0].LinkRaw)
}

func TestExtractEmptyPage(t *testing.T) {
	t.Parallel()

	got, err := New(Config{}).Extract(review.RawPage{Body: []byte("  ")})
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = New(Config{}).Extract(review.RawPage{Body: []byte("<html><body><p>no cards</p></body></html>")})
	require.NoError(t, err)
	require.Empty(t, got)
}
