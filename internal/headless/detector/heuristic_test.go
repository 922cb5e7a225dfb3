package detector

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/review"
)

func okPage(body string) review.RawPage {
	return review.RawPage{StatusCode: 200, Body: []byte(body)}
}

func TestHeuristic_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100, "")
	require.True(t, h.ShouldPromote(okPage("")))
}

func TestHeuristic_ShouldPromote_SPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100, "")
	require.True(t, h.ShouldPromote(okPage(`<div id="__next"></div>`)))
}

func TestHeuristic_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000, "")
	require.True(t, h.ShouldPromote(okPage(`<html><script>var a=1;</script><p>t</p></html>`)))
}

func TestHeuristic_ShouldPromote_DisabledForNon200(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100, "")
	require.False(t, h.ShouldPromote(review.RawPage{StatusCode: 404, Body: []byte("not found")}))
}

func TestHeuristic_ShouldPromote_NeverRepromotesHeadless(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100, "")
	page := okPage("")
	page.Headless = true
	require.False(t, h.ShouldPromote(page))
}

func TestHeuristic_CardSelector(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100, "article.review")
	rendered := `<div id="__next"><article class="review"><p>Great</p></article></div>`
	require.False(t, h.ShouldPromote(okPage(rendered)), "server-rendered cards need no browser")

	shell := `<div id="__next"><noscript>enable js</noscript></div>`
	require.True(t, h.ShouldPromote(okPage(shell)))
}

func TestHeuristic_NextDataScript(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10, "")
	body := `<html><body><p>loading</p><script id="__NEXT_DATA__" type="application/json">{}</script></body></html>`
	require.True(t, h.ShouldPromote(okPage(body)))
	require.False(t, h.ShouldPromote(okPage(`<html><body><p>static review list</p></body></html>`)))
}

func TestScriptShare(t *testing.T) {
	t.Parallel()

	share := func(body string) int {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		require.NoError(t, err)
		return scriptShare(doc, len(body))
	}
	require.Zero(t, share("<p>plain text only</p>"))
	require.GreaterOrEqual(t, share("<script>unterminated"), scriptSharePercent)
	require.Zero(t, scriptShare(nil, 0))
}
