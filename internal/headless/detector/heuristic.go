// Package detector decides when a plainly fetched review page must be
// rendered again in a headless browser.
package detector

import (
	"bytes"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/review-crawler/internal/review"
)

const (
	defaultBodyThreshold = 2048
	// scriptSharePercent is the share of a small page taken up by script
	// elements above which the page is treated as a client-rendered shell.
	scriptSharePercent = 25
	appShellSelector   = "#__next, #root, #app, [data-reactroot], script#__NEXT_DATA__"
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
	// CardSelector, when set, is the markup that proves reviews were
	// rendered server-side. It decides on its own when present.
	CardSelector string
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int, cardSelector string) *Heuristic {
	if threshold <= 0 {
		threshold = defaultBodyThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold, CardSelector: cardSelector}
}

// ShouldPromote decides whether a headless fetch is required. Pages that
// were already rendered headless, and error pages, are never promoted.
func (h *Heuristic) ShouldPromote(page review.RawPage) bool {
	if page.StatusCode != http.StatusOK || page.Headless {
		return false
	}
	if len(bytes.TrimSpace(page.Body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return false
	}
	if h.CardSelector != "" {
		return doc.Find(h.CardSelector).Length() == 0
	}
	if len(page.Body) < h.BodyLengthThreshold && scriptShare(doc, len(page.Body)) >= scriptSharePercent {
		return true
	}
	return doc.Find(appShellSelector).Length() > 0
}

// scriptShare returns the percentage of bodyLen occupied by script elements.
func scriptShare(doc *goquery.Document, bodyLen int) int {
	if bodyLen == 0 {
		return 0
	}
	covered := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if html, err := goquery.OuterHtml(s); err == nil {
			covered += len(html)
		}
	})
	return covered * 100 / bodyLen
}
