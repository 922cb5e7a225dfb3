// Package extract pulls raw review records out of rendered HTML with goquery.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/review-crawler/internal/review"
)

// Config names the selectors that locate each field inside a review card.
type Config struct {
	CardSelector     string `mapstructure:"card_selector"`
	ReviewerSelector string `mapstructure:"reviewer_selector"`
	DefaultReviewer  string `mapstructure:"default_reviewer"`
	DateSelector     string `mapstructure:"date_selector"`
	DateAttr         string `mapstructure:"date_attr"`
	LinkSelector     string `mapstructure:"link_selector"`
	BodySelector     string `mapstructure:"body_selector"`
}

// DefaultConfig returns selectors for the common review card layout.
func DefaultConfig() Config {
	return Config{
		CardSelector:     "article",
		ReviewerSelector: "span[data-consumer-name-typography]",
		DefaultReviewer:  "Unknown",
		DateSelector:     "time",
		DateAttr:         "datetime",
		LinkSelector:     "a[href*='/reviews/']",
		BodySelector:     "p",
	}
}

// Extractor implements review.Extractor.
type Extractor struct {
	cfg Config
}

// New builds an Extractor. Empty selectors take their defaults.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.CardSelector == "" {
		cfg.CardSelector = def.CardSelector
	}
	if cfg.ReviewerSelector == "" {
		cfg.ReviewerSelector = def.ReviewerSelector
	}
	if cfg.DefaultReviewer == "" {
		cfg.DefaultReviewer = def.DefaultReviewer
	}
	if cfg.DateSelector == "" {
		cfg.DateSelector = def.DateSelector
	}
	if cfg.DateAttr == "" {
		cfg.DateAttr = def.DateAttr
	}
	if cfg.LinkSelector == "" {
		cfg.LinkSelector = def.LinkSelector
	}
	if cfg.BodySelector == "" {
		cfg.BodySelector = def.BodySelector
	}
	return &Extractor{cfg: cfg}
}

// Extract returns one raw record per review card in document order.
func (e *Extractor) Extract(page review.RawPage) ([]review.RawRecord, error) {
	if len(bytes.TrimSpace(page.Body)) == 0 {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse page %d: %w", page.Page, err)
	}
	base, _ := url.Parse(page.URL)

	var records []review.RawRecord
	doc.Find(e.cfg.CardSelector).Each(func(_ int, card *goquery.Selection) {
		records = append(records, review.RawRecord{
			Reviewer:      e.reviewer(card),
			OccurredAtRaw: e.date(card),
			LinkRaw:       e.link(card, base),
			BodyRaw:       e.body(card),
		})
	})
	return records, nil
}

func (e *Extractor) reviewer(card *goquery.Selection) string {
	if name := strings.TrimSpace(card.Find(e.cfg.ReviewerSelector).First().Text()); name != "" {
		return name
	}
	return e.cfg.DefaultReviewer
}

func (e *Extractor) date(card *goquery.Selection) string {
	sel := card.Find(e.cfg.DateSelector).First()
	if v, ok := sel.Attr(e.cfg.DateAttr); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(sel.Text())
}

func (e *Extractor) link(card *goquery.Selection, base *url.URL) string {
	href, ok := card.Find(e.cfg.LinkSelector).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// body picks the longest non-empty text block, which skips titles and
// "verified" badges rendered as sibling paragraphs.
func (e *Extractor) body(card *goquery.Selection) string {
	longest := ""
	card.Find(e.cfg.BodySelector).Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); len(text) > len(longest) {
			longest = text
		}
	})
	return longest
}
