package review

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar-date layout used for record dates.
const DateLayout = "2006-01-02"

// Record is one accepted review.
type Record struct {
	Reviewer   string
	OccurredAt time.Time
	Link       string
	Body       string
}

type recordJSON struct {
	Reviewer string `json:"reviewer"`
	Date     string `json:"date"`
	Link     string `json:"link"`
	Text     string `json:"text"`
}

// Date returns the record date in ISO form.
func (r Record) Date() string {
	return FormatDate(r.OccurredAt)
}

// MarshalJSON encodes the record with a calendar date.
func (r Record) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(recordJSON{
		Reviewer: r.Reviewer,
		Date:     r.Date(),
		Link:     r.Link,
		Text:     r.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// UnmarshalJSON decodes a record written by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	date, err := ParseDate(raw.Date)
	if err != nil {
		return fmt.Errorf("decode record date: %w", err)
	}
	*r = Record{
		Reviewer:   raw.Reviewer,
		OccurredAt: date,
		Link:       raw.Link,
		Body:       raw.Text,
	}
	return nil
}

// RawRecord is a record as produced by an Extractor, before parsing.
type RawRecord struct {
	Reviewer      string
	OccurredAtRaw string
	LinkRaw       string
	BodyRaw       string
}

// PageRequest identifies one page of the source.
type PageRequest struct {
	SourceURL string
	Page      int
}

// RawPage is the rendered markup of one page.
type RawPage struct {
	URL        string
	Page       int
	StatusCode int
	Body       []byte
	Headless   bool
}

// ParseDate parses a calendar date, accepting a bare date or an ISO timestamp
// (anything after the 'T' is ignored). The result is midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if idx := strings.IndexByte(value, 'T'); idx >= 0 {
		value = value[:idx]
	}
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrDateUnparseable)
	}
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateUnparseable, raw)
	}
	return t, nil
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}
