// Package export renders accepted records as CSV, JSON and HTML files.
package export

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/JakeFAU/review-crawler/internal/review"
	"github.com/JakeFAU/review-crawler/internal/storage"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// CSVHeader is the column order of CSV output.
var CSVHeader = []string{"reviewer", "date", "link", "text"}

// Meta is the summary shown at the top of HTML output.
type Meta struct {
	Title       string
	Criteria    string
	GeneratedAt time.Time
}

// WriteCSV writes a header row and one row per record.
func WriteCSV(w io.Writer, records []review.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Reviewer, r.Date(), r.Link, r.Body}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteJSON writes {"reviews":[...]}, the same shape snapshots use.
func WriteJSON(w io.Writer, records []review.Record) error {
	data, err := storage.Encode(records)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

var htmlTemplate = template.Must(template.New("reviews").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Meta.Title}}</title>
<style>
body { font-family: Arial, sans-serif; background: #f2f2f2; padding: 20px; }
h1 { text-align: center; color: #333; }
.card { background: #fff; border: 1px solid #ccc; border-radius: 8px; padding: 15px; margin: 15px auto; max-width: 800px; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
.reviewer { font-weight: bold; color: #222; }
.date { color: #555; font-size: 0.9em; margin-bottom: 5px; }
.link { color: #1a0dab; font-size: 0.9em; }
.text { margin-top: 10px; line-height: 1.5; color: #333; white-space: pre-wrap; }
.summary { max-width: 800px; margin: 20px auto; background: #eee; padding: 15px; border-radius: 8px; }
</style>
</head>
<body>
<h1>{{.Meta.Title}}</h1>
<div class="summary">
<strong>Total reviews scraped:</strong> {{len .Records}}<br>
<strong>Date/time of scrape:</strong> {{.Meta.GeneratedAt.Format "2006-01-02 15:04:05"}}<br>
{{- if .Meta.Criteria}}
<strong>Search criteria:</strong> {{.Meta.Criteria}}<br>
{{- end}}
</div>
{{- range .Records}}
<div class="card">
<div class="reviewer">{{.Reviewer}}</div>
<div class="date">{{.Date}}</div>
<div class="link"><a href="{{.Link}}" target="_blank">{{.Link}}</a></div>
<div class="text">{{.Body}}</div>
</div>
{{- end}}
</body>
</html>
`))

// WriteHTML renders a summary block followed by one escaped card per record.
func WriteHTML(w io.Writer, records []review.Record, meta Meta) error {
	if meta.Title == "" {
		meta.Title = "Reviews"
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	err := htmlTemplate.Execute(w, struct {
		Meta    Meta
		Records []review.Record
	}{Meta: meta, Records: records})
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
