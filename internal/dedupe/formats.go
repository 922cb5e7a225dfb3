package dedupe

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CSV dedupes a CSV file with a reviewer,date,link,text header.
func CSV(path string, opts Options) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Path: path}, fmt.Errorf("read csv: %w", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return Result{Path: path}, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return Result{Path: path}, nil
	}
	header, body := rows[0], rows[1:]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(row []string, name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	seen := keySet{}
	kept := [][]string{header}
	for _, row := range body {
		k := keyOf(field(row, "reviewer"), field(row, "date"), field(row, "link"), field(row, "text"))
		if seen.firstSeen(k) {
			kept = append(kept, row)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(kept); err != nil {
		return Result{Path: path}, fmt.Errorf("encode csv: %w", err)
	}
	res := Result{Path: path, Before: len(body), After: len(kept) - 1}
	return res, rewrite(path, buf.Bytes(), opts)
}

type jsonEntry struct {
	Reviewer string `json:"reviewer"`
	Date     string `json:"date"`
	Link     string `json:"link"`
	Text     string `json:"text"`
}

// JSON dedupes a {"reviews":[...]} file.
func JSON(path string, opts Options) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Path: path}, fmt.Errorf("read json: %w", err)
	}
	var doc struct {
		Reviews []jsonEntry `json:"reviews"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Result{Path: path}, fmt.Errorf("parse json: %w", err)
	}

	seen := keySet{}
	kept := make([]jsonEntry, 0, len(doc.Reviews))
	for _, e := range doc.Reviews {
		if seen.firstSeen(keyOf(e.Reviewer, e.Date, e.Link, e.Text)) {
			kept = append(kept, e)
		}
	}
	out, err := json.MarshalIndent(struct {
		Reviews []jsonEntry `json:"reviews"`
	}{Reviews: kept}, "", "  ")
	if err != nil {
		return Result{Path: path}, fmt.Errorf("encode json: %w", err)
	}
	res := Result{Path: path, Before: len(doc.Reviews), After: len(kept)}
	return res, rewrite(path, out, opts)
}

var totalPattern = regexp.MustCompile(`(<strong>Total reviews scraped:</strong>\s*)\d+`)

// HTML dedupes div.card entries and refreshes the summary total.
func HTML(path string, opts Options) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{Path: path}, fmt.Errorf("open html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(f)
	_ = f.Close()
	if err != nil {
		return Result{Path: path}, fmt.Errorf("parse html: %w", err)
	}

	cards := doc.Find("div.card")
	before := cards.Length()
	seen := keySet{}
	removed := 0
	cards.Each(func(_ int, card *goquery.Selection) {
		link, _ := card.Find(".link a").First().Attr("href")
		k := keyOf(
			card.Find(".reviewer").First().Text(),
			card.Find(".date").First().Text(),
			link,
			card.Find(".text").First().Text(),
		)
		if !seen.firstSeen(k) {
			card.Remove()
			removed++
		}
	})
	after := before - removed

	if summary := doc.Find(".summary").First(); summary.Length() > 0 {
		inner, err := summary.Html()
		if err == nil {
			summary.SetHtml(totalPattern.ReplaceAllString(inner, "${1}"+strconv.Itoa(after)))
		}
	}

	rendered, err := doc.Html()
	if err != nil {
		return Result{Path: path}, fmt.Errorf("render html: %w", err)
	}
	res := Result{Path: path, Before: before, After: after}
	return res, rewrite(path, []byte(rendered), opts)
}
