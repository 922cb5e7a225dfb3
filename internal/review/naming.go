package review

import (
	"fmt"
	"strings"
	"time"
)

const snapshotTimeLayout = "2006-01-02_15-04-05"

// SnapshotName builds the default snapshot identifier for a run, e.g.
// "reviews_months-3_2025-01-31_08-00-00".
func SnapshotName(prefix string, c Criteria, now time.Time) string {
	parts := []string{prefix}
	switch c.Mode {
	case ModePages:
		if c.PageLimit > 0 {
			parts = append(parts, fmt.Sprintf("pages-%d", c.PageLimit))
		} else {
			parts = append(parts, "pages-all")
		}
	case ModeMonths:
		parts = append(parts, fmt.Sprintf("months-%d", c.MonthsBack))
	case ModeDateRange:
		parts = append(parts, fmt.Sprintf("range-%s_%s", FormatDate(c.Start), FormatDate(c.End)))
	case ModeKeywords:
		terms := make([]string, 0, len(c.AndTerms)+len(c.OrTerms))
		for _, t := range append(append([]string(nil), c.AndTerms...), c.OrTerms...) {
			terms = append(terms, strings.ReplaceAll(strings.TrimSpace(t), " ", "_"))
		}
		parts = append(parts, "keywords-"+strings.Join(terms, ",_"))
	}
	parts = append(parts, now.Format(snapshotTimeLayout))
	return strings.Join(parts, "_")
}
