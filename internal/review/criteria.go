package review

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Mode selects the filter branch and the termination rules of a session.
type Mode string

// Supported collection modes.
const (
	ModePages     Mode = "pages"
	ModeMonths    Mode = "months"
	ModeDateRange Mode = "date_range"
	ModeKeywords  Mode = "keywords"
)

// daysPerMonth approximates a month for the rolling MonthsBack window.
const daysPerMonth = 30

// Criteria is the active collection mode plus its parameters.
// Exactly one branch is meaningful, chosen by Mode.
type Criteria struct {
	Mode Mode

	// PageLimit bounds ModePages; zero means unbounded.
	PageLimit int

	// MonthsBack and Cutoff drive ModeMonths. Cutoff is computed once at
	// session start by WithCutoff.
	MonthsBack int
	Cutoff     time.Time

	// Start and End are inclusive calendar dates for ModeDateRange.
	Start time.Time
	End   time.Time

	// AndTerms and OrTerms drive ModeKeywords; matching is case-insensitive.
	AndTerms []string
	OrTerms  []string
}

// WithCutoff returns a copy of c with the MonthsBack cutoff anchored at now.
func (c Criteria) WithCutoff(now time.Time) Criteria {
	if c.Mode == ModeMonths {
		c.Cutoff = now.UTC().AddDate(0, 0, -daysPerMonth*c.MonthsBack)
	}
	return c
}

// Validate checks that the parameters of the selected mode are usable.
func (c Criteria) Validate() error {
	switch c.Mode {
	case ModePages:
		if c.PageLimit < 0 {
			return fmt.Errorf("%w: page limit must be >= 0", ErrInvalidCriteria)
		}
	case ModeMonths:
		if c.MonthsBack <= 0 {
			return fmt.Errorf("%w: months back must be > 0", ErrInvalidCriteria)
		}
	case ModeDateRange:
		if c.Start.IsZero() || c.End.IsZero() {
			return fmt.Errorf("%w: date range needs start and end", ErrInvalidCriteria)
		}
		if c.End.Before(c.Start) {
			return fmt.Errorf("%w: date range end before start", ErrInvalidCriteria)
		}
	case ModeKeywords:
		if len(c.AndTerms) == 0 && len(c.OrTerms) == 0 {
			return fmt.Errorf("%w: keywords mode needs at least one term", ErrInvalidCriteria)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidCriteria, c.Mode)
	}
	return nil
}

// Accepts reports whether r passes the filter of the selected mode.
//
// Keywords: every AND term must occur in the body. OR terms are only checked
// when no AND terms were given, so AND terms alone are sufficient.
func (c Criteria) Accepts(r Record) bool {
	switch c.Mode {
	case ModeMonths:
		return !r.OccurredAt.Before(c.Cutoff)
	case ModeDateRange:
		return !r.OccurredAt.Before(c.Start) && !r.OccurredAt.After(c.End)
	case ModeKeywords:
		return c.acceptsKeywords(r.Body)
	default:
		return true
	}
}

func (c Criteria) acceptsKeywords(body string) bool {
	lower := strings.ToLower(body)
	for _, term := range c.AndTerms {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	if len(c.OrTerms) == 0 || len(c.AndTerms) > 0 {
		return true
	}
	for _, term := range c.OrTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// OlderThanCutoff reports whether date falls before the MonthsBack cutoff.
func (c Criteria) OlderThanCutoff(date time.Time) bool {
	return c.Mode == ModeMonths && date.Before(c.Cutoff)
}

var andMarker = regexp.MustCompile(`(?i)\bAND\b`)

// ParseKeywords splits raw terms into AND and OR groups. A term prefixed with
// '+' or containing the word AND is an AND term; anything else is an OR term.
// Raw terms may themselves be comma-separated.
func ParseKeywords(raw []string) (andTerms, orTerms []string) {
	for _, entry := range raw {
		for _, term := range strings.Split(entry, ",") {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			switch {
			case strings.HasPrefix(term, "+"):
				if t := strings.TrimSpace(strings.TrimLeft(term, "+")); t != "" {
					andTerms = append(andTerms, t)
				}
			case andMarker.MatchString(term):
				if t := strings.Join(strings.Fields(andMarker.ReplaceAllString(term, " ")), " "); t != "" {
					andTerms = append(andTerms, t)
				}
			default:
				orTerms = append(orTerms, term)
			}
		}
	}
	return andTerms, orTerms
}

// Describe renders a one-line human summary of the criteria.
func (c Criteria) Describe() string {
	switch c.Mode {
	case ModePages:
		if c.PageLimit > 0 {
			return fmt.Sprintf("Limited to %d pages", c.PageLimit)
		}
		return "All pages"
	case ModeMonths:
		return fmt.Sprintf("Reviews from the last %d months", c.MonthsBack)
	case ModeDateRange:
		return fmt.Sprintf("Reviews from %s to %s", FormatDate(c.Start), FormatDate(c.End))
	case ModeKeywords:
		parts := make([]string, 0, len(c.AndTerms)+len(c.OrTerms))
		for _, t := range c.AndTerms {
			parts = append(parts, t+" (AND)")
		}
		for _, t := range c.OrTerms {
			parts = append(parts, t+" (OR)")
		}
		return "Keywords - " + strings.Join(parts, ", ")
	default:
		return ""
	}
}
