package collector

import (
	"strings"

	"github.com/JakeFAU/review-crawler/internal/review"
)

// session is the in-memory state of one run. It is owned by the loop.
type session struct {
	records     []review.Record
	seen        *review.Seen
	tracker     review.SignatureTracker
	noAdditions int
}

func newSession(prior []review.Record) *session {
	s := &session{seen: review.NewSeen()}
	if len(prior) > 0 {
		s.records = append(s.records, prior...)
		s.seen.SeedFrom(prior)
	}
	return s
}

// pageResult holds the records of one page before they are committed.
type pageResult struct {
	found        int
	accepted     []review.Record
	keys         []review.Key
	skippedEmpty int
	skippedDate  int
	rejected     int
	duplicates   int
	datedRecords int
	olderOnPage  int
	signature    review.Signature
}

// stage filters, keys and deduplicates raw records without touching the
// session, so a page is either committed whole or not at all.
func (s *session) stage(raw []review.RawRecord, criteria review.Criteria) pageResult {
	res := pageResult{found: len(raw)}
	if len(raw) > 0 {
		res.signature = review.SignatureOf(raw)
	}
	pending := make(map[review.Key]struct{}, len(raw))
	for _, r := range raw {
		date, err := review.ParseDate(r.OccurredAtRaw)
		if err == nil {
			res.datedRecords++
			if criteria.OlderThanCutoff(date) {
				res.olderOnPage++
			}
		}
		body := strings.TrimSpace(r.BodyRaw)
		if body == "" {
			res.skippedEmpty++
			continue
		}
		if err != nil {
			res.skippedDate++
			continue
		}
		rec := review.Record{
			Reviewer:   strings.TrimSpace(r.Reviewer),
			OccurredAt: date,
			Link:       review.Canonicalize(r.LinkRaw),
			Body:       body,
		}
		if !criteria.Accepts(rec) {
			res.rejected++
			continue
		}
		key := review.KeyFor(rec)
		if _, dup := pending[key]; dup || s.seen.Contains(key) {
			res.duplicates++
			continue
		}
		pending[key] = struct{}{}
		res.accepted = append(res.accepted, rec)
		res.keys = append(res.keys, key)
	}
	return res
}

// commit applies a staged page and returns the termination inputs.
func (s *session) commit(res pageResult) review.PageOutcome {
	for i, rec := range res.accepted {
		s.seen.Insert(res.keys[i])
		s.records = append(s.records, rec)
	}
	added := len(res.accepted)
	if added == 0 {
		s.noAdditions++
	} else {
		s.noAdditions = 0
	}
	repeats := 0
	if res.found > 0 {
		s.tracker.Observe(res.signature)
		repeats = s.tracker.Repeats()
	}
	return review.PageOutcome{
		Added:                  added,
		SignatureRepeats:       repeats,
		ConsecutiveNoAdditions: s.noAdditions,
		AllOlderThanCutoff:     res.datedRecords > 0 && res.olderOnPage == res.datedRecords,
	}
}

// snapshot returns a copy of the accepted sequence.
func (s *session) snapshot() []review.Record {
	return append([]review.Record(nil), s.records...)
}
