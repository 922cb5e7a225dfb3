package review

// Termination thresholds shared by every mode.
const (
	NoAdditionsThreshold     = 3
	SignatureRepeatThreshold = 1
)

// StopReason explains why a session ended. The empty value means "continue".
type StopReason string

// Stop reasons reported by the policy and the collection loop.
const (
	StopNone              StopReason = ""
	StopPageLimit         StopReason = "page_limit"
	StopSignatureRepeated StopReason = "signature_repeated"
	StopNoAdditions       StopReason = "no_additions"
	StopPastCutoff        StopReason = "past_cutoff"
	StopCanceled          StopReason = "canceled"
)

// PageOutcome carries the per-page inputs of the termination decision,
// after the session counters were updated for the page.
type PageOutcome struct {
	Added                  int
	SignatureRepeats       int
	ConsecutiveNoAdditions int
	AllOlderThanCutoff     bool
}

// Policy is the unified termination table for all modes.
type Policy struct {
	criteria Criteria
}

// NewPolicy builds the policy for c.
func NewPolicy(c Criteria) Policy {
	return Policy{criteria: c}
}

// BeforeFetch is evaluated before page cursor is fetched.
func (p Policy) BeforeFetch(cursor int) StopReason {
	if p.criteria.Mode == ModePages && p.criteria.PageLimit > 0 && cursor > p.criteria.PageLimit {
		return StopPageLimit
	}
	return StopNone
}

// AfterPage is evaluated once a page has been processed and persisted.
func (p Policy) AfterPage(o PageOutcome) StopReason {
	repeated := o.SignatureRepeats >= SignatureRepeatThreshold
	starved := o.ConsecutiveNoAdditions >= NoAdditionsThreshold

	switch p.criteria.Mode {
	case ModePages:
		if p.criteria.PageLimit > 0 {
			return StopNone
		}
		return starvation(repeated, starved)
	case ModeMonths:
		if o.AllOlderThanCutoff && (o.Added == 0 || o.ConsecutiveNoAdditions >= 1) {
			return StopPastCutoff
		}
		if repeated {
			return StopSignatureRepeated
		}
		return StopNone
	case ModeDateRange, ModeKeywords:
		return starvation(repeated, starved)
	default:
		return StopNone
	}
}

func starvation(repeated, starved bool) StopReason {
	switch {
	case repeated:
		return StopSignatureRepeated
	case starved:
		return StopNoAdditions
	default:
		return StopNone
	}
}
