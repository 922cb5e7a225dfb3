package review

import "slices"

// SignatureSize is the number of leading links that fingerprint a page.
const SignatureSize = 20

// Signature is the ordered canonical links of the first records on a page.
// Linkless records contribute an empty entry so positions are preserved.
type Signature []string

// SignatureOf fingerprints a page from its raw records in extraction order.
func SignatureOf(records []RawRecord) Signature {
	n := min(len(records), SignatureSize)
	sig := make(Signature, 0, n)
	for _, r := range records[:n] {
		sig = append(sig, Canonicalize(r.LinkRaw))
	}
	return sig
}

// Equal reports exact sequence equality.
func (s Signature) Equal(other Signature) bool {
	return slices.Equal(s, other)
}

// SignatureTracker remembers the previous page's signature and counts
// consecutive repeats.
type SignatureTracker struct {
	previous Signature
	seen     bool
	repeats  int
}

// Observe records sig and reports whether it repeats the previous one.
func (t *SignatureTracker) Observe(sig Signature) bool {
	if t.seen && sig.Equal(t.previous) {
		t.repeats++
	} else {
		t.repeats = 0
	}
	t.previous = sig
	t.seen = true
	return t.repeats > 0
}

// Repeats returns the current consecutive repeat count.
func (t *SignatureTracker) Repeats() int {
	return t.repeats
}
