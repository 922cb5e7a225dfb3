package review

import (
	"strings"

	"github.com/JakeFAU/review-crawler/internal/hash/sha256"
)

// KeyKind tells which identity variant a Key carries.
type KeyKind uint8

// Key variants.
const (
	LinkKey KeyKind = iota + 1
	HashKey
)

// Key is the stable identity of a record across sessions.
type Key struct {
	Kind  KeyKind
	Value string
}

func (k Key) String() string {
	switch k.Kind {
	case LinkKey:
		return "link::" + k.Value
	case HashKey:
		return "hash::" + k.Value
	default:
		return ""
	}
}

// Canonicalize strips the fragment and query string of a link and trims it.
func Canonicalize(link string) string {
	base, _, _ := strings.Cut(link, "#")
	base, _, _ = strings.Cut(base, "?")
	return strings.TrimSpace(base)
}

// NewKey derives a record identity. The canonical link wins when present;
// otherwise the key is a SHA-256 digest of reviewer, date and body.
func NewKey(reviewer, occurredAt, link, body string) Key {
	if canonical := Canonicalize(link); canonical != "" {
		return Key{Kind: LinkKey, Value: canonical}
	}
	return Key{Kind: HashKey, Value: sha256.Fields(reviewer, occurredAt, body)}
}

// KeyFor derives the identity of an accepted record.
func KeyFor(r Record) Key {
	return NewKey(r.Reviewer, r.Date(), r.Link, r.Body)
}
