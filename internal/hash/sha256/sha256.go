// Package sha256 derives hex SHA-256 digests used as record identities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FieldSeparator joins the parts digested by Fields.
const FieldSeparator = "|"

// Sum returns the hex digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fields digests the whitespace-trimmed parts joined by FieldSeparator.
func Fields(parts ...string) string {
	trimmed := make([]string, len(parts))
	for i, p := range parts {
		trimmed[i] = strings.TrimSpace(p)
	}
	return Sum([]byte(strings.Join(trimmed, FieldSeparator)))
}
