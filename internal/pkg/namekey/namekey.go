// Package namekey canonicalizes free-text employee names from biometric
// devices into the key used to join scans against the employee directory.
package namekey

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks removes the combining marks NFKD decomposition exposes, so
// "José" and "Jose" produce the same key.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the canonical match key for a raw device name.
// It is deterministic and idempotent: lowercase, accents folded, internal
// whitespace collapsed, punctuation outside legal name characters
// (letters, digits, space, apostrophe, hyphen) stripped, trimmed.
// Garbage input yields the empty string, which upstream treats as
// unmatched.
func Normalize(raw string) string {
	folded, _, err := transform.String(stripMarks, raw)
	if err != nil {
		// Malformed input falls back to the raw bytes; the character
		// filter below still bounds the output alphabet.
		folded = raw
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastSpace := true // leading whitespace is dropped
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-':
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}
