// Package match implements the product matching engine: an exact identifier
// matcher, a fuzzy name+dimension matcher, and the shared group-assignment
// rules both write through.
package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnumRe  = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpace  = regexp.MustCompile(`\s+`)
	diacriticTx = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// NormalizeName standardizes a product name for similarity scoring:
// fold diacritics to their base letters, lowercase, replace anything that is
// not alphanumeric or whitespace with a space, collapse whitespace, trim.
// Retailers disagree on punctuation and accents far more than on words, so
// scoring runs entirely on the normalized form.
func NormalizeName(name string) string {
	if folded, _, err := transform.String(diacriticTx, name); err == nil {
		name = folded
	}
	name = strings.ToLower(name)
	name = nonAlnumRe.ReplaceAllString(name, " ")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
