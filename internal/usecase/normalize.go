package usecase

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatureReplacer = strings.NewReplacer("œ", "oe", "Œ", "OE", "æ", "ae", "Æ", "AE")

// NormalizeName case-folds, strips accents, turns punctuation into spaces and
// collapses whitespace. It is the key function for both matching and
// Correction Memory, so "Tomate  Cerise" and "tomate cérise" compare equal.
func NormalizeName(s string) string {
	if s == "" {
		return ""
	}

	s = ligatureReplacer.Replace(s)

	// Transformers carry state, build a fresh chain per call
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, s)
	if err == nil {
		s = stripped
	}

	s = cases.Fold().String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
