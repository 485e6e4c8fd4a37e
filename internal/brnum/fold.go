package brnum

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold upper-cases s and strips diacritics so "Lançamentos" compares equal to
// "LANCAMENTOS".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(out)
}

// ContainsFold reports whether s contains any of the keywords after folding both sides.
func ContainsFold(s string, keywords ...string) bool {
	fs := Fold(s)
	for _, k := range keywords {
		if strings.Contains(fs, Fold(k)) {
			return true
		}
	}
	return false
}
