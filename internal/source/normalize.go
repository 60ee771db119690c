package source

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nameFolder strips diacritics so "Atlético" and "Atletico" normalize to the
// same token.
var nameFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases a team name, folds diacritics, drops punctuation,
// and collapses whitespace. Sources spell the same club a dozen ways; this is
// the common ground identity checks compare on.
func NormalizeName(s string) string {
	if folded, _, err := transform.String(nameFolder, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SameTeam reports whether a source's spelling of a team plausibly refers to
// the requested team: normalized substring containment in either direction,
// so "Real Madrid" matches "Real Madrid CF" and vice versa. Empty names never
// match.
func SameTeam(requested, found string) bool {
	r := NormalizeName(requested)
	f := NormalizeName(found)
	if r == "" || f == "" {
		return false
	}
	return strings.Contains(f, r) || strings.Contains(r, f)
}
