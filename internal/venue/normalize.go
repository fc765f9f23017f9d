// Package venue canonicalizes free-text venue strings into stable lookup keys.
package venue

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sf-events-map/venuegeo/internal/model"
)

// foldTransformer decomposes accented characters and drops the combining
// marks, so "Café du Nord" and "Cafe du Nord" fold to the same text.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold canonicalizes one free-text fragment: diacritics folded, lower-cased,
// punctuation dropped, whitespace collapsed. Deterministic and total; any
// input yields some string, possibly empty.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			// Punctuation and symbols never distinguish venues; they
			// become separators and collapse below.
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Normalizer derives VenueKeys from raw venue text, applying a known-alias
// table and a TBA pattern set. Pure; all I/O happens at construction.
type Normalizer struct {
	aliases     map[string]string
	tbaPatterns map[string]struct{}
}

// DefaultTBAPatterns mark a venue as to-be-announced when they appear as a
// whole word in the normalized name.
var DefaultTBAPatterns = []string{"tba", "tbd"}

// NewNormalizer builds a Normalizer. Alias keys and values are folded, so
// the table can be written in display form ("Independent SF: The
// Independent"). Nil patterns fall back to DefaultTBAPatterns.
func NewNormalizer(aliases map[string]string, tbaPatterns []string) *Normalizer {
	n := &Normalizer{
		aliases:     make(map[string]string, len(aliases)),
		tbaPatterns: make(map[string]struct{}),
	}
	for from, to := range aliases {
		n.aliases[Fold(from)] = Fold(to)
	}
	if tbaPatterns == nil {
		tbaPatterns = DefaultTBAPatterns
	}
	for _, p := range tbaPatterns {
		if p = Fold(p); p != "" {
			n.tbaPatterns[p] = struct{}{}
		}
	}
	return n
}

// Key returns the canonical VenueKey for a raw venue. The same input always
// yields the same key; empty or garbage input maps to the unknown-venue
// sentinel rather than failing.
func (n *Normalizer) Key(raw model.RawVenue) model.VenueKey {
	name := Fold(raw.Name)
	if canonical, ok := n.aliases[name]; ok {
		name = canonical
	}
	if name == "" {
		name = model.UnknownVenueName
	}
	return model.VenueKey(name + "|" + Fold(raw.City))
}

// IsTBA reports whether the raw venue text marks a venue with no announced
// address yet: empty text, or any whole word matching a TBA pattern
// ("Secret Warehouse TBA", "TBD - Oakland").
func (n *Normalizer) IsTBA(raw model.RawVenue) bool {
	name := Fold(raw.Name)
	if name == "" {
		return true
	}
	for _, word := range strings.Fields(name) {
		if _, ok := n.tbaPatterns[word]; ok {
			return true
		}
	}
	return false
}
