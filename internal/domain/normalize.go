package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxKeywordQuery is the store limit for "array contains any" queries
const MaxKeywordQuery = 10

// minKeywordWordLen excludes words of this length or shorter from keyword sets
const minKeywordWordLen = 2

// foldDiacritics strips combining marks so "Partagás" and "Partagas" normalize alike.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// Normalize lower-cases s and strips whitespace, punctuation and diacritics.
func Normalize(s string) string {
	s = foldDiacritics(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CacheKey is the key shared by the result cache and the stats store.
func CacheKey(brand, name string) string {
	return Normalize(brand) + "_" + Normalize(name)
}

// words splits s into normalized words.
func words(s string) []string {
	fields := strings.FieldsFunc(foldDiacritics(strings.ToLower(s)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// SearchKeywords builds the ordered, de-duplicated keyword set for a (brand, name) pair:
// normalized brand, normalized name, brand+name concatenations, then individual
// words longer than two characters.
func SearchKeywords(brand, name string) []string {
	nb := Normalize(brand)
	nn := Normalize(name)

	seen := make(map[string]bool)
	var keywords []string
	add := func(k string) {
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keywords = append(keywords, k)
	}

	add(nb)
	add(nn)
	if nb != "" && nn != "" {
		// Names usually repeat the brand; only concatenate when they don't
		if !strings.HasPrefix(nn, nb) {
			add(nb + nn)
		}
		add(Normalize(StripBrandPrefix(name, brand)))
	}

	for _, w := range append(words(brand), words(name)...) {
		if len(w) > minKeywordWordLen {
			add(w)
		}
	}

	return keywords
}

// StripBrandPrefix removes a leading brand (case- and punctuation-insensitive) from name.
func StripBrandPrefix(name, brand string) string {
	name = strings.TrimSpace(name)
	nb := Normalize(brand)
	if nb == "" {
		return name
	}

	// Walk name until the normalized prefix equals the normalized brand
	var consumed strings.Builder
	for i, r := range name {
		consumed.WriteRune(r)
		if Normalize(consumed.String()) == nb {
			rest := name[i+len(string(r)):]
			// The brand must end on a word boundary: "Cohibas" is not "Cohiba"
			if next, _ := utf8.DecodeRuneInString(rest); rest != "" && (unicode.IsLetter(next) || unicode.IsDigit(next)) {
				return name
			}
			return strings.TrimSpace(strings.TrimLeft(rest, " -–:,"))
		}
		if len(Normalize(consumed.String())) > len(nb) {
			break
		}
	}
	return name
}
