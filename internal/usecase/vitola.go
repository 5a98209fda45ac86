package usecase

import (
	"regexp"
	"strings"

	"github.com/cigarlens/backend/internal/domain"
)

// knownVitolas lists size names, longest first so "Double Corona" wins over "Corona"
var knownVitolas = []string{
	"Double Robusto",
	"Double Corona",
	"Petit Corona",
	"Corona Gorda",
	"Grand Toro",
	"Short Robusto",
	"Gran Toro",
	"Churchill",
	"Lancero",
	"Lonsdale",
	"Panatela",
	"Perfecto",
	"Belicoso",
	"Figurado",
	"Gigante",
	"Culebra",
	"Robusto",
	"Torpedo",
	"Presidente",
	"Pyramid",
	"Rothschild",
	"Gordo",
	"Corona",
	"Toro",
	"Petit",
}

var vitolaPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(knownVitolas))
	for i, v := range knownVitolas {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(v) + `\b`)
	}
	return patterns
}()

// ExtractSize derives the size of a catalog entry from a recognized product name:
// the name with the brand prefix stripped, else a known vitola found in the name,
// else fallback.
func ExtractSize(brand, name, fallback string) string {
	name = strings.TrimSpace(name)
	if brand != "" {
		if rest := domain.StripBrandPrefix(name, brand); rest != name && rest != "" {
			return rest
		}
	}
	for i, p := range vitolaPatterns {
		if p.MatchString(name) {
			return knownVitolas[i]
		}
	}
	return strings.TrimSpace(fallback)
}
