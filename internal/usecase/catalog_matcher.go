package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

// DefaultFuzzyThreshold is the minimum similarity for a fuzzy match to be accepted by GetDetails
const DefaultFuzzyThreshold = 0.8

// Similarity weights, in points out of 100
const (
	brandExactPoints    = 50
	brandContainsPoints = 30
	nameExactPoints     = 50
	nameContainsPoints  = 20
	keywordPoints       = 5
	keywordPointsCap    = 20
)

// CatalogMatcherConfig holds configuration for the catalog matcher
type CatalogMatcherConfig struct {
	FuzzyThreshold float64
}

// CatalogMatcher resolves (brand, name) pairs to catalog entries
type CatalogMatcher struct {
	catalog   domain.CatalogRepository
	cache     domain.ResultCache
	threshold float64
	logger    *zap.Logger
}

// NewCatalogMatcher creates a new catalog matcher
func NewCatalogMatcher(catalog domain.CatalogRepository, cache domain.ResultCache, config CatalogMatcherConfig, logger *zap.Logger) *CatalogMatcher {
	threshold := config.FuzzyThreshold
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogMatcher{
		catalog:   catalog,
		cache:     cache,
		threshold: threshold,
		logger:    logger.Named("catalog-matcher"),
	}
}

// FindExact looks up the entry whose normalized brand and name equal those of the arguments.
func (m *CatalogMatcher) FindExact(ctx context.Context, brand, name string) (*domain.CatalogEntry, error) {
	nb, nn := domain.Normalize(brand), domain.Normalize(name)
	if nb == "" && nn == "" {
		return nil, domain.ErrInvalidRequest
	}
	return m.catalog.FindByNormalized(ctx, nb, nn)
}

// FindFuzzy scores every catalog entry sharing a keyword with (brand, name) and returns the best one.
// Ties are broken by ascending entry id.
func (m *CatalogMatcher) FindFuzzy(ctx context.Context, brand, name string) (*domain.FuzzyMatch, error) {
	keywords := domain.SearchKeywords(brand, name)
	if len(keywords) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	query := keywords
	if len(query) > domain.MaxKeywordQuery {
		query = query[:domain.MaxKeywordQuery]
	}
	candidates, err := m.catalog.FindByKeywords(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fuzzy lookup: %w", err)
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNotFound
	}

	matches := make([]domain.FuzzyMatch, 0, len(candidates))
	for _, c := range candidates {
		matches = append(matches, domain.FuzzyMatch{Entry: c, Similarity: SimilarityScore(brand, name, keywords, c)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Entry.ID < matches[j].Entry.ID
	})

	best := matches[0]
	return &best, nil
}

// GetDetails returns the verified catalog entry for (brand, name): cache, then exact match,
// then a fuzzy match at or above the threshold. Returns domain.ErrNotFound otherwise.
func (m *CatalogMatcher) GetDetails(ctx context.Context, brand, name string) (*domain.CatalogEntry, error) {
	if entry, ok := m.cache.Get(ctx, brand, name); ok {
		return entry, nil
	}

	entry, err := m.FindExact(ctx, brand, name)
	switch {
	case err == nil:
		m.cache.Set(ctx, brand, name, entry)
		return entry, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	match, err := m.FindFuzzy(ctx, brand, name)
	if err != nil {
		return nil, err
	}
	if match.Similarity < m.threshold {
		m.logger.Debug("fuzzy candidate below threshold",
			zap.String("brand", brand),
			zap.String("name", name),
			zap.String("candidate", match.Entry.Name),
			zap.Float64("similarity", match.Similarity))
		return nil, domain.ErrNotFound
	}

	m.cache.Set(ctx, brand, name, match.Entry)
	return match.Entry, nil
}

// Cached returns a cached verified entry without touching the store.
func (m *CatalogMatcher) Cached(ctx context.Context, brand, name string) (*domain.CatalogEntry, bool) {
	return m.cache.Get(ctx, brand, name)
}

// Invalidate drops the cached entry for (brand, name).
func (m *CatalogMatcher) Invalidate(ctx context.Context, brand, name string) {
	m.cache.Clear(ctx, brand, name)
}

// SimilarityScore rates candidate against (brand, name) in [0, 1].
// keywords is the query keyword set, as produced by domain.SearchKeywords.
func SimilarityScore(brand, name string, keywords []string, candidate *domain.CatalogEntry) float64 {
	nb, nn := domain.Normalize(brand), domain.Normalize(name)
	cb, cn := candidate.NormalizedBrand, candidate.NormalizedName
	if cb == "" {
		cb = domain.Normalize(candidate.Brand)
	}
	if cn == "" {
		cn = domain.Normalize(candidate.Name)
	}

	score := 0
	score += containmentPoints(nb, cb, brandExactPoints, brandContainsPoints)
	score += containmentPoints(nn, cn, nameExactPoints, nameContainsPoints)

	candidateKeywords := candidate.SearchKeywords
	if len(candidateKeywords) == 0 {
		candidateKeywords = domain.SearchKeywords(candidate.Brand, candidate.Name)
	}
	set := make(map[string]bool, len(candidateKeywords))
	for _, k := range candidateKeywords {
		set[k] = true
	}
	keywordScore := 0
	for _, k := range keywords {
		if set[k] {
			keywordScore += keywordPoints
		}
	}
	if keywordScore > keywordPointsCap {
		keywordScore = keywordPointsCap
	}
	score += keywordScore

	similarity := float64(score) / 100
	if similarity > 1 {
		similarity = 1
	}
	return similarity
}

// containmentPoints awards exact points on equality and partial points when one value contains the other.
// Empty values never match.
func containmentPoints(a, b string, exact, partial int) int {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return exact
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return partial
	}
	return 0
}
