package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

// DefaultDiscoveryTTL is how long a discovered backend list is reused
const DefaultDiscoveryTTL = 10 * time.Minute

// DefaultModels is the hardcoded last-resort candidate list
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash"}

// ModelSelectorConfig holds configuration for the model selector
type ModelSelectorConfig struct {
	DefaultModels []string
	DiscoveryTTL  time.Duration
}

// ModelSelector assembles the ordered candidate backend list for one inference call
type ModelSelector struct {
	lister       domain.ModelLister
	settings     domain.Settings
	capabilities *CapabilityTable
	defaults     []string
	ttl          time.Duration
	now          domain.Clock
	logger       *zap.Logger

	mu           sync.Mutex
	discovered   []string
	discoveredAt time.Time
}

// NewModelSelector creates a new model selector. lister may be nil to disable discovery.
func NewModelSelector(lister domain.ModelLister, settings domain.Settings, capabilities *CapabilityTable, config ModelSelectorConfig, now domain.Clock, logger *zap.Logger) *ModelSelector {
	defaults := config.DefaultModels
	if len(defaults) == 0 {
		defaults = DefaultModels
	}
	ttl := config.DiscoveryTTL
	if ttl <= 0 {
		ttl = DefaultDiscoveryTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelSelector{
		lister:       lister,
		settings:     settings,
		capabilities: capabilities,
		defaults:     defaults,
		ttl:          ttl,
		now:          now,
		logger:       logger.Named("model-selector"),
	}
}

// Candidates returns admin backends (restricted to discovered ones when discovery succeeded),
// then capability-filtered discovered backends, then defaults, de-duplicated in that order.
func (s *ModelSelector) Candidates(ctx context.Context) []domain.ModelCandidate {
	discovered := s.discover(ctx)
	available := make(map[string]bool, len(discovered))
	for _, id := range discovered {
		available[id] = true
	}

	seen := make(map[string]bool)
	var candidates []domain.ModelCandidate
	add := func(id string, source domain.CandidateSource) {
		id = normalizeModelID(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		candidates = append(candidates, domain.ModelCandidate{ID: id, Source: source})
	}

	var admin []string
	if s.settings != nil {
		admin = s.settings.PreferredModels()
	}
	for _, id := range admin {
		if len(available) > 0 && !available[normalizeModelID(id)] {
			s.logger.Debug("skipping admin backend not in discovered list", zap.String("model", id))
			continue
		}
		add(id, domain.SourceAdmin)
	}

	filtered := discovered
	if s.capabilities != nil {
		filtered = s.capabilities.Filter(discovered)
	}
	for _, id := range filtered {
		add(id, domain.SourceDiscovered)
	}

	for _, id := range s.defaults {
		add(id, domain.SourceDefault)
	}
	return candidates
}

// discover returns the available backend list, reusing a fresh cached copy.
// Discovery failures yield an empty list and are not cached.
func (s *ModelSelector) discover(ctx context.Context) []string {
	if s.lister == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discovered != nil && s.now().Sub(s.discoveredAt) < s.ttl {
		return s.discovered
	}

	models, err := s.lister.ListModels(ctx)
	if err != nil {
		s.logger.Warn("backend discovery failed", zap.Error(err))
		return nil
	}

	normalized := make([]string, 0, len(models))
	for _, m := range models {
		if id := normalizeModelID(m); id != "" {
			normalized = append(normalized, id)
		}
	}
	s.discovered = normalized
	s.discoveredAt = s.now()
	s.logger.Debug("discovered backends", zap.Int("count", len(normalized)))
	return normalized
}

// Invalidate forgets the cached discovery result.
func (s *ModelSelector) Invalidate() {
	s.mu.Lock()
	s.discovered = nil
	s.mu.Unlock()
}

func normalizeModelID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), "models/")
}
