// Package settings serves the runtime-mutable toggles read by the recognition pipeline.
package settings

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cigarlens/backend/config"
)

// Provider implements domain.Settings over the latest loaded configuration.
type Provider struct {
	mu              sync.RWMutex
	imageSearch     bool
	persistResults  bool
	preferredModels []string
	logger          *zap.Logger
}

// NewProvider seeds the provider from cfg.
func NewProvider(cfg *config.Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{logger: logger.Named("settings")}
	p.apply(cfg)
	return p
}

// Update replaces the toggles with the values in cfg.
func (p *Provider) Update(cfg *config.Config) {
	p.apply(cfg)
	p.logger.Info("runtime settings updated",
		zap.Bool("image_search", p.ImageSearchEnabled()),
		zap.Bool("persist_results", p.PersistResults()),
		zap.Strings("preferred_models", p.PreferredModels()))
}

func (p *Provider) apply(cfg *config.Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imageSearch = cfg.ImageSearch.Enabled
	p.persistResults = cfg.Catalog.PersistResults
	p.preferredModels = append([]string(nil), cfg.Inference.PreferredModels...)
}

// ImageSearchEnabled reports whether image lookup may run after a recognition.
func (p *Provider) ImageSearchEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.imageSearch
}

// PersistResults reports whether recognitions are reconciled into the catalog.
func (p *Provider) PersistResults() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.persistResults
}

// PreferredModels returns a copy of the admin-configured backend list.
func (p *Provider) PreferredModels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.preferredModels...)
}
