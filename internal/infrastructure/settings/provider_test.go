package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cigarlens/backend/config"
)

func TestProvider_Update(t *testing.T) {
	cfg := &config.Config{}
	cfg.ImageSearch.Enabled = true
	cfg.ImageSearch.APIKey = "k"
	cfg.ImageSearch.EngineID = "cx"
	cfg.Catalog.PersistResults = true
	cfg.Inference.PreferredModels = []string{"gemini-2.0-flash"}

	p := NewProvider(cfg, nil)
	assert.True(t, p.ImageSearchEnabled())
	assert.True(t, p.PersistResults())
	assert.Equal(t, []string{"gemini-2.0-flash"}, p.PreferredModels())

	p.Update(&config.Config{})
	assert.False(t, p.ImageSearchEnabled())
	assert.False(t, p.PersistResults())
	assert.Empty(t, p.PreferredModels())

	// Search credentials are not required; the inference strategy still works
	withoutCredentials := &config.Config{}
	withoutCredentials.ImageSearch.Enabled = true
	p.Update(withoutCredentials)
	assert.True(t, p.ImageSearchEnabled())
}

func TestProvider_PreferredModelsIsCopy(t *testing.T) {
	cfg := &config.Config{}
	cfg.Inference.PreferredModels = []string{"a", "b"}
	p := NewProvider(cfg, nil)

	models := p.PreferredModels()
	models[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, p.PreferredModels())
}
