package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cigarlens/backend/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Inference   InferenceConfig   `mapstructure:"inference"`
	ImageSearch ImageSearchConfig `mapstructure:"image_search"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// InferenceConfig holds inference backend configuration
type InferenceConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	APIVersion        string        `mapstructure:"api_version"`
	PrimaryTransport  string        `mapstructure:"primary_transport"` // "sdk" or "openai"
	OpenAIBaseURL     string        `mapstructure:"openai_base_url"`
	PreferredModels   []string      `mapstructure:"preferred_models"`
	DefaultModels     []string      `mapstructure:"default_models"`
	CapabilitiesFile  string        `mapstructure:"capabilities_file"`
	DiscoveryTTL      time.Duration `mapstructure:"discovery_ttl"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// ImageSearchConfig holds web image search configuration
type ImageSearchConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	APIKey         string        `mapstructure:"api_key"`
	EngineID       string        `mapstructure:"engine_id"`
	BaseURL        string        `mapstructure:"base_url"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	LeadImagePages int           `mapstructure:"lead_image_pages"`
}

// Configured reports whether the web search strategy has credentials.
func (c ImageSearchConfig) Configured() bool {
	return c.APIKey != "" && c.EngineID != ""
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
	Capacity int           `mapstructure:"capacity"`
}

// CatalogConfig holds catalog store configuration
type CatalogConfig struct {
	Path           string `mapstructure:"path"`
	PersistResults bool   `mapstructure:"persist_results"`
}

// MetricsConfig holds Prometheus configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	cfg, _, err := LoadWithViper()
	return cfg, err
}

// LoadWithViper loads configuration and also returns the viper instance so
// callers can watch the config file for runtime setting changes.
func LoadWithViper() (*Config, *viper.Viper, error) {
	if err := loadEnvFile(); err != nil {
		return nil, nil, err
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cigarlens/")

	v.SetEnvPrefix("CIGARLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; env vars and defaults are enough
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config, err := Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return config, v, nil
}

// Decode unmarshals and validates the current state of v.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Comma-separated env values arrive as a single element
	config.Server.AllowedOrigins = splitList(config.Server.AllowedOrigins)
	config.Inference.PreferredModels = splitList(config.Inference.PreferredModels)
	config.Inference.DefaultModels = splitList(config.Inference.DefaultModels)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile exports the variables of ./.env that are not already set in the
// environment. A missing file is not an error.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error checking .env file: %w", err)
	}

	env := viper.New()
	env.SetConfigFile(".env")
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	for _, key := range env.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, env.GetString(key)); err != nil {
			return fmt.Errorf("error setting %s from .env: %w", name, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Inference defaults
	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("inference.api_version", "v1beta")
	v.SetDefault("inference.primary_transport", "sdk")
	v.SetDefault("inference.openai_base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("inference.preferred_models", []string{})
	v.SetDefault("inference.default_models", []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash"})
	v.SetDefault("inference.capabilities_file", "")
	v.SetDefault("inference.discovery_ttl", "10m")
	v.SetDefault("inference.requests_per_minute", 15)

	// Image search defaults
	v.SetDefault("image_search.enabled", true)
	v.SetDefault("image_search.api_key", "")
	v.SetDefault("image_search.engine_id", "")
	v.SetDefault("image_search.base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("image_search.probe_timeout", "2s")
	v.SetDefault("image_search.lead_image_pages", 3)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.capacity", 100)

	// Catalog defaults
	v.SetDefault("catalog.path", "cigarlens.db")
	v.SetDefault("catalog.persist_results", true)

	v.SetDefault("metrics.enabled", true)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Inference.APIKey == "" {
		return &domain.ConfigurationError{
			Setting:     "inference.api_key",
			Remediation: "set CIGARLENS_INFERENCE_API_KEY to a key with access to the generative language API",
		}
	}

	switch config.Inference.PrimaryTransport {
	case "sdk", "openai":
	default:
		return fmt.Errorf("inference primary transport must be 'sdk' or 'openai', got: %s", config.Inference.PrimaryTransport)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return &domain.ConfigurationError{
			Setting:     "cache.redis_url",
			Remediation: "set CIGARLENS_CACHE_REDIS_URL when cache type is 'redis'",
		}
	}

	if config.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got: %d", config.Cache.Capacity)
	}

	if config.Catalog.Path == "" {
		return fmt.Errorf("catalog path is required")
	}

	return nil
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
