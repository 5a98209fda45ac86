package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cigarlens/backend/internal/domain"
)

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		os.Unsetenv("CIGARLENS_SERVER_PORT")
		os.Unsetenv("CIGARLENS_SERVER_ENVIRONMENT")
		os.Unsetenv("CIGARLENS_SERVER_ALLOWED_ORIGINS")
		os.Unsetenv("CIGARLENS_INFERENCE_API_KEY")
		os.Unsetenv("CIGARLENS_INFERENCE_PRIMARY_TRANSPORT")
		os.Unsetenv("CIGARLENS_INFERENCE_PREFERRED_MODELS")
		os.Unsetenv("CIGARLENS_INFERENCE_REQUESTS_PER_MINUTE")
		os.Unsetenv("CIGARLENS_IMAGE_SEARCH_ENABLED")
		os.Unsetenv("CIGARLENS_IMAGE_SEARCH_API_KEY")
		os.Unsetenv("CIGARLENS_IMAGE_SEARCH_ENGINE_ID")
		os.Unsetenv("CIGARLENS_CACHE_TYPE")
		os.Unsetenv("CIGARLENS_CACHE_REDIS_URL")
		os.Unsetenv("CIGARLENS_CACHE_TTL")
		os.Unsetenv("CIGARLENS_CACHE_CAPACITY")
		os.Unsetenv("CIGARLENS_CATALOG_PERSIST_RESULTS")
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		// Set required API key
		os.Setenv("CIGARLENS_INFERENCE_API_KEY", "test-key")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		// Check defaults
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Inference.PrimaryTransport != "sdk" {
			t.Errorf("Inference.PrimaryTransport = %s, want sdk", cfg.Inference.PrimaryTransport)
		}
		if len(cfg.Inference.DefaultModels) != 3 || cfg.Inference.DefaultModels[0] != "gemini-2.5-flash" {
			t.Errorf("Inference.DefaultModels = %v, want gemini-2.5-flash first of 3", cfg.Inference.DefaultModels)
		}
		if cfg.Inference.DiscoveryTTL != 10*time.Minute {
			t.Errorf("Inference.DiscoveryTTL = %v, want 10m", cfg.Inference.DiscoveryTTL)
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != 5*time.Minute {
			t.Errorf("Cache.TTL = %v, want 5m", cfg.Cache.TTL)
		}
		if cfg.Cache.Capacity != 100 {
			t.Errorf("Cache.Capacity = %d, want 100", cfg.Cache.Capacity)
		}
		if !cfg.ImageSearch.Enabled {
			t.Errorf("ImageSearch.Enabled = false, want true")
		}
		if cfg.ImageSearch.Configured() {
			t.Errorf("ImageSearch.Configured() = true, want false without credentials")
		}
		if cfg.ImageSearch.ProbeTimeout != 2*time.Second {
			t.Errorf("ImageSearch.ProbeTimeout = %v, want 2s", cfg.ImageSearch.ProbeTimeout)
		}
		if !cfg.Catalog.PersistResults {
			t.Errorf("Catalog.PersistResults = false, want true")
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("CIGARLENS_SERVER_PORT", "9090")
		os.Setenv("CIGARLENS_SERVER_ENVIRONMENT", "production")
		os.Setenv("CIGARLENS_SERVER_ALLOWED_ORIGINS", "chrome-extension://*, https://app.example.com")
		os.Setenv("CIGARLENS_INFERENCE_API_KEY", "custom-api-key")
		os.Setenv("CIGARLENS_INFERENCE_PRIMARY_TRANSPORT", "openai")
		os.Setenv("CIGARLENS_INFERENCE_PREFERRED_MODELS", "gemini-2.5-pro,gemini-2.5-flash")
		os.Setenv("CIGARLENS_INFERENCE_REQUESTS_PER_MINUTE", "0")
		os.Setenv("CIGARLENS_IMAGE_SEARCH_API_KEY", "search-key")
		os.Setenv("CIGARLENS_IMAGE_SEARCH_ENGINE_ID", "engine")
		os.Setenv("CIGARLENS_CACHE_TYPE", "redis")
		os.Setenv("CIGARLENS_CACHE_REDIS_URL", "redis://localhost:6379")
		os.Setenv("CIGARLENS_CACHE_TTL", "1m")
		os.Setenv("CIGARLENS_CATALOG_PERSIST_RESULTS", "false")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://app.example.com" {
			t.Errorf("Server.AllowedOrigins = %v, want 2 trimmed origins", cfg.Server.AllowedOrigins)
		}
		if cfg.Inference.APIKey != "custom-api-key" {
			t.Errorf("Inference.APIKey = %s, want custom-api-key", cfg.Inference.APIKey)
		}
		if cfg.Inference.PrimaryTransport != "openai" {
			t.Errorf("Inference.PrimaryTransport = %s, want openai", cfg.Inference.PrimaryTransport)
		}
		if len(cfg.Inference.PreferredModels) != 2 || cfg.Inference.PreferredModels[0] != "gemini-2.5-pro" {
			t.Errorf("Inference.PreferredModels = %v, want [gemini-2.5-pro gemini-2.5-flash]", cfg.Inference.PreferredModels)
		}
		if cfg.Inference.RequestsPerMinute != 0 {
			t.Errorf("Inference.RequestsPerMinute = %d, want 0", cfg.Inference.RequestsPerMinute)
		}
		if !cfg.ImageSearch.Configured() {
			t.Errorf("ImageSearch.Configured() = false, want true")
		}
		if cfg.Cache.Type != "redis" {
			t.Errorf("Cache.Type = %s, want redis", cfg.Cache.Type)
		}
		if cfg.Cache.RedisURL != "redis://localhost:6379" {
			t.Errorf("Cache.RedisURL = %s, want redis://localhost:6379", cfg.Cache.RedisURL)
		}
		if cfg.Cache.TTL != time.Minute {
			t.Errorf("Cache.TTL = %v, want 1m", cfg.Cache.TTL)
		}
		if cfg.Catalog.PersistResults {
			t.Errorf("Catalog.PersistResults = true, want false")
		}
	})

	t.Run("fails validation when API key is missing", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Fatal("Load() error = nil, want error for missing API key")
		}
		var cfgErr *domain.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("Load() error = %v, want *domain.ConfigurationError", err)
		}
		if cfgErr.Setting != "inference.api_key" {
			t.Errorf("ConfigurationError.Setting = %s, want inference.api_key", cfgErr.Setting)
		}
	})

	t.Run("fails validation for invalid primary transport", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("CIGARLENS_INFERENCE_API_KEY", "test-key")
		os.Setenv("CIGARLENS_INFERENCE_PRIMARY_TRANSPORT", "grpc")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for invalid transport")
		}
	})

	t.Run("fails validation for invalid cache type", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("CIGARLENS_INFERENCE_API_KEY", "test-key")
		os.Setenv("CIGARLENS_CACHE_TYPE", "invalid")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails validation when redis URL missing for redis cache", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("CIGARLENS_INFERENCE_API_KEY", "test-key")
		os.Setenv("CIGARLENS_CACHE_TYPE", "redis")
		defer cleanupEnv()

		_, err := Load()
		if !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("Load() error = %v, want configuration error for missing Redis URL", err)
		}
	})

	t.Run("fails validation for non-positive cache capacity", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("CIGARLENS_INFERENCE_API_KEY", "test-key")
		os.Setenv("CIGARLENS_CACHE_CAPACITY", "0")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for zero capacity")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		os.Chdir(t.TempDir())

		if err := loadEnvFile(); err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables from .env file", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		os.Chdir(t.TempDir())

		envContent := `
# Comment line
TEST_VAR_1=value1
TEST_VAR_2=value2

# Another comment
TEST_VAR_3=value3
`
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		os.Unsetenv("TEST_VAR_1")
		os.Unsetenv("TEST_VAR_2")
		os.Unsetenv("TEST_VAR_3")
		defer func() {
			os.Unsetenv("TEST_VAR_1")
			os.Unsetenv("TEST_VAR_2")
			os.Unsetenv("TEST_VAR_3")
		}()

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_VAR_1") != "value1" {
			t.Errorf("TEST_VAR_1 = %s, want value1", os.Getenv("TEST_VAR_1"))
		}
		if os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("TEST_VAR_2 = %s, want value2", os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_VAR_3") != "value3" {
			t.Errorf("TEST_VAR_3 = %s, want value3", os.Getenv("TEST_VAR_3"))
		}
	})

	t.Run("does not override existing environment variables", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		os.Chdir(t.TempDir())

		if err := os.WriteFile(".env", []byte("TEST_EXISTING=from_file\n"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		os.Setenv("TEST_EXISTING", "from_env")
		defer os.Unsetenv("TEST_EXISTING")

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_EXISTING") != "from_env" {
			t.Errorf("TEST_EXISTING = %s, want from_env", os.Getenv("TEST_EXISTING"))
		}
	})

	t.Run("feeds the inference key to Load", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		os.Chdir(t.TempDir())

		if err := os.WriteFile(".env", []byte("CIGARLENS_INFERENCE_API_KEY=from-dotenv\n"), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		os.Unsetenv("CIGARLENS_INFERENCE_API_KEY")
		defer os.Unsetenv("CIGARLENS_INFERENCE_API_KEY")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.Inference.APIKey != "from-dotenv" {
			t.Errorf("Inference.APIKey = %s, want from-dotenv", cfg.Inference.APIKey)
		}
	})
}
