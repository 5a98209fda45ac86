package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cigarlens/backend/config"
	httpDelivery "github.com/cigarlens/backend/internal/delivery/http"
	"github.com/cigarlens/backend/internal/domain"
	"github.com/cigarlens/backend/internal/infrastructure/cache"
	"github.com/cigarlens/backend/internal/infrastructure/catalog"
	"github.com/cigarlens/backend/internal/infrastructure/gemini"
	"github.com/cigarlens/backend/internal/infrastructure/imagesearch"
	"github.com/cigarlens/backend/internal/infrastructure/metrics"
	"github.com/cigarlens/backend/internal/infrastructure/openaicompat"
	"github.com/cigarlens/backend/internal/infrastructure/settings"
	"github.com/cigarlens/backend/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, v, err := config.LoadWithViper()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, v, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, v *viper.Viper, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting CigarLens backend",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
		zap.String("transport", cfg.Inference.PrimaryTransport))

	var recorder *metrics.Recorder
	var exporter httpDelivery.MetricsExporter
	var usecaseMetrics usecase.Metrics
	var hits cache.HitRecorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewRecorder()
		exporter, usecaseMetrics, hits = recorder, recorder, recorder
	}

	// Catalog store
	store, err := catalog.Open(ctx, cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()
	logger.Info("catalog store ready", zap.String("path", cfg.Catalog.Path))

	// Result cache
	resultCache, closeCache, err := newResultCache(ctx, cfg.Cache, hits, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	provider := settings.NewProvider(cfg, logger)
	watchConfig(v, provider, logger)

	// Inference transports and backend selection
	primary, secondary, closeTransports, err := newTransports(ctx, cfg.Inference, logger)
	if err != nil {
		return err
	}
	defer closeTransports()

	lister, err := gemini.NewModelLister(restConfig(cfg.Inference), logger)
	if err != nil {
		return fmt.Errorf("create model lister: %w", err)
	}
	capabilities, err := usecase.LoadCapabilities(cfg.Inference.CapabilitiesFile)
	if err != nil {
		return fmt.Errorf("load capabilities: %w", err)
	}
	selector := usecase.NewModelSelector(lister, provider, capabilities, usecase.ModelSelectorConfig{
		DefaultModels: cfg.Inference.DefaultModels,
		DiscoveryTTL:  cfg.Inference.DiscoveryTTL,
	}, nil, logger)
	runner := usecase.NewBackendRunner(selector, primary, secondary, usecase.BackendRunnerConfig{
		RequestsPerMinute: cfg.Inference.RequestsPerMinute,
	}, usecaseMetrics, logger)

	// Image resolution
	var search domain.ImageSearchClient
	if cfg.ImageSearch.Configured() {
		client, err := imagesearch.NewClient(imagesearch.Config{
			APIKey:   cfg.ImageSearch.APIKey,
			EngineID: cfg.ImageSearch.EngineID,
			BaseURL:  cfg.ImageSearch.BaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("create image search client: %w", err)
		}
		search = client
	} else {
		logger.Warn("web image search not configured, resolving images from lead images and inference only")
	}
	resolver := usecase.NewImageResolver(
		search,
		imagesearch.NewPageReader(nil, logger),
		imagesearch.NewProber(cfg.ImageSearch.ProbeTimeout, nil),
		runner,
		usecase.ImageResolverConfig{LeadImagePages: cfg.ImageSearch.LeadImagePages},
		usecaseMetrics,
		logger,
	)

	// Usecase layer
	matcher := usecase.NewCatalogMatcher(store, resultCache, usecase.CatalogMatcherConfig{}, logger)
	stats := usecase.NewStatsTracker(store, nil, logger)
	recognition := usecase.NewRecognitionService(runner, matcher, resolver, stats, provider, usecaseMetrics, logger)
	reconciliation := usecase.NewReconciliationService(store, store, matcher, usecaseMetrics, logger)

	handler := httpDelivery.NewHandler(httpDelivery.Services{
		Recognizer: recognition,
		Reconciler: reconciliation,
		Catalog:    matcher,
		Stats:      stats,
		Cache:      resultCache,
		Settings:   provider,
		Store:      store,
	}, logger)
	router := httpDelivery.SetupRouter(cfg, handler, exporter, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	// Let queued statistics writes land before the store closes
	recognition.WaitForBackground()
	logger.Info("server stopped")
	return nil
}

// newResultCache builds the configured result cache and its close function.
func newResultCache(ctx context.Context, cfg config.CacheConfig, hits cache.HitRecorder, logger *zap.Logger) (domain.ResultCache, func(), error) {
	if cfg.Type == "redis" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.TTL, hits, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		logger.Info("using redis result cache", zap.Duration("ttl", cfg.TTL))
		return redisCache, func() { _ = redisCache.Close() }, nil
	}

	memoryCache := cache.NewMemoryCache(cache.MemoryConfig{
		Capacity: cfg.Capacity,
		TTL:      cfg.TTL,
		Metrics:  hits,
	})
	logger.Info("using in-memory result cache", zap.Int("capacity", cfg.Capacity), zap.Duration("ttl", cfg.TTL))
	return memoryCache, memoryCache.Close, nil
}

// newTransports returns the primary structured transport and the direct REST fallback.
func newTransports(ctx context.Context, cfg config.InferenceConfig, logger *zap.Logger) (domain.InferenceTransport, domain.InferenceTransport, func(), error) {
	rest, err := gemini.NewRESTTransport(restConfig(cfg), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create rest transport: %w", err)
	}

	if cfg.PrimaryTransport == "openai" {
		gateway, err := openaicompat.NewTransport(openaicompat.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.OpenAIBaseURL,
		}, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create openai-compatible transport: %w", err)
		}
		return gateway, rest, func() {}, nil
	}

	sdk, err := gemini.NewSDKTransport(ctx, cfg.APIKey, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create sdk transport: %w", err)
	}
	return sdk, rest, func() { _ = sdk.Close() }, nil
}

func restConfig(cfg config.InferenceConfig) gemini.RESTConfig {
	return gemini.RESTConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		APIVersion: cfg.APIVersion,
	}
}

// watchConfig reloads runtime toggles when the config file changes.
func watchConfig(v *viper.Viper, provider *settings.Provider, logger *zap.Logger) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := config.Decode(v)
		if err != nil {
			logger.Warn("ignoring invalid config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		provider.Update(cfg)
	})
	v.WatchConfig()
	logger.Info("watching config file", zap.String("file", v.ConfigFileUsed()))
}
