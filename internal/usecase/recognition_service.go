package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

// Recognition modes and outcomes reported to metrics
const (
	modeImage = "image"
	modeText  = "text"

	recognitionCached   = "cached"
	recognitionVerified = "verified"
	recognitionInferred = "inferred"
	recognitionFailed   = "failed"
)

// imageSearchMinConfidence is the confidence a result must exceed before an image is looked up
const imageSearchMinConfidence = 0.5

// ImageLocator resolves a product image URL
type ImageLocator interface {
	Resolve(ctx context.Context, brand, name string) (string, bool)
}

// RecognitionService identifies cigars from photos or names and enriches the
// inferred result with catalog-verified details and a product image.
type RecognitionService struct {
	runner   InferenceRunner
	matcher  *CatalogMatcher
	images   ImageLocator
	stats    *StatsTracker
	settings domain.Settings
	metrics  Metrics
	logger   *zap.Logger

	background sync.WaitGroup
}

// NewRecognitionService creates a new recognition service. images and stats may be nil.
func NewRecognitionService(runner InferenceRunner, matcher *CatalogMatcher, images ImageLocator, stats *StatsTracker, settings domain.Settings, metrics Metrics, logger *zap.Logger) *RecognitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecognitionService{
		runner:   runner,
		matcher:  matcher,
		images:   images,
		stats:    stats,
		settings: settings,
		metrics:  metricsOrNop(metrics),
		logger:   logger.Named("recognition"),
	}
}

// RecognizeFromImage identifies the cigar in a photo. hint is optional user text.
func (s *RecognitionService) RecognizeFromImage(ctx context.Context, image []byte, mimeType, hint string) (*domain.RecognitionResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is empty", domain.ErrInvalidRequest)
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(image)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %q", domain.ErrInvalidRequest, mimeType)
	}

	req := &domain.InferenceRequest{
		Prompt:   BuildImagePrompt(hint),
		Image:    image,
		MIMEType: mimeType,
		JSON:     true,
	}
	result, err := s.infer(ctx, req)
	if err != nil {
		s.metrics.Recognition(modeImage, recognitionFailed)
		return nil, err
	}

	s.enrich(ctx, result)
	s.metrics.Recognition(modeImage, outcomeOf(result))
	return result, nil
}

// RecognizeFromText looks a cigar up by name and optional brand. A cached verified
// record for (brand, name) is returned without calling any backend.
func (s *RecognitionService) RecognizeFromText(ctx context.Context, name, brand string) (*domain.RecognitionResult, error) {
	name = strings.TrimSpace(name)
	brand = strings.TrimSpace(brand)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidRequest)
	}

	if brand != "" {
		if entry, ok := s.matcher.Cached(ctx, brand, name); ok {
			s.logger.Debug("text query served from cache", zap.String("brand", brand), zap.String("name", name))
			result := verifiedResult(entry)
			s.recordAsync(ctx, result)
			s.metrics.Recognition(modeText, recognitionCached)
			return result, nil
		}
	}

	req := &domain.InferenceRequest{Prompt: BuildTextPrompt(name, brand), JSON: true}
	result, err := s.infer(ctx, req)
	if err != nil {
		s.metrics.Recognition(modeText, recognitionFailed)
		return nil, err
	}
	if result.Brand == "" {
		result.Brand = brand
	}
	if result.Name == "" {
		result.Name = name
	}

	s.enrich(ctx, result)
	s.metrics.Recognition(modeText, outcomeOf(result))
	return result, nil
}

// WaitForBackground blocks until queued statistics writes have finished.
func (s *RecognitionService) WaitForBackground() {
	s.background.Wait()
}

// infer runs req against the candidate backends and returns the first parseable result.
func (s *RecognitionService) infer(ctx context.Context, req *domain.InferenceRequest) (*domain.RecognitionResult, error) {
	var parsed *domain.RecognitionResult
	run, err := s.runner.Run(ctx, req, func(text string) error {
		result, err := ParseRecognition(text)
		if err != nil {
			return err
		}
		parsed = result
		return nil
	})
	if err != nil {
		s.logger.Warn("recognition failed", zap.Error(err))
		return nil, err
	}

	parsed.Model = run.Model
	s.logger.Info("recognized",
		zap.String("brand", parsed.Brand),
		zap.String("name", parsed.Name),
		zap.Float64("confidence", parsed.Confidence),
		zap.String("model", run.Model),
		zap.String("transport", run.Transport),
		zap.Int("attempts", len(run.Attempts)))
	return parsed, nil
}

// enrich attaches an image, overlays verified catalog details and records statistics.
func (s *RecognitionService) enrich(ctx context.Context, result *domain.RecognitionResult) {
	if s.images != nil && result.ImageURL == "" && result.Confidence > imageSearchMinConfidence && s.imageSearchEnabled() {
		if url, ok := s.images.Resolve(ctx, result.Brand, result.Name); ok {
			result.ImageURL = url
		}
	}

	entry, err := s.matcher.GetDetails(ctx, result.Brand, result.Name)
	switch {
	case err == nil:
		applyCatalog(result, entry)
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidRequest):
		result.HasDetailedInfo = false
	default:
		s.logger.Warn("catalog lookup failed", zap.String("brand", result.Brand), zap.String("name", result.Name), zap.Error(err))
		result.HasDetailedInfo = false
	}

	s.recordAsync(ctx, result)
}

func (s *RecognitionService) imageSearchEnabled() bool {
	return s.settings == nil || s.settings.ImageSearchEnabled()
}

// recordAsync records statistics without blocking the caller or inheriting its cancellation.
func (s *RecognitionService) recordAsync(ctx context.Context, result *domain.RecognitionResult) {
	if s.stats == nil {
		return
	}
	brand, name := result.Brand, result.Name
	confidence, imageFound, detailed := result.Confidence, result.ImageURL != "", result.HasDetailedInfo

	bg := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.stats.Record(bg, brand, name, confidence, imageFound, detailed)
	}()
}

// applyCatalog overlays the verified values of entry onto result. Empty catalog fields keep the inferred value.
func applyCatalog(result *domain.RecognitionResult, entry *domain.CatalogEntry) {
	setIfPresent(&result.Brand, entry.Brand)
	setIfPresent(&result.Name, entry.Name)
	setIfPresent(&result.Origin, entry.Origin)
	setIfPresent(&result.Size, entry.Size)
	setIfPresent(&result.Description, entry.Description)
	if entry.Strength.Known() {
		result.Strength = entry.Strength
	}
	if entry.Wrapper != "" {
		result.Wrapper = stringPtr(entry.Wrapper)
	}
	if entry.Binder != "" {
		result.Binder = stringPtr(entry.Binder)
	}
	if entry.Filler != "" {
		result.Filler = stringPtr(entry.Filler)
	}
	if len(entry.FlavorProfile) > 0 {
		result.FlavorProfile = append([]string(nil), entry.FlavorProfile...)
	}
	if !entry.TastingNotes.Empty() {
		result.TastingNotes = entry.TastingNotes
	}
	if entry.Rating != nil && entry.RatingSource != "" {
		rating := *entry.Rating
		result.Rating = &rating
		result.RatingSource = entry.RatingSource
	}
	if result.ImageURL == "" && len(entry.Images) > 0 {
		result.ImageURL = entry.Images[0]
	}

	result.Confidence = domain.VerifiedConfidence
	result.HasDetailedInfo = true
	result.CatalogID = entry.ID
}

// verifiedResult builds a result from a catalog entry alone.
func verifiedResult(entry *domain.CatalogEntry) *domain.RecognitionResult {
	result := &domain.RecognitionResult{Strength: domain.StrengthUnknown}
	applyCatalog(result, entry)
	return result
}

func outcomeOf(result *domain.RecognitionResult) string {
	if result.HasDetailedInfo {
		return recognitionVerified
	}
	return recognitionInferred
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func stringPtr(s string) *string {
	return &s
}
