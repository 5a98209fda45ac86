package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

// DefaultLeadImagePages is how many search result pages are read for a lead image
const DefaultLeadImagePages = 3

// Image resolution strategies reported to metrics
const (
	strategyWebSearch = "web_search"
	strategyLeadImage = "lead_image"
	strategyInference = "inference"
	strategyNone      = "none"
)

// InferenceRunner runs one inference request against the candidate backends
type InferenceRunner interface {
	Run(ctx context.Context, req *domain.InferenceRequest, accept func(text string) error) (*RunResult, error)
}

// ImageResolverConfig holds configuration for the image resolver
type ImageResolverConfig struct {
	LeadImagePages int
}

// ImageResolver finds a reachable product image URL for a (brand, name) pair
type ImageResolver struct {
	search    domain.ImageSearchClient
	pages     domain.PageImageReader
	prober    domain.ImageProber
	runner    InferenceRunner
	leadPages int
	metrics   Metrics
	logger    *zap.Logger
}

// NewImageResolver creates a new image resolver. search, pages and runner may be nil
// to disable the corresponding strategy; prober is required.
func NewImageResolver(search domain.ImageSearchClient, pages domain.PageImageReader, prober domain.ImageProber, runner InferenceRunner, config ImageResolverConfig, metrics Metrics, logger *zap.Logger) *ImageResolver {
	leadPages := config.LeadImagePages
	if leadPages < 0 {
		leadPages = 0
	} else if leadPages == 0 {
		leadPages = DefaultLeadImagePages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageResolver{
		search:    search,
		pages:     pages,
		prober:    prober,
		runner:    runner,
		leadPages: leadPages,
		metrics:   metricsOrNop(metrics),
		logger:    logger.Named("image-resolver"),
	}
}

// Resolve returns the first candidate image URL that passes the reachability probe:
// ranked web search hits, then lead images of the hits' pages, then a URL suggested by
// an inference backend. It reports false when no strategy produced a reachable URL.
func (r *ImageResolver) Resolve(ctx context.Context, brand, name string) (string, bool) {
	probed := make(map[string]bool)

	if r.search != nil {
		items, err := r.search.SearchImages(ctx, BuildImageQuery(brand, name))
		if err != nil {
			r.logger.Warn("image search failed", zap.String("brand", brand), zap.String("name", name), zap.Error(err))
		} else {
			if url, ok := r.firstReachable(ctx, RankImages(items), probed); ok {
				r.metrics.ImageResolution(strategyWebSearch)
				return url, true
			}
			if url, ok := r.fromLeadImages(ctx, items, probed); ok {
				r.metrics.ImageResolution(strategyLeadImage)
				return url, true
			}
		}
	}

	if url, ok := r.fromInference(ctx, brand, name, probed); ok {
		r.metrics.ImageResolution(strategyInference)
		return url, true
	}

	r.metrics.ImageResolution(strategyNone)
	return "", false
}

// fromLeadImages reads the lead image of up to leadPages distinct result pages.
func (r *ImageResolver) fromLeadImages(ctx context.Context, items []domain.ImageSearchItem, probed map[string]bool) (string, bool) {
	if r.pages == nil || r.leadPages == 0 {
		return "", false
	}

	seenPages := make(map[string]bool)
	var leads []domain.ImageSearchItem
	for _, item := range items {
		if len(seenPages) >= r.leadPages {
			break
		}
		page := item.ContextLink
		if page == "" || seenPages[page] {
			continue
		}
		seenPages[page] = true

		img, err := r.pages.LeadImage(ctx, page)
		if err != nil {
			r.logger.Debug("no lead image", zap.String("page", page), zap.Error(err))
			continue
		}
		leads = append(leads, domain.ImageSearchItem{URL: img, Title: item.Title, ContextLink: page})
	}
	return r.firstReachable(ctx, RankImages(leads), probed)
}

// fromInference asks the backends for a bare image URL.
func (r *ImageResolver) fromInference(ctx context.Context, brand, name string, probed map[string]bool) (string, bool) {
	if r.runner == nil {
		return "", false
	}

	req := &domain.InferenceRequest{Prompt: BuildImageURLPrompt(brand, name)}
	// A "null" answer is a valid answer; no other backend is asked
	result, err := r.runner.Run(ctx, req, func(string) error { return nil })
	if err != nil {
		r.logger.Warn("inference image lookup failed", zap.String("brand", brand), zap.String("name", name), zap.Error(err))
		return "", false
	}

	url, ok := ExtractImageURL(result.Text)
	if !ok || IsRejectedImageURL(url) {
		return "", false
	}
	return r.probe(ctx, url, probed)
}

func (r *ImageResolver) firstReachable(ctx context.Context, ranked []RankedImage, probed map[string]bool) (string, bool) {
	for _, candidate := range ranked {
		if url, ok := r.probe(ctx, candidate.Item.URL, probed); ok {
			return url, true
		}
		if ctx.Err() != nil {
			return "", false
		}
	}
	return "", false
}

// probe checks url once per resolution.
func (r *ImageResolver) probe(ctx context.Context, url string, probed map[string]bool) (string, bool) {
	if probed[url] {
		return "", false
	}
	probed[url] = true

	if err := r.prober.Probe(ctx, url); err != nil {
		r.logger.Debug("image unreachable", zap.String("url", url), zap.Error(err))
		return "", false
	}
	return url, true
}
