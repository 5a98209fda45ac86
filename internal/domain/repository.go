package domain

import (
	"context"
	"time"
)

// ResultCache holds verified catalog snapshots keyed by normalized (brand, name).
// It is never the source of truth; the catalog store is.
type ResultCache interface {
	Get(ctx context.Context, brand, name string) (*CatalogEntry, bool)
	Set(ctx context.Context, brand, name string, entry *CatalogEntry)
	// Clear removes one key, or every key when brand and name are both empty.
	Clear(ctx context.Context, brand, name string)
}

// CatalogRepository is the keyed-document catalog collection
type CatalogRepository interface {
	FindByNormalized(ctx context.Context, normalizedBrand, normalizedName string) (*CatalogEntry, error)
	// FindByKeywords returns entries whose keyword set intersects keywords (at most 10 values).
	FindByKeywords(ctx context.Context, keywords []string) ([]*CatalogEntry, error)
	GetEntry(ctx context.Context, id string) (*CatalogEntry, error)
	CreateEntry(ctx context.Context, entry *CatalogEntry) error
	UpdateEntry(ctx context.Context, entry *CatalogEntry) error
}

// BrandRepository is the brand collection
type BrandRepository interface {
	FindBrand(ctx context.Context, normalizedName string) (*BrandEntry, error)
	CreateBrand(ctx context.Context, brand *BrandEntry) error
	UpdateBrand(ctx context.Context, brand *BrandEntry) error
}

// StatsRepository persists recognition statistics per catalog key
type StatsRepository interface {
	GetStats(ctx context.Context, key string) (*RecognitionStats, error)
	// UpdateStats applies fn to the current stats (zero value if absent) atomically.
	UpdateStats(ctx context.Context, key string, fn func(*RecognitionStats)) error
}

// InferenceTransport calls one inference backend by model id
type InferenceTransport interface {
	Name() string
	Generate(ctx context.Context, model string, req *InferenceRequest) (string, error)
}

// ModelLister discovers the backends currently available to the configured key
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ImageSearchClient queries a web image search API
type ImageSearchClient interface {
	SearchImages(ctx context.Context, query string) ([]ImageSearchItem, error)
}

// PageImageReader extracts the lead image of a web page
type PageImageReader interface {
	LeadImage(ctx context.Context, pageURL string) (string, error)
}

// ImageProber checks that a URL loads as an image
type ImageProber interface {
	Probe(ctx context.Context, url string) error
}

// Settings are the read-only runtime toggles this subsystem consumes
type Settings interface {
	ImageSearchEnabled() bool
	PersistResults() bool
	PreferredModels() []string
}

// ImageSearchItem is one ranked image search hit
type ImageSearchItem struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContextLink string `json:"contextLink"`
}

// Clock returns the current time; injected for TTL tests
type Clock func() time.Time
