package imagesearch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

const maxPageBytes = 5 << 20

// PageReader extracts the lead image of a product page.
type PageReader struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPageReader creates a page reader. A nil client gets a 5s timeout.
func NewPageReader(httpClient *http.Client, logger *zap.Logger) *PageReader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageReader{httpClient: httpClient, logger: logger.Named("page-reader")}
}

// LeadImage fetches pageURL and returns the absolute URL of its lead image, or "" when it has none.
func (r *PageReader) LeadImage(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid page url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; CigarLens/1.0)")
	req.Header.Set("Accept", "text/html")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	body, err := readLimitedBody(resp.Body, maxPageBytes)
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return "", fmt.Errorf("extract page: %w", err)
	}

	image := strings.TrimSpace(article.Image)
	if image == "" {
		return "", nil
	}

	// Lead images may be relative to the page
	ref, err := url.Parse(image)
	if err != nil {
		return "", nil
	}
	return parsed.ResolveReference(ref).String(), nil
}
