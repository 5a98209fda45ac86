// Package imagesearch finds and validates product images on the web.
package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cigarlens/backend/internal/domain"
)

const (
	// DefaultBaseURL is the Custom Search JSON API endpoint
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

	maxAttempts      = 3
	maxResponseBytes = 2 << 20
	resultsPerQuery  = 10
)

// Config configures the search client
type Config struct {
	APIKey   string
	EngineID string
	BaseURL  string
	// RequestsPerSecond bounds outgoing searches; zero means one per second
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client queries a Custom Search engine in image mode.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	engineID    string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new image search client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, &domain.ConfigurationError{
			Setting:     "image_search.api_key/image_search.engine_id",
			Remediation: "set both, or disable image_search.enabled",
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient:  cfg.HTTPClient,
		apiKey:      cfg.APIKey,
		engineID:    cfg.EngineID,
		baseURL:     cfg.BaseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 3),
		logger:      logger.Named("image-search"),
	}, nil
}

type searchResponse struct {
	Items []struct {
		Link  string `json:"link"`
		Title string `json:"title"`
		Image struct {
			ContextLink string `json:"contextLink"`
			Width       int    `json:"width"`
			Height      int    `json:"height"`
		} `json:"image"`
	} `json:"items"`
}

// SearchImages runs an image search for query, retrying transient failures.
// An empty result set is not an error.
func (c *Client) SearchImages(ctx context.Context, query string) ([]domain.ImageSearchItem, error) {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(resultsPerQuery))
	params.Set("safe", "active")
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, status, err := c.doRequest(ctx, reqURL)
		if err != nil {
			c.logger.Debug("search request failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			if attempt < maxAttempts && !sleepCtx(ctx, exponentialBackoff(attempt)) {
				return nil, ctx.Err()
			}
			continue
		}

		if status != http.StatusOK {
			lastErr = fmt.Errorf("%w: status %d", domain.ErrImageSearchFailure, status)
			// Only throttling and server errors are worth retrying
			if status != http.StatusTooManyRequests && status < 500 {
				return nil, lastErr
			}
			c.logger.Debug("search returned retryable status", zap.Int("attempt", attempt), zap.Int("status", status))
			if attempt < maxAttempts && !sleepCtx(ctx, exponentialBackoff(attempt)) {
				return nil, ctx.Err()
			}
			continue
		}

		var decoded searchResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", domain.ErrImageSearchFailure, err)
		}

		items := make([]domain.ImageSearchItem, 0, len(decoded.Items))
		for _, it := range decoded.Items {
			items = append(items, domain.ImageSearchItem{
				URL:         it.Link,
				Title:       it.Title,
				Width:       it.Image.Width,
				Height:      it.Image.Height,
				ContextLink: it.Image.ContextLink,
			})
		}
		c.logger.Debug("search finished", zap.String("query", query), zap.Int("results", len(items)))
		return items, nil
	}

	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "CigarLens/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the request URL, which includes the key
		return nil, 0, fmt.Errorf("%w: request failed", domain.ErrImageSearchFailure)
	}
	defer resp.Body.Close()

	body, err := readLimitedBody(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read body: %v", domain.ErrImageSearchFailure, err)
	}
	return body, resp.StatusCode, nil
}

func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

// exponentialBackoff returns the wait before retrying after attempt (1-based).
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
