package imagesearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds one reachability check
const DefaultProbeTimeout = 2 * time.Second

const sniffBytes = 512

// Prober checks that a URL loads as an image.
type Prober struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewProber creates a prober with the given per-probe timeout.
func NewProber(timeout time.Duration, httpClient *http.Client) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Prober{httpClient: httpClient, timeout: timeout}
}

// Probe fetches the start of rawURL and succeeds only when it is served as an image within the timeout.
func (p *Prober) Probe(ctx context.Context, rawURL string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; CigarLens/1.0)")
	req.Header.Set("Accept", "image/*")
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", sniffBytes-1))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("probe %s: status %d", rawURL, resp.StatusCode)
	}

	head, err := readLimitedBody(resp.Body, sniffBytes)
	if err != nil {
		return fmt.Errorf("probe %s: read: %w", rawURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(head)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("probe %s: not an image (%s)", rawURL, contentType)
	}
	return nil
}
