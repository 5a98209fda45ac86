package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const generateContentMethod = "generateContent"

// ModelLister discovers models available to the configured key.
type ModelLister struct {
	cfg    RESTConfig
	logger *zap.Logger
}

// NewModelLister creates a lister sharing the REST transport configuration.
func NewModelLister(cfg RESTConfig, logger *zap.Logger) (*ModelLister, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, missingKeyError()
	}
	cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelLister{cfg: cfg, logger: logger.Named("gemini-models")}, nil
}

type listModelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
	NextPageToken string `json:"nextPageToken"`
}

// maxListPages bounds pagination through the models endpoint
const maxListPages = 5

// ListModels returns ids (without the "models/" prefix) of models supporting generateContent, in API order.
func (l *ModelLister) ListModels(ctx context.Context) ([]string, error) {
	var ids []string
	pageToken := ""

	for page := 0; page < maxListPages; page++ {
		params := url.Values{"key": {l.cfg.APIKey}, "pageSize": {"100"}}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		endpoint := fmt.Sprintf("%s/%s/models?%s", l.cfg.BaseURL, l.cfg.APIVersion, params.Encode())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create list models request: %w", err)
		}
		req.Header.Set("User-Agent", "CigarLens/1.0")

		resp, err := l.cfg.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list models: %s", RedactKey(err.Error()))
		}
		body, err := readLimitedBody(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read list models response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, classifyError(statusError(resp.StatusCode, body), resp.StatusCode, "", RESTTransportName)
		}

		var decoded listModelsResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("decode list models response: %w", err)
		}

		for _, m := range decoded.Models {
			if !supports(m.SupportedGenerationMethods, generateContentMethod) {
				continue
			}
			ids = append(ids, strings.TrimPrefix(m.Name, "models/"))
		}

		if decoded.NextPageToken == "" {
			break
		}
		pageToken = decoded.NextPageToken
	}

	l.logger.Debug("discovered models", zap.Int("count", len(ids)))
	return ids, nil
}

func supports(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
