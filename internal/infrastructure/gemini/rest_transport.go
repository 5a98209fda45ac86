package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

// RESTTransportName identifies the direct HTTP transport in logs and metrics
const RESTTransportName = "rest"

const (
	// DefaultBaseURL is the public generative language API host
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultAPIVersion is the API version path segment
	DefaultAPIVersion = "v1beta"

	maxResponseBytes = 4 << 20
)

// RESTConfig configures the direct HTTP transport and the model lister
type RESTConfig struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
}

func (c *RESTConfig) withDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
}

// RESTTransport posts generateContent requests straight to the HTTP API.
type RESTTransport struct {
	cfg    RESTConfig
	logger *zap.Logger
}

// NewRESTTransport creates the direct transport. An empty key is a configuration error.
func NewRESTTransport(cfg RESTConfig, logger *zap.Logger) (*RESTTransport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, missingKeyError()
	}
	cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RESTTransport{cfg: cfg, logger: logger.Named("gemini-rest")}, nil
}

// Name implements domain.InferenceTransport.
func (t *RESTTransport) Name() string {
	return RESTTransportName
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// Generate posts one generateContent request for model.
func (t *RESTTransport) Generate(ctx context.Context, model string, req *domain.InferenceRequest) (string, error) {
	parts := []part{{Text: req.Prompt}}
	if len(req.Image) > 0 {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: req.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(req.Image),
		}})
	}
	body := generateRequest{Contents: []content{{Parts: parts}}}
	if req.JSON {
		body.GenerationConfig = &generationConfig{ResponseMIMEType: "application/json"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent?%s",
		t.cfg.BaseURL, t.cfg.APIVersion, url.PathEscape(model), url.Values{"key": {t.cfg.APIKey}}.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "CigarLens/1.0")

	resp, err := t.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", classifyError(err, 0, model, RESTTransportName)
	}
	defer resp.Body.Close()

	respBody, err := readLimitedBody(resp.Body)
	if err != nil {
		return "", classifyError(err, 0, model, RESTTransportName)
	}

	if resp.StatusCode != http.StatusOK {
		t.logger.Debug("generate returned error status",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode))
		return "", classifyError(statusError(resp.StatusCode, respBody), resp.StatusCode, model, RESTTransportName)
	}

	var decoded generateResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", parseError(model, RESTTransportName, "decode response envelope: "+err.Error())
	}
	if len(decoded.Candidates) == 0 {
		return "", parseError(model, RESTTransportName, "no candidates in response")
	}

	var b strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", parseError(model, RESTTransportName, "empty response (finish reason "+decoded.Candidates[0].FinishReason+")")
	}

	return b.String(), nil
}

func readLimitedBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxResponseBytes))
}
