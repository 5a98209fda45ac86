package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/cigarlens/backend/internal/domain"
)

// SDKTransportName identifies the structured-call transport in logs and metrics
const SDKTransportName = "sdk"

// SDKTransport calls backends through the generative-ai-go client.
type SDKTransport struct {
	client *genai.Client
	logger *zap.Logger
}

// NewSDKTransport creates the SDK client. An empty key is a configuration error.
func NewSDKTransport(ctx context.Context, apiKey string, logger *zap.Logger) (*SDKTransport, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, missingKeyError()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &SDKTransport{client: client, logger: logger.Named("gemini-sdk")}, nil
}

// Name implements domain.InferenceTransport.
func (t *SDKTransport) Name() string {
	return SDKTransportName
}

// Generate sends the prompt (and image, if any) to model and returns the concatenated text parts.
func (t *SDKTransport) Generate(ctx context.Context, model string, req *domain.InferenceRequest) (string, error) {
	gm := t.client.GenerativeModel(model)
	if req.JSON {
		gm.ResponseMIMEType = "application/json"
	}

	parts := []genai.Part{genai.Text(req.Prompt)}
	if len(req.Image) > 0 {
		parts = append(parts, genai.Blob{MIMEType: req.MIMEType, Data: req.Image})
	}

	resp, err := gm.GenerateContent(ctx, parts...)
	if err != nil {
		t.logger.Debug("generate failed", zap.String("model", model), zap.String("error", RedactKey(err.Error())))
		return "", classifyError(err, 0, model, SDKTransportName)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", parseError(model, SDKTransportName, "no candidates in response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", parseError(model, SDKTransportName, fmt.Sprintf("empty response (finish reason %v)", resp.Candidates[0].FinishReason))
	}

	return b.String(), nil
}

// Close releases the underlying client.
func (t *SDKTransport) Close() error {
	return t.client.Close()
}
