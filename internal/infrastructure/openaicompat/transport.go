// Package openaicompat calls inference backends through an OpenAI-compatible chat completions gateway.
package openaicompat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cigarlens/backend/internal/domain"
)

// TransportName identifies this transport in logs and metrics
const TransportName = "openai"

// DefaultBaseURL is the OpenAI-compatible surface of the generative language API
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// Config configures the gateway transport
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Transport implements domain.InferenceTransport over chat completions.
type Transport struct {
	client *openai.Client
	logger *zap.Logger
}

// NewTransport creates the gateway transport. An empty key is a configuration error.
func NewTransport(cfg Config, logger *zap.Logger) (*Transport, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &domain.ConfigurationError{
			Setting:     "inference.api_key",
			Remediation: "set CIGARLENS_INFERENCE_API_KEY for the OpenAI-compatible gateway",
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	return &Transport{
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger.Named("openai-compat"),
	}, nil
}

// Name implements domain.InferenceTransport.
func (t *Transport) Name() string {
	return TransportName
}

// Generate sends one user message (text plus optional inline image) and returns the reply text.
func (t *Transport) Generate(ctx context.Context, model string, req *domain.InferenceRequest) (string, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(req.Image) > 0 {
		dataURL := fmt.Sprintf("data:%s;base64,%s", req.MIMEType, base64.StdEncoding.EncodeToString(req.Image))
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
		}
	} else {
		msg.Content = req.Prompt
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: []openai.ChatCompletionMessage{msg},
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := t.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		t.logger.Debug("chat completion failed",
			zap.String("model", model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", classifyError(err, model)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &domain.BackendError{Kind: domain.ErrParse, Model: model, Transport: TransportName, Message: "no choices in response"}
	}

	t.logger.Debug("chat completion finished",
		zap.String("model", model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// classifyError maps go-openai errors onto backend error kinds.
func classifyError(err error, model string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	message := err.Error()

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		message = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	lower := strings.ToLower(message)
	kind := domain.ErrBackendRejected
	if status == http.StatusNotFound ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "not supported") ||
		strings.Contains(lower, "unsupported") {
		kind = domain.ErrBackendUnavailable
	}

	return &domain.BackendError{
		Kind:       kind,
		Model:      model,
		Transport:  TransportName,
		StatusCode: status,
		Message:    message,
	}
}
