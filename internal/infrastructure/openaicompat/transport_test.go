package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cigarlens/backend/internal/domain"
)

func TestNewTransport_MissingKey(t *testing.T) {
	_, err := NewTransport(Config{}, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestTransport_Generate_WithImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gemini-2.0-flash", body["model"])
		format, ok := body["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_object", format["type"])

		messages := body["messages"].([]any)
		parts := messages[0].(map[string]any)["content"].([]any)
		require.Len(t, parts, 2)
		imagePart := parts[1].(map[string]any)["image_url"].(map[string]any)
		assert.True(t, strings.HasPrefix(imagePart["url"].(string), "data:image/png;base64,"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"brand\":\"Padron\"}"}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`))
	}))
	defer server.Close()

	transport, err := NewTransport(Config{APIKey: "test-key", BaseURL: server.URL}, nil)
	require.NoError(t, err)

	text, err := transport.Generate(context.Background(), "gemini-2.0-flash", &domain.InferenceRequest{
		Prompt:   "identify",
		Image:    []byte{0x89, 0x50},
		MIMEType: "image/png",
		JSON:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"brand":"Padron"}`, text)
}

func TestTransport_Generate_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"model not found", http.StatusNotFound, `{"error":{"message":"model not found","type":"invalid_request_error"}}`, domain.ErrBackendUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"quota exceeded","type":"rate_limit"}}`, domain.ErrBackendRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			transport, err := NewTransport(Config{APIKey: "k", BaseURL: server.URL}, nil)
			require.NoError(t, err)

			_, err = transport.Generate(context.Background(), "m", &domain.InferenceRequest{Prompt: "p"})
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestTransport_Generate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	transport, err := NewTransport(Config{APIKey: "k", BaseURL: server.URL}, nil)
	require.NoError(t, err)

	_, err = transport.Generate(context.Background(), "m", &domain.InferenceRequest{Prompt: "p"})
	assert.ErrorIs(t, err, domain.ErrParse)
}
