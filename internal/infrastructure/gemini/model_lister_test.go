package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cigarlens/backend/internal/domain"
)

func TestModelLister_ListModels(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{
				"models": [
					{"name": "models/gemini-2.0-flash", "supportedGenerationMethods": ["generateContent", "countTokens"]},
					{"name": "models/text-embedding-004", "supportedGenerationMethods": ["embedContent"]}
				],
				"nextPageToken": "page2"
			}`))
			return
		}
		_, _ = w.Write([]byte(`{"models": [{"name": "models/gemini-1.5-pro", "supportedGenerationMethods": ["generateContent"]}]}`))
	}))
	defer server.Close()

	lister, err := NewModelLister(RESTConfig{APIKey: "test-key", BaseURL: server.URL}, nil)
	require.NoError(t, err)

	models, err := lister.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-pro"}, models)
	assert.Equal(t, 2, calls)
}

func TestModelLister_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	lister, err := NewModelLister(RESTConfig{APIKey: "test-key", BaseURL: server.URL}, nil)
	require.NoError(t, err)

	_, err = lister.ListModels(context.Background())
	assert.ErrorIs(t, err, domain.ErrBackendRejected)
}

func TestNewModelLister_MissingKey(t *testing.T) {
	_, err := NewModelLister(RESTConfig{}, nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
