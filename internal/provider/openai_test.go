package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatCompletionBody = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"{\"golden_nuggets\":[]}"},"finish_reason":"stop"}]}`

func newOpenAIAgainst(t *testing.T, handler http.HandlerFunc) *openAICompatible {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newOpenAICompatible(OpenAI, "sk-test", "gpt-4o-mini", server.URL)
}

func TestOpenAIExtract(t *testing.T) {
	var gotPath, gotAuth string
	c := newOpenAIAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionBody))
	})

	raw, err := c.Extract(context.Background(), "source text", "instruction prompt")
	require.NoError(t, err)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	// The raw body passes through unmodified so the normalizer sees the
	// vendor's exact shape.
	assert.JSONEq(t, chatCompletionBody, string(raw))
}

func TestOpenAIExtractErrorCarriesStatus(t *testing.T) {
	c := newOpenAIAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit exceeded. Reset in 60 seconds","type":"rate_limit_error"}}`))
	})
	_, err := c.Extract(context.Background(), "src", "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Rate limit")
}

func TestOpenAIValidateAPIKey(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		c := newOpenAIAgainst(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/models", r.URL.Path)
			assert.Equal(t, "Bearer probe-key", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
		})
		ok, err := c.ValidateAPIKey(context.Background(), "probe-key")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejected key", func(t *testing.T) {
		c := newOpenAIAgainst(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
		})
		ok, err := c.ValidateAPIKey(context.Background(), "bad-key")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("blank keys skip the network", func(t *testing.T) {
		calls := 0
		c := newOpenAIAgainst(t, func(w http.ResponseWriter, r *http.Request) { calls++ })
		for _, cred := range []string{"", "   "} {
			ok, err := c.ValidateAPIKey(context.Background(), cred)
			require.NoError(t, err)
			assert.False(t, ok)
		}
		assert.Equal(t, 0, calls)
	})
}

func TestOpenRouterUsesGatewayBaseURL(t *testing.T) {
	// The OpenRouter variant is the same SDK client pointed elsewhere.
	c := newOpenAICompatible(OpenRouter, "sk-or", "openai/gpt-4o-mini", openRouterBaseURL)
	assert.Equal(t, OpenRouter, c.label)
}
