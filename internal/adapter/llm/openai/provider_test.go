package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codesage/codesage/internal/adapter/httpx"
	"github.com/codesage/codesage/internal/adapter/llm/openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Analyze_Success(t *testing.T) {
	var gotAuth string
	var gotReq openai.ChatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := openai.ChatCompletionResponse{
			Model: "gpt-4o",
			Choices: []openai.Choice{
				{Message: openai.Message{Role: "assistant", Content: `{"qualityScore": 7.2}`}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	provider := openai.NewProvider("sk-test", "gpt-4o")
	provider.SetBaseURL(server.URL)

	text, err := provider.Analyze(context.Background(), "review this diff")
	require.NoError(t, err)

	assert.Equal(t, `{"qualityScore": 7.2}`, text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "review this diff", gotReq.Messages[1].Content)
}

func TestProvider_Analyze_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	provider := openai.NewProvider("sk-test", "gpt-4o")
	provider.SetBaseURL(server.URL)

	_, err := provider.Analyze(context.Background(), "prompt")
	require.Error(t, err)

	var httpErr *httpx.Error
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, httpx.ErrTypeServiceUnavailable, httpErr.Type)
	assert.True(t, httpErr.Retryable)
	assert.Contains(t, httpErr.Message, "overloaded")
}

func TestProvider_Analyze_AuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	provider := openai.NewProvider("sk-bad", "gpt-4o")
	provider.SetBaseURL(server.URL)

	_, err := provider.Analyze(context.Background(), "prompt")
	require.Error(t, err)

	var httpErr *httpx.Error
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, httpx.ErrTypeAuthentication, httpErr.Type)
	assert.False(t, httpErr.Retryable)
}

func TestProvider_Analyze_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model": "gpt-4o", "choices": []}`))
	}))
	defer server.Close()

	provider := openai.NewProvider("sk-test", "gpt-4o")
	provider.SetBaseURL(server.URL)

	_, err := provider.Analyze(context.Background(), "prompt")
	assert.ErrorContains(t, err, "no choices")
}

func TestProvider_Configured(t *testing.T) {
	assert.True(t, openai.NewProvider("sk-test", "gpt-4o").Configured())
	assert.False(t, openai.NewProvider("", "gpt-4o").Configured())
}
