// Package openai is the OpenAI chat-completions provider for the AI gateway.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/codesage/codesage/internal/adapter/httpx"
)

const (
	providerName   = "OpenAI"
	defaultBaseURL = "https://api.openai.com"
	systemPrompt   = "You are an expert code reviewer. Analyze code and provide structured feedback in JSON format."
)

// Provider calls the OpenAI chat completions API. Each Analyze call is a
// single attempt; the gateway owns retry and timeout policy.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewProvider creates an OpenAI provider. An empty apiKey produces an
// unconfigured provider that the gateway will skip.
func NewProvider(apiKey, model string) *Provider {
	return &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{},
	}
}

// SetBaseURL sets a custom base URL (for testing).
func (p *Provider) SetBaseURL(url string) {
	p.baseURL = url
}

// Name implements the gateway Provider interface.
func (p *Provider) Name() string { return providerName }

// Model implements the gateway Provider interface.
func (p *Provider) Model() string { return p.model }

// Configured implements the gateway Provider interface.
func (p *Provider) Configured() bool { return p.apiKey != "" }

// Analyze makes one request to the chat completions API and returns the
// assistant's reply text.
func (p *Provider) Analyze(ctx context.Context, prompt string) (string, error) {
	reqBody := ChatCompletionRequest{
		Model: p.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := p.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", httpx.NewTimeoutError("openai", err.Error())
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", classifyError(resp.StatusCode, bodyBytes)
	}

	var completion ChatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &completion); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return completion.Choices[0].Message.Content, nil
}

// classifyError maps the API error envelope onto the shared typed error.
func classifyError(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d", statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return httpx.ClassifyStatus("openai", statusCode, message)
}
