// Package anthropic is the Claude provider for the AI gateway, built on the
// official SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codesage/codesage/internal/adapter/httpx"
)

const providerName = "Claude"

// Provider calls the Anthropic Messages API. SDK-internal retries are
// disabled; the gateway owns retry and timeout policy.
type Provider struct {
	api    *anthropic.Client
	apiKey string
	model  anthropic.Model
}

// NewProvider creates a Claude provider. An empty apiKey produces an
// unconfigured provider that the gateway will skip.
func NewProvider(apiKey, model string, extraOpts ...option.RequestOption) *Provider {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	opts = append(opts, extraOpts...)

	client := anthropic.NewClient(opts...)
	return &Provider{
		api:    &client,
		apiKey: apiKey,
		model:  anthropic.Model(model),
	}
}

// Name implements the gateway Provider interface.
func (p *Provider) Name() string { return providerName }

// Model implements the gateway Provider interface.
func (p *Provider) Model() string { return string(p.model) }

// Configured implements the gateway Provider interface.
func (p *Provider) Configured() bool { return p.apiKey != "" }

// Analyze makes one request to the Messages API and returns the reply text.
func (p *Provider) Analyze(ctx context.Context, prompt string) (string, error) {
	msg, err := p.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 2000,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", mapError(err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text content in response")
	}

	return strings.Join(parts, ""), nil
}

// mapError converts SDK errors onto the shared typed error so the gateway's
// retry classification applies.
func mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return httpx.ClassifyStatus("anthropic", apiErr.StatusCode, apiErr.Error())
	}
	// Network-level failures (including deadline expiry) are retryable.
	return httpx.NewTimeoutError("anthropic", err.Error())
}
