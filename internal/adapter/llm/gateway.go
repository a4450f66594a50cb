// Package llm implements the AI provider gateway: an ordered list of
// providers tried with bounded retries, falling back to the next configured
// provider and finally to a deterministic mock.
package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/codesage/codesage/internal/adapter/httpx"
)

// Provider is a single AI backend the gateway can attempt.
type Provider interface {
	// Name identifies the provider in logs and persisted reviews.
	Name() string

	// Model is the model identifier the provider calls.
	Model() string

	// Configured reports whether the provider's credential is present.
	// Unconfigured providers are skipped without being attempted.
	Configured() bool

	// Analyze performs a single attempt against the backend. Transient
	// failures must be returned as retryable httpx errors.
	Analyze(ctx context.Context, prompt string) (string, error)
}

// Result is the raw provider reply plus attribution.
type Result struct {
	RawText  string
	Provider string
	Model    string
}

// Gateway tries providers in order with a shared retry policy.
type Gateway struct {
	providers []Provider
	retry     httpx.RetryConfig
	timeout   time.Duration
}

// NewGateway creates a gateway over an ordered provider list. The list is
// expected to end with a provider that is always configured (the mock), so
// analysis never stalls in an environment without credentials.
func NewGateway(providers []Provider, retry httpx.RetryConfig, timeout time.Duration) *Gateway {
	return &Gateway{
		providers: providers,
		retry:     retry,
		timeout:   timeout,
	}
}

// Analyze builds the review prompt and runs it through the provider chain.
// Each configured provider gets the full retry budget before the gateway
// falls through to the next one.
func (g *Gateway) Analyze(ctx context.Context, diff string) (Result, error) {
	prompt := BuildPrompt(diff)

	var lastErr error
	for _, provider := range g.providers {
		if !provider.Configured() {
			log.Printf("[INFO] llm: provider %s not configured, skipping", provider.Name())
			continue
		}

		raw, err := g.attempt(ctx, provider, prompt)
		if err != nil {
			log.Printf("[WARN] llm: provider %s failed, falling through: %v", provider.Name(), err)
			lastErr = err
			continue
		}

		return Result{
			RawText:  raw,
			Provider: provider.Name(),
			Model:    provider.Model(),
		}, nil
	}

	if lastErr != nil {
		return Result{}, fmt.Errorf("all AI providers failed: %w", lastErr)
	}
	return Result{}, fmt.Errorf("no AI provider available")
}

// attempt runs one provider with the bounded retry policy and a per-call
// timeout on every attempt.
func (g *Gateway) attempt(ctx context.Context, provider Provider, prompt string) (string, error) {
	var raw string

	err := httpx.RetryWithBackoff(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		text, err := provider.Analyze(callCtx, prompt)
		if err != nil {
			if callCtx.Err() == context.DeadlineExceeded {
				return httpx.NewTimeoutError(provider.Name(), err.Error())
			}
			return err
		}

		raw = text
		return nil
	}, g.retry)

	if err != nil {
		return "", err
	}
	return raw, nil
}
