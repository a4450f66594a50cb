// Package static provides the deterministic mock analysis used when no real
// AI provider is configured. It keeps the pipeline exercisable with zero
// external credentials.
package static

import "context"

const (
	providerName = "Mock"
	modelName    = "codesage-mock-v1"
)

// mockAnalysis is a fixed, valid analysis document. It is byte-identical on
// every call so tests can assert on it.
const mockAnalysis = `{
  "qualityScore": 8.5,
  "summary": "Overall good code quality with minor improvements needed",
  "issues": [
    {
      "type": "CODE_QUALITY",
      "severity": "MEDIUM",
      "file": "internal/service/example.go",
      "line": 42,
      "title": "Consider extracting function",
      "description": "This function is doing too many things. Consider extracting logic into separate functions.",
      "suggestion": "Break down into smaller, focused functions for better maintainability"
    }
  ],
  "strengths": ["Good test coverage", "Clear variable naming", "Proper error handling"]
}`

// Provider is the always-configured mock at the end of the provider chain.
type Provider struct{}

// NewProvider constructs the mock provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name implements the gateway Provider interface.
func (p *Provider) Name() string { return providerName }

// Model implements the gateway Provider interface.
func (p *Provider) Model() string { return modelName }

// Configured always returns true; the mock is the guaranteed fallback.
func (p *Provider) Configured() bool { return true }

// Analyze returns the fixed analysis document.
func (p *Provider) Analyze(ctx context.Context, prompt string) (string, error) {
	return mockAnalysis, nil
}
