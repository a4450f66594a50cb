package config

import (
	"time"

	"github.com/codesage/codesage/internal/adapter/httpx"
)

// Config represents the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Store     StoreConfig     `yaml:"store"`
	GitHub    GitHubConfig    `yaml:"github"`
	Providers ProvidersConfig `yaml:"providers"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// KafkaConfig configures the analysis queue.
type KafkaConfig struct {
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
	GroupID string `yaml:"groupId"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// GitHubConfig configures GitHub App authentication. When the app is not
// configured the source-control client runs in mock mode.
type GitHubConfig struct {
	AppID          string `yaml:"appId"`
	PrivateKeyPath string `yaml:"privateKeyPath"`
	InstallationID string `yaml:"installationId"`
	BaseURL        string `yaml:"baseUrl"` // override for testing
}

// Configured reports whether App credentials are present.
func (g GitHubConfig) Configured() bool {
	return g.AppID != "" && g.PrivateKeyPath != "" && g.InstallationID != ""
}

// ProvidersConfig holds the fixed, ordered AI provider list.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseUrl"` // override for testing
}

// Configured reports whether the provider's credential is present.
func (p ProviderConfig) Configured() bool {
	return p.APIKey != ""
}

// HTTPConfig holds global outbound HTTP settings shared by the AI gateway
// and the GitHub client.
type HTTPConfig struct {
	ProviderTimeout   string  `yaml:"providerTimeout"`
	GitHubTimeout     string  `yaml:"githubTimeout"`
	MaxAttempts       int     `yaml:"maxAttempts"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

// RetryConfig converts the configured policy into the shared retry helper's
// config, falling back to defaults for unparseable values.
func (h HTTPConfig) RetryConfig() httpx.RetryConfig {
	rc := httpx.DefaultRetryConfig()
	if h.MaxAttempts > 0 {
		rc.MaxAttempts = h.MaxAttempts
	}
	if d, err := time.ParseDuration(h.InitialBackoff); err == nil && d > 0 {
		rc.InitialBackoff = d
	}
	if d, err := time.ParseDuration(h.MaxBackoff); err == nil && d > 0 {
		rc.MaxBackoff = d
	}
	if h.BackoffMultiplier > 1 {
		rc.Multiplier = h.BackoffMultiplier
	}
	return rc
}

// ProviderTimeoutDuration returns the per-call timeout for AI provider calls.
func (h HTTPConfig) ProviderTimeoutDuration() time.Duration {
	return parseDurationOr(h.ProviderTimeout, 30*time.Second)
}

// GitHubTimeoutDuration returns the per-call timeout for GitHub API calls.
func (h HTTPConfig) GitHubTimeoutDuration() time.Duration {
	return parseDurationOr(h.GitHubTimeout, 15*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, error
	Format string `yaml:"format"` // json, human
}
