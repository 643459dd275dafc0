package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// UpstreamConfig holds configuration for the upstream services the worker
// depends on: the synthesis backend, the artifact storage service, and the
// AI providers used for prompt generation and embeddings.
type UpstreamConfig struct {
	// Synthesis configures the video synthesis service client.
	Synthesis SynthesisConfig

	// Storage configures the artifact storage service client.
	Storage StorageConfig

	// OpenAI configures the embedding provider.
	OpenAI OpenAIConfig

	// Anthropic configures the prompt generation provider.
	Anthropic AnthropicConfig

	// Alerts configures failure alert delivery.
	Alerts AlertConfig

	// Observability configures logging and tracing.
	Observability ObservabilityConfig
}

// SynthesisConfig holds synthesis service settings.
type SynthesisConfig struct {
	// BaseURL of the synthesis service. Default: "http://localhost:8090"
	BaseURL string
	// APIKey authenticating requests to the synthesis service.
	APIKey string
	// PollInterval between job status checks. Default: 5s
	PollInterval time.Duration
	// PollTimeout bounds the total wait for a job. Default: 10m
	PollTimeout time.Duration
	// RequestsPerSecond throttles calls to the service. Default: 2
	RequestsPerSecond float64
}

// StorageConfig holds artifact storage service settings.
type StorageConfig struct {
	// BaseURL of the storage service. Default: "http://localhost:8091"
	BaseURL string
	// APIKey authenticating requests to the storage service.
	APIKey string
	// Timeout for a single upload. Default: 60s
	Timeout time.Duration
}

// OpenAIConfig holds embedding provider settings.
type OpenAIConfig struct {
	// APIKey for the OpenAI API. Required when embeddings are enabled.
	APIKey string
}

// AnthropicConfig holds prompt generation provider settings.
type AnthropicConfig struct {
	// APIKey for the Anthropic API. When empty the worker falls back to
	// template-based prompt generation.
	APIKey string
}

// AlertConfig holds failure alert delivery settings. A channel is enabled
// when its webhook URL is set.
type AlertConfig struct {
	// DiscordWebhookURL for Discord alerts. Empty disables the channel.
	DiscordWebhookURL string
	// SlackWebhookURL for Slack alerts. Empty disables the channel.
	SlackWebhookURL string
	// Timeout for a single webhook request. Default: 10s
	Timeout time.Duration
	// MaxConcurrent bounds in-flight alert goroutines. Default: 10
	MaxConcurrent int
}

// ObservabilityConfig holds logging and tracing settings.
type ObservabilityConfig struct {
	// EnableTracing enables OpenTelemetry distributed tracing.
	EnableTracing bool
	// LogLevel for worker operations. Default: "info"
	LogLevel string
	// EnableMetrics enables Prometheus metrics.
	EnableMetrics bool
}

// LoadUpstreamConfig loads upstream service configuration from environment
// variables. Returns a config with defaults if environment variables are
// not set.
func LoadUpstreamConfig() (*UpstreamConfig, error) {
	config := &UpstreamConfig{
		Synthesis: SynthesisConfig{
			BaseURL:           getEnvOrDefault("SYNTHESIS_BASE_URL", "http://localhost:8090"),
			APIKey:            os.Getenv("SYNTHESIS_API_KEY"),
			PollInterval:      getEnvDuration("SYNTHESIS_POLL_INTERVAL", 5*time.Second),
			PollTimeout:       getEnvDuration("SYNTHESIS_POLL_TIMEOUT", 10*time.Minute),
			RequestsPerSecond: getEnvFloat("SYNTHESIS_REQUESTS_PER_SECOND", 2),
		},
		Storage: StorageConfig{
			BaseURL: getEnvOrDefault("STORAGE_BASE_URL", "http://localhost:8091"),
			APIKey:  os.Getenv("STORAGE_API_KEY"),
			Timeout: getEnvDuration("STORAGE_TIMEOUT", 60*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
		},
		Anthropic: AnthropicConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		},
		Alerts: AlertConfig{
			DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
			SlackWebhookURL:   os.Getenv("SLACK_WEBHOOK_URL"),
			Timeout:           getEnvDuration("ALERT_TIMEOUT", 10*time.Second),
			MaxConcurrent:     getEnvInt("ALERT_MAX_CONCURRENT", 10),
		},
		Observability: ObservabilityConfig{
			EnableTracing: getEnvBool("TRACING_ENABLED", false),
			LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
			EnableMetrics: getEnvBool("METRICS_ENABLED", true),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upstream configuration: %w", err)
	}

	return config, nil
}

// Validate checks configuration correctness.
func (c *UpstreamConfig) Validate() error {
	if c.Synthesis.BaseURL == "" {
		return fmt.Errorf("SYNTHESIS_BASE_URL cannot be empty")
	}

	if c.Synthesis.PollInterval <= 0 {
		return fmt.Errorf("SYNTHESIS_POLL_INTERVAL must be positive")
	}

	if c.Synthesis.PollTimeout <= c.Synthesis.PollInterval {
		return fmt.Errorf("SYNTHESIS_POLL_TIMEOUT must exceed SYNTHESIS_POLL_INTERVAL")
	}

	if c.Synthesis.RequestsPerSecond <= 0 {
		return fmt.Errorf("SYNTHESIS_REQUESTS_PER_SECOND must be positive")
	}

	if c.Storage.BaseURL == "" {
		return fmt.Errorf("STORAGE_BASE_URL cannot be empty")
	}

	if c.Storage.Timeout <= 0 {
		return fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}

	if c.Alerts.Timeout <= 0 {
		return fmt.Errorf("ALERT_TIMEOUT must be positive")
	}

	if c.Alerts.MaxConcurrent <= 0 || c.Alerts.MaxConcurrent > 100 {
		return fmt.Errorf("ALERT_MAX_CONCURRENT must be between 1 and 100")
	}

	return nil
}

// DiscordEnabled reports whether the Discord alert channel is configured.
func (c *UpstreamConfig) DiscordEnabled() bool {
	return c.Alerts.DiscordWebhookURL != ""
}

// SlackEnabled reports whether the Slack alert channel is configured.
func (c *UpstreamConfig) SlackEnabled() bool {
	return c.Alerts.SlackWebhookURL != ""
}

// getEnvOrDefault returns environment variable value or default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool parses boolean environment variable with default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt parses integer environment variable with default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat parses float environment variable with default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration parses duration environment variable with default.
// Supports formats like "30s", "1m", "2h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
