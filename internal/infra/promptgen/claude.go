// Package promptgen provides AI-powered video prompt generation.
// It includes a Claude (Anthropic) adapter with reliability patterns and a
// deterministic template fallback for when the API is unavailable.
package promptgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"infinite-feed/internal/resilience/circuitbreaker"
	"infinite-feed/internal/resilience/retry"
	"infinite-feed/internal/utils/text"
)

// Generator produces a fresh video prompt from seed prompts. Seeds are the
// prompts of catalog videos closest to the user's preference vector,
// ordered by similarity descending.
type Generator interface {
	GeneratePrompt(ctx context.Context, seedPrompts []string) (string, error)
}

// ClaudeConfig holds configuration parameters for the Claude prompt
// generator.
type ClaudeConfig struct {
	// Model is the Claude API model identifier.
	Model string

	// MaxTokens is the maximum number of tokens for the API response.
	MaxTokens int

	// Timeout is the maximum duration for a single generation API call.
	Timeout time.Duration

	// MaxPromptChars caps the length of the generated prompt. Longer
	// responses are truncated before being handed to synthesis.
	MaxPromptChars int
}

// DefaultClaudeConfig returns production defaults for the Claude generator.
func DefaultClaudeConfig() ClaudeConfig {
	return ClaudeConfig{
		Model:          "claude-sonnet-4-5-20250929",
		MaxTokens:      512,
		Timeout:        30 * time.Second,
		MaxPromptChars: 600,
	}
}

// Claude implements Generator using Anthropic's Claude API.
// It includes circuit breaker and retry logic for improved reliability.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         ClaudeConfig
	fallback       Generator
}

// NewClaude creates a new Claude prompt generator with the given API key.
// When the circuit breaker is open or retries are exhausted, generation
// falls back to the deterministic template generator so queue items still
// make progress.
func NewClaude(apiKey string) *Claude {
	config := DefaultClaudeConfig()

	slog.Info("initialized claude prompt generator",
		slog.String("model", config.Model),
		slog.Int("max_tokens", config.MaxTokens))

	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.PromptAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
		fallback:       NewTemplate(),
	}
}

// Breaker exposes the client's circuit breaker for health reporting.
func (c *Claude) Breaker() *circuitbreaker.CircuitBreaker {
	return c.circuitBreaker
}

// GeneratePrompt produces a new video prompt riffing on the seed prompts.
func (c *Claude) GeneratePrompt(ctx context.Context, seedPrompts []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doGenerate(ctx, seedPrompts)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("prompt api circuit breaker open, request rejected",
					slog.String("service", "prompt-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("prompt api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		slog.Warn("claude prompt generation failed, using template fallback",
			slog.String("error", retryErr.Error()))
		return c.fallback.GeneratePrompt(ctx, seedPrompts)
	}

	return result, nil
}

// buildPrompt constructs the instruction for the prompt generation call.
func (c *Claude) buildPrompt(seedPrompts []string) string {
	var b strings.Builder
	b.WriteString("You write prompts for a short-form video generation model. ")
	b.WriteString("Below are prompts of videos a viewer enjoyed, most similar first. ")
	fmt.Fprintf(&b, "Write ONE new prompt in the same style, under %d characters. ", c.config.MaxPromptChars)
	b.WriteString("Respond with the prompt only, no preamble.\n\n")
	for i, seed := range seedPrompts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, seed)
	}
	return b.String()
}

// doGenerate performs the actual API call without retry or circuit breaker.
func (c *Claude) doGenerate(ctx context.Context, seedPrompts []string) (string, error) {
	requestID := uuid.New().String()

	slog.InfoContext(ctx, "starting prompt generation",
		slog.String("request_id", requestID),
		slog.Int("seed_count", len(seedPrompts)))

	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(c.buildPrompt(seedPrompts)),
			),
		},
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "prompt generation failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	prompt := strings.TrimSpace(textBlock.Text)
	if text.CountRunes(prompt) > c.config.MaxPromptChars {
		prompt = text.TruncateRunes(prompt, c.config.MaxPromptChars)
	}

	slog.InfoContext(ctx, "prompt generation completed",
		slog.String("request_id", requestID),
		slog.Int("prompt_length", text.CountRunes(prompt)),
		slog.Duration("duration", duration))

	return prompt, nil
}
