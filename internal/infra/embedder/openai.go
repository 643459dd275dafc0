// Package embedder provides text embedding implementations used to place
// prompts and user preferences in a shared vector space.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/resilience/circuitbreaker"
	"infinite-feed/internal/resilience/retry"
)

// Embedder converts text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, input string) ([]float32, error)
}

// OpenAIConfig holds configuration parameters for the OpenAI embedder.
type OpenAIConfig struct {
	// Model is the embedding model identifier.
	Model openai.EmbeddingModel

	// Timeout is the maximum duration for a single embedding API call.
	Timeout time.Duration
}

// DefaultOpenAIConfig returns production defaults for the embedder.
// text-embedding-3-small produces 1536-dimension vectors, matching the
// pgvector column width.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:   openai.SmallEmbedding3,
		Timeout: 30 * time.Second,
	}
}

// OpenAI implements Embedder using the OpenAI embeddings API.
// It includes circuit breaker and retry logic for improved reliability.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         OpenAIConfig
}

// NewOpenAI creates a new OpenAI embedder with the given API key.
func NewOpenAI(apiKey string) *OpenAI {
	config := DefaultOpenAIConfig()

	slog.Info("initialized openai embedder",
		slog.String("model", string(config.Model)))

	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		config:         config,
	}
}

// Breaker exposes the client's circuit breaker for health reporting.
func (o *OpenAI) Breaker() *circuitbreaker.CircuitBreaker {
	return o.circuitBreaker
}

// Embed converts the input text into an embedding vector.
func (o *OpenAI) Embed(ctx context.Context, input string) ([]float32, error) {
	if input == "" {
		return nil, fmt.Errorf("Embed: input is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var result []float32

	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doEmbed(ctx, input)
		})

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("embedding api circuit breaker open, request rejected",
					slog.String("service", "embedding-api"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("embedding api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.([]float32)
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("Embed: %w", retryErr)
	}

	return result, nil
}

// doEmbed performs the actual API call without retry or circuit breaker.
func (o *OpenAI) doEmbed(ctx context.Context, input string) ([]float32, error) {
	start := time.Now()

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{input},
		Model: o.config.Model,
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "embedding request failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai api returned no embeddings")
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != entity.PreferenceDimension {
		return nil, fmt.Errorf("unexpected embedding dimension %d: %w",
			len(embedding), entity.ErrPreferenceDimension)
	}

	slog.DebugContext(ctx, "embedding request completed",
		slog.Int("dimension", len(embedding)),
		slog.Duration("duration", duration))

	return embedding, nil
}
