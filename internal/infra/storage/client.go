// Package storage provides the client for the asset storage service where
// finished video files are persisted.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"infinite-feed/internal/resilience/circuitbreaker"
	"infinite-feed/internal/resilience/retry"
)

// Store persists a video asset and returns its serving URL.
type Store interface {
	Persist(ctx context.Context, videoID string, data []byte) (string, error)
}

// Config holds configuration parameters for the storage client.
type Config struct {
	// BaseURL is the root URL of the storage service.
	BaseURL string

	// APIKey authenticates requests to the storage service.
	APIKey string

	// Timeout bounds a single upload request.
	Timeout time.Duration
}

// DefaultConfig returns production defaults for the storage client.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Timeout: 60 * time.Second,
	}
}

// Client implements Store over HTTP.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewClient creates a new storage client.
func NewClient(cfg Config) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: circuitbreaker.New(circuitbreaker.StorageConfig()),
		retryConfig:    retry.StorageConfig(),
		config:         cfg,
	}
}

type persistResponse struct {
	URL string `json:"url"`
}

// Breaker exposes the client's circuit breaker for health reporting.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.circuitBreaker
}

// Persist uploads the asset under the video ID and returns the URL the
// asset is served from. Uploads are idempotent: re-uploading the same
// video ID overwrites the previous object and returns the same URL.
func (c *Client) Persist(ctx context.Context, videoID string, data []byte) (string, error) {
	if videoID == "" {
		return "", fmt.Errorf("Persist: video id is empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("Persist: asset is empty")
	}

	start := time.Now()

	var url string
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doPersist(ctx, videoID, data)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("storage circuit breaker open, request rejected",
					slog.String("service", "asset-storage"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("storage unavailable: circuit breaker open")
			}
			return err
		}
		url = result.(string)
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("Persist: %w", retryErr)
	}

	slog.InfoContext(ctx, "asset persisted",
		slog.String("video_id", videoID),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)))

	return url, nil
}

// doPersist performs the actual upload without retry or circuit breaker.
func (c *Client) doPersist(ctx context.Context, videoID string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.config.BaseURL+"/v1/videos/"+videoID, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "video/mp4")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	var parsed persistResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("storage returned empty url")
	}

	return parsed.URL, nil
}
