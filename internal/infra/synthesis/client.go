// Package synthesis provides the client for the external video synthesis
// service. Jobs are asynchronous: the client starts a job, polls until it
// finishes, then downloads the produced asset.
package synthesis

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
	"golang.org/x/time/rate"

	"infinite-feed/internal/resilience/circuitbreaker"
	"infinite-feed/internal/resilience/retry"
)

// ErrJobFailed is returned when the synthesis service reports a job as
// failed. It is not retryable: the same prompt will fail again.
var ErrJobFailed = errors.New("synthesis job failed")

// Synthesizer produces a video asset for a prompt.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string, durationSeconds int) ([]byte, error)
}

// Config holds configuration parameters for the synthesis client.
type Config struct {
	// BaseURL is the root URL of the synthesis service.
	BaseURL string

	// APIKey authenticates requests to the synthesis service.
	APIKey string

	// PollInterval is the delay between job status checks.
	PollInterval time.Duration

	// PollTimeout bounds the total time waiting for a job to finish.
	PollTimeout time.Duration

	// RequestsPerSecond throttles calls to the service. Synthesis
	// backends enforce strict quotas, so the client limits itself
	// before the server does.
	RequestsPerSecond float64
}

// DefaultConfig returns production defaults for the synthesis client.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:           baseURL,
		APIKey:            apiKey,
		PollInterval:      5 * time.Second,
		PollTimeout:       10 * time.Minute,
		RequestsPerSecond: 2,
	}
}

// Client implements Synthesizer over HTTP.
type Client struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewClient creates a new synthesis client.
func NewClient(cfg Config) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		circuitBreaker: circuitbreaker.New(circuitbreaker.SynthesisConfig()),
		retryConfig:    retry.SynthesisConfig(),
		config:         cfg,
	}
}

type startRequest struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
}

type jobResponse struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"` // queued, running, done, failed
	AssetURL string `json:"asset_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Breaker exposes the client's circuit breaker for health reporting.
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.circuitBreaker
}

// Synthesize runs the full start-poll-download cycle for one prompt and
// returns the raw video bytes.
func (c *Client) Synthesize(ctx context.Context, prompt string, durationSeconds int) ([]byte, error) {
	start := time.Now()

	job, err := c.startJob(ctx, prompt, durationSeconds)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}

	slog.InfoContext(ctx, "synthesis job started",
		slog.String("job_id", job.JobID))

	job, err = c.waitForJob(ctx, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}

	data, err := c.download(ctx, job.AssetURL)
	if err != nil {
		return nil, fmt.Errorf("Synthesize: %w", err)
	}

	slog.InfoContext(ctx, "synthesis completed",
		slog.String("job_id", job.JobID),
		slog.Int("asset_bytes", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// startJob submits a new synthesis job.
func (c *Client) startJob(ctx context.Context, prompt string, durationSeconds int) (*jobResponse, error) {
	body, err := json.Marshal(startRequest{
		Prompt:          prompt,
		DurationSeconds: durationSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("startJob: %w", err)
	}

	var job *jobResponse
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doJSONRequest(ctx, http.MethodPost, c.config.BaseURL+"/v1/jobs", bytes.NewReader(body))
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return fmt.Errorf("synthesis service unavailable: circuit breaker open")
			}
			return err
		}
		job = result.(*jobResponse)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	return job, nil
}

// waitForJob polls until the job reaches a terminal state or the poll
// timeout elapses.
func (c *Client) waitForJob(ctx context.Context, jobID string) (*jobResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		job, err := c.pollJob(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				c.cancelJob(jobID)
			}
			return nil, err
		}

		switch job.Status {
		case "done":
			return job, nil
		case "failed":
			return nil, fmt.Errorf("job %s: %s: %w", jobID, job.Error, ErrJobFailed)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			c.cancelJob(jobID)
			return nil, fmt.Errorf("waitForJob: %w", ctx.Err())
		}
	}
}

// cancelJob asks the service to stop a job we are no longer waiting for.
// Best effort: the caller's context is already cancelled, so a fresh
// short-lived one is used and failures are only logged. Orphaned jobs
// eventually expire server-side either way.
func (c *Client) cancelJob(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.config.BaseURL+"/v1/jobs/"+jobID, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("synthesis job cancellation failed",
			slog.String("job_id", jobID),
			slog.Any("error", err))
		return
	}
	_ = resp.Body.Close()

	slog.Info("synthesis job cancelled",
		slog.String("job_id", jobID),
		slog.Int("status", resp.StatusCode))
}

// pollJob fetches the current status of a job.
func (c *Client) pollJob(ctx context.Context, jobID string) (*jobResponse, error) {
	var job *jobResponse
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		result, err := c.doJSONRequest(ctx, http.MethodGet, c.config.BaseURL+"/v1/jobs/"+jobID, nil)
		if err != nil {
			return err
		}
		job = result.(*jobResponse)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return job, nil
}

// doJSONRequest issues one rate-limited request and decodes the job
// response.
func (c *Client) doJSONRequest(ctx context.Context, method, url string, body io.Reader) (interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &job, nil
}

// download fetches the finished asset.
func (c *Client) download(ctx context.Context, assetURL string) ([]byte, error) {
	if assetURL == "" {
		return nil, fmt.Errorf("download: job finished without asset url")
	}

	var data []byte
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 400 {
			return &retry.HTTPError{StatusCode: resp.StatusCode, Message: "asset download failed"}
		}

		data, err = io.ReadAll(resp.Body)
		return err
	})
	if retryErr != nil {
		return nil, retryErr
	}

	return data, nil
}
