package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SlackConfig configures the Slack Incoming Webhook channel.
type SlackConfig struct {
	Enabled bool

	// WebhookURL embeds the authentication token.
	WebhookURL string

	Timeout time.Duration
}

// SlackNotifier posts failure alerts to a Slack Incoming Webhook.
type SlackNotifier struct {
	config      SlackConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewSlackNotifier paces calls at 1 req/s with no burst, matching
// Slack's one message per second webhook limit.
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(1.0, 1),
	}
}

// SlackWebhookPayload is the Block Kit body posted to the webhook.
type SlackWebhookPayload struct {
	Text   string       `json:"text"` // notification fallback
	Blocks []SlackBlock `json:"blocks"`
}

type SlackBlock struct {
	Type     string            `json:"type"` // "section" or "context"
	Text     *SlackTextObject  `json:"text,omitempty"`
	Elements []SlackTextObject `json:"elements,omitempty"`
}

type SlackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"`
}

const (
	maxSectionTextLength = 3000
	maxContextTextLength = 2000
	maxFallbackLength    = 150

	slackTruncationSuffix = "..."
)

// buildBlockKitPayload renders the alert as a section block with the
// failure detail and prompt, plus a context block carrying kind,
// attempt count and failure time. Fields are cut to Block Kit limits.
func (s *SlackNotifier) buildBlockKitPayload(alert *FailureAlert) SlackWebhookPayload {
	fallbackText := fmt.Sprintf("generation failed: %s (user %s)", alert.ItemID, alert.UserID)
	if len(fallbackText) > maxFallbackLength {
		fallbackText = fallbackText[:maxFallbackLength-len(slackTruncationSuffix)] + slackTruncationSuffix
	}

	sectionText := fmt.Sprintf("*Video generation failed*\nitem `%s` for user `%s`\n\n%s",
		alert.ItemID, alert.UserID, alert.LastError)
	if alert.Prompt != "" {
		sectionText += fmt.Sprintf("\n\n> %s", alert.Prompt)
	}
	sectionText = truncateText(sectionText, maxSectionTextLength, slackTruncationSuffix)

	contextText := fmt.Sprintf("%s • %d attempts • %s",
		alert.Kind, alert.Attempts, alert.FailedAt.Format(time.RFC3339))
	contextText = truncateText(contextText, maxContextTextLength, slackTruncationSuffix)

	return SlackWebhookPayload{
		Text: fallbackText,
		Blocks: []SlackBlock{
			{
				Type: "section",
				Text: &SlackTextObject{Type: "mrkdwn", Text: sectionText},
			},
			{
				Type:     "context",
				Elements: []SlackTextObject{{Type: "mrkdwn", Text: contextText}},
			},
		},
	}
}

// sendWebhookRequest posts one alert. Non-2xx responses map to the
// shared typed errors, mirroring the Discord channel.
func (s *SlackNotifier) sendWebhookRequest(ctx context.Context, alert *FailureAlert) error {
	jsonData, err := json.Marshal(s.buildBlockKitPayload(alert))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    "Slack rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Slack API client error: %s", string(body)),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Slack API server error: %s", string(body)),
		}
	default:
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}
}

// NotifyFailure posts an alert for a permanently failed queue item,
// tagged with a fresh request_id and paced by the channel rate limiter.
func (s *SlackNotifier) NotifyFailure(ctx context.Context, alert *FailureAlert) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	slog.Info("Starting Slack alert",
		slog.String("request_id", requestID),
		slog.String("item_id", alert.ItemID),
		slog.String("user_id", alert.UserID))

	if err := s.rateLimiter.Allow(ctx); err != nil {
		slog.Error("Rate limiter error",
			slog.String("request_id", requestID),
			slog.String("item_id", alert.ItemID),
			slog.Any("error", err))
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return deliverWithRetry(ctx, "Slack", alert, s.sendWebhookRequest)
}
