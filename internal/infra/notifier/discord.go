package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DiscordConfig configures the Discord webhook channel.
type DiscordConfig struct {
	Enabled bool

	// WebhookURL embeds the authentication token.
	WebhookURL string

	Timeout time.Duration
}

// DiscordNotifier posts failure alerts to a Discord webhook.
type DiscordNotifier struct {
	config      DiscordConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewDiscordNotifier paces calls at 0.5 req/s with a burst of 3, under
// Discord's 30 requests per minute webhook limit.
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(0.5, 3),
	}
}

// DiscordWebhookPayload is the JSON body posted to the webhook.
type DiscordWebhookPayload struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Color       int                `json:"color"`
	Footer      DiscordEmbedFooter `json:"footer"`
	Timestamp   string             `json:"timestamp"`
}

type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

// DiscordErrorResponse is what Discord returns on 429s.
type DiscordErrorResponse struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"` // seconds
}

const (
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	truncationSuffix     = "..."

	// Discord red (#ED4245).
	discordRedColor = 15548997
)

// buildEmbedPayload renders the alert as a red embed: item ID in the
// title, last error and prompt in the description, kind and attempt
// count in the footer. Both fields are cut to Discord's embed limits.
func (d *DiscordNotifier) buildEmbedPayload(alert *FailureAlert) DiscordWebhookPayload {
	title := fmt.Sprintf("Video generation failed: %s", alert.ItemID)
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}

	description := fmt.Sprintf("user `%s`\n\n%s", alert.UserID, alert.LastError)
	if alert.Prompt != "" {
		description += fmt.Sprintf("\n\n> %s", alert.Prompt)
	}
	description = truncateText(description, maxDescriptionLength, truncationSuffix)

	return DiscordWebhookPayload{
		Embeds: []DiscordEmbed{{
			Title:       title,
			Description: description,
			Color:       discordRedColor,
			Footer: DiscordEmbedFooter{
				Text: fmt.Sprintf("%s • %d attempts", alert.Kind, alert.Attempts),
			},
			Timestamp: alert.FailedAt.Format(time.RFC3339),
		}},
	}
}

// sendWebhookRequest posts one alert. Non-2xx responses map to typed
// errors: 429 to RateLimitError, other 4xx to ClientError
// (non-retryable), 5xx to ServerError.
func (d *DiscordNotifier) sendWebhookRequest(ctx context.Context, alert *FailureAlert) error {
	jsonData, err := json.Marshal(d.buildEmbedPayload(alert))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
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
			Message:    "Discord rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Discord API client error: %s", string(body)),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Discord API server error: %s", string(body)),
		}
	default:
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}
}

// extractRetryAfter reads retry_after from the JSON body, falling back
// to the Retry-After header and then a 5 second default.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var discordErr DiscordErrorResponse
	if err := json.Unmarshal(body, &discordErr); err == nil && discordErr.RetryAfter > 0 {
		return time.Duration(discordErr.RetryAfter * float64(time.Second))
	}

	if h := resp.Header.Get("Retry-After"); h != "" {
		if seconds, err := strconv.Atoi(h); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}

// NotifyFailure posts an alert for a permanently failed queue item,
// tagged with a fresh request_id and paced by the channel rate limiter.
func (d *DiscordNotifier) NotifyFailure(ctx context.Context, alert *FailureAlert) error {
	requestID := uuid.New().String()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	slog.Info("Starting Discord alert",
		slog.String("request_id", requestID),
		slog.String("item_id", alert.ItemID),
		slog.String("user_id", alert.UserID))

	if err := d.rateLimiter.Allow(ctx); err != nil {
		slog.Error("Rate limiter error",
			slog.String("request_id", requestID),
			slog.String("item_id", alert.ItemID),
			slog.Any("error", err))
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return deliverWithRetry(ctx, "Discord", alert, d.sendWebhookRequest)
}
