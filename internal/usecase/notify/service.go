package notify

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"infinite-feed/internal/domain/entity"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "request_id"

const (
	breakerFailureThreshold = 5               // consecutive failures before a channel is disabled
	breakerOpenDuration     = 5 * time.Minute // how long a tripped channel stays disabled
	slotAcquireTimeout      = 5 * time.Second // wait for a worker slot before dropping
	sendTimeout             = 30 * time.Second
)

// Service fans failure alerts out to the configured channels. Dispatch
// is asynchronous: the worker that detected the failure never waits on
// a webhook.
type Service interface {
	// NotifyItemFailed alerts every enabled channel about a queue item
	// that exhausted its retry budget. It returns immediately; delivery
	// errors are logged, never propagated, so alerting cannot stall the
	// generation pipeline.
	NotifyItemFailed(ctx context.Context, item *entity.QueueItem) error

	// GetChannelHealth reports per-channel circuit breaker state for the
	// worker's readiness endpoint.
	GetChannelHealth() []ChannelHealthStatus

	// Shutdown waits for in-flight alerts until ctx expires.
	Shutdown(ctx context.Context) error
}

// ChannelHealthStatus is one channel's entry in the readiness report.
type ChannelHealthStatus struct {
	Name               string
	Enabled            bool
	CircuitBreakerOpen bool
	DisabledUntil      *time.Time // nil while the breaker is closed
}

type service struct {
	channels       []Channel
	workerPool     chan struct{} // semaphore bounding concurrent sends
	channelHealth  map[string]*channelHealth
	healthMu       sync.RWMutex
	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// channelHealth is the per-channel breaker: consecutive failures and
// the time until which the channel is disabled.
type channelHealth struct {
	consecutiveFailures int
	disabledUntil       time.Time
	mu                  sync.Mutex
}

// NewService builds the alert service. maxConcurrent bounds how many
// sends run at once across all channels.
func NewService(channels []Channel, maxConcurrent int) Service {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	svc := &service{
		channels:       channels,
		workerPool:     make(chan struct{}, maxConcurrent),
		channelHealth:  make(map[string]*channelHealth),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	for _, ch := range channels {
		svc.channelHealth[ch.Name()] = &channelHealth{}
	}
	return svc
}

func (s *service) NotifyItemFailed(ctx context.Context, item *entity.QueueItem) error {
	if item == nil || item.ID == "" {
		slog.Warn("Invalid alert input", slog.Bool("nil_item", item == nil))
		return nil
	}

	// Inherit the caller's request ID when present.
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		requestID = uuid.New().String()
	}

	enabledCount := 0
	for _, ch := range s.channels {
		if ch.IsEnabled() {
			enabledCount++
		}
	}
	SetChannelsEnabled(float64(enabledCount))

	if enabledCount == 0 {
		slog.Debug("No alert channels enabled",
			slog.String("request_id", requestID),
			slog.String("item_id", item.ID))
		return nil
	}

	slog.Info("Dispatching failure alert",
		slog.String("request_id", requestID),
		slog.String("item_id", item.ID),
		slog.String("user_id", item.UserID),
		slog.Int("enabled_channels", enabledCount))

	for _, ch := range s.channels {
		if ch.IsEnabled() {
			channel := ch
			s.wg.Add(1)
			go s.notifyChannel(requestID, channel, item)
		}
	}
	return nil
}

func (s *service) notifyChannel(requestID string, channel Channel, item *entity.QueueItem) {
	defer s.wg.Done()

	IncrementActiveGoroutines()
	defer DecrementActiveGoroutines()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in alert channel",
				slog.String("request_id", requestID),
				slog.String("channel", channel.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	select {
	case s.workerPool <- struct{}{}:
		defer func() { <-s.workerPool }()
	case <-time.After(slotAcquireTimeout):
		slog.Warn("Alert dropped: worker pool full",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()))
		RecordDropped(channel.Name(), "pool_full")
		return
	}

	health := s.healthFor(channel.Name())
	health.mu.Lock()
	if time.Now().Before(health.disabledUntil) {
		slog.Warn("Channel temporarily disabled due to circuit breaker",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()),
			slog.Time("disabled_until", health.disabledUntil))
		health.mu.Unlock()
		RecordDropped(channel.Name(), "circuit_open")
		return
	}
	health.mu.Unlock()

	// Derive from the shutdown context so Shutdown interrupts the send.
	ctx, cancel := context.WithTimeout(s.shutdownCtx, sendTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, requestIDKey, requestID)

	startTime := time.Now()
	RecordDispatch(channel.Name())

	err := channel.Send(ctx, item)
	duration := time.Since(startTime)

	health.mu.Lock()
	if err != nil {
		health.consecutiveFailures++
		if health.consecutiveFailures >= breakerFailureThreshold {
			health.disabledUntil = time.Now().Add(breakerOpenDuration)
			slog.Error("Circuit breaker opened for channel",
				slog.String("request_id", requestID),
				slog.String("channel", channel.Name()),
				slog.Int("consecutive_failures", health.consecutiveFailures))
			RecordCircuitBreakerOpen(channel.Name())
		}
	} else {
		health.consecutiveFailures = 0
	}
	health.mu.Unlock()

	if err != nil {
		RecordFailure(channel.Name(), duration)
		slog.Warn("Channel alert failed",
			slog.String("request_id", requestID),
			slog.String("channel", channel.Name()),
			slog.String("item_id", item.ID),
			slog.Duration("send_duration", duration),
			slog.Any("error", err))
		return
	}

	RecordSuccess(channel.Name(), duration)
	slog.Info("Channel alert sent successfully",
		slog.String("request_id", requestID),
		slog.String("channel", channel.Name()),
		slog.String("item_id", item.ID),
		slog.Duration("send_duration", duration))
}

func (s *service) healthFor(channelName string) *channelHealth {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return s.channelHealth[channelName]
}

func (s *service) GetChannelHealth() []ChannelHealthStatus {
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()

	statuses := make([]ChannelHealthStatus, 0, len(s.channels))
	for _, ch := range s.channels {
		health := s.channelHealth[ch.Name()]

		health.mu.Lock()
		var disabledUntil *time.Time
		open := false
		if time.Now().Before(health.disabledUntil) {
			open = true
			disabledUntil = &health.disabledUntil
		}
		health.mu.Unlock()

		statuses = append(statuses, ChannelHealthStatus{
			Name:               ch.Name(),
			Enabled:            ch.IsEnabled(),
			CircuitBreakerOpen: open,
			DisabledUntil:      disabledUntil,
		})
	}
	return statuses
}

func (s *service) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down alert service")
	s.shutdownCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Alert service shutdown complete")
		return nil
	case <-ctx.Done():
		slog.Warn("Alert service shutdown timeout")
		return ctx.Err()
	}
}
