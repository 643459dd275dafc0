package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/robfig/cron/v3"

	"infinite-feed/internal/config"
	pgRepo "infinite-feed/internal/infra/adapter/persistence/postgres"
	"infinite-feed/internal/infra/db"
	"infinite-feed/internal/infra/embedder"
	"infinite-feed/internal/infra/notifier"
	"infinite-feed/internal/infra/storage"
	"infinite-feed/internal/infra/synthesis"
	workerPkg "infinite-feed/internal/infra/worker"
	"infinite-feed/internal/observability/tracing"
	"infinite-feed/internal/resilience/circuitbreaker"
	feedUC "infinite-feed/internal/usecase/feed"
	genUC "infinite-feed/internal/usecase/generation"
	"infinite-feed/internal/usecase/notify"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM queue_items LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.Duration("poll_interval", workerConfig.PollInterval),
		slog.Int("max_concurrent", workerConfig.MaxConcurrent),
		slog.Duration("task_timeout", workerConfig.TaskTimeout),
		slog.String("maintenance_schedule", workerConfig.MaintenanceSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("health_port", workerConfig.HealthPort))

	// Load upstream service configuration
	upstreamConfig, err := config.LoadUpstreamConfig()
	if err != nil {
		logger.Error("failed to load upstream configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("observability configured",
		slog.String("log_level", upstreamConfig.Observability.LogLevel),
		slog.Bool("tracing", upstreamConfig.Observability.EnableTracing),
		slog.Bool("metrics", upstreamConfig.Observability.EnableMetrics))

	if upstreamConfig.Observability.EnableTracing {
		shutdownTracing, err := tracing.InitProvider("infinite-feed-worker", os.Getenv("VERSION"))
		if err != nil {
			logger.Error("failed to initialize tracing", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.Error("tracing shutdown failed", slog.Any("error", err))
			}
		}()
	}

	notifyService := setupAlerting(logger, upstreamConfig)

	// Start metrics HTTP server
	if upstreamConfig.Observability.EnableMetrics {
		startMetricsServer(ctx, logger, notifyService)
	}

	// Start health check server
	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	pool, manager := setupPipeline(logger, database, upstreamConfig, notifyService, workerMetrics, *workerConfig)

	startMaintenance(ctx, logger, manager, *workerConfig)

	healthServer.SetSummaryProvider(manager)
	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	// Run the pool until a termination signal arrives
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		cancel()
	}()

	if err := pool.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("worker pool failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Drain in-flight alerts before exit
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := notifyService.Shutdown(shutdownCtx); err != nil {
		logger.Error("alert service shutdown failed", slog.Any("error", err))
	}
	logger.Info("worker stopped")
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// setupPipeline wires the generation pipeline: repositories, upstream
// clients, the item processor, the polling pool, and the pool manager.
func setupPipeline(
	logger *slog.Logger,
	database *sql.DB,
	upstream *config.UpstreamConfig,
	notifyService notify.Service,
	workerMetrics *workerPkg.WorkerMetrics,
	workerConfig workerPkg.WorkerConfig,
) (*workerPkg.Pool, *workerPkg.Manager) {
	queueRepo := pgRepo.NewQueueRepo(database)
	workerRepo := pgRepo.NewWorkerRepo(database)
	videoRepo := pgRepo.NewVideoRepo(database)
	embeddingRepo := pgRepo.NewPromptEmbeddingRepo(database)
	feedRepo := pgRepo.NewFeedRepo(database)

	feedService := feedUC.NewService(feedRepo, videoRepo, feedUC.DefaultConfig())

	synthClient := synthesis.NewClient(synthesis.Config{
		BaseURL:           upstream.Synthesis.BaseURL,
		APIKey:            upstream.Synthesis.APIKey,
		PollInterval:      upstream.Synthesis.PollInterval,
		PollTimeout:       upstream.Synthesis.PollTimeout,
		RequestsPerSecond: upstream.Synthesis.RequestsPerSecond,
	})
	storeClient := storage.NewClient(storage.Config{
		BaseURL: upstream.Storage.BaseURL,
		APIKey:  upstream.Storage.APIKey,
		Timeout: upstream.Storage.Timeout,
	})
	embedClient := embedder.NewOpenAI(upstream.OpenAI.APIKey)

	processorConfig := genUC.DefaultConfig()
	processorConfig.MaxAttempts = workerConfig.MaxAttempts
	processor := genUC.NewProcessor(
		queueRepo, videoRepo, embeddingRepo, &feedService,
		synthClient, storeClient, embedClient,
		processorConfig,
	)
	processor.SetAlerter(notifyService)

	logger.Info("generation pipeline initialized",
		slog.String("synthesis_url", upstream.Synthesis.BaseURL),
		slog.String("storage_url", upstream.Storage.BaseURL),
		slog.Int("max_attempts", processorConfig.MaxAttempts))

	pool := workerPkg.NewPool(queueRepo, workerRepo, &processor, workerMetrics, workerConfig)
	manager := workerPkg.NewManager(queueRepo, workerRepo, circuitbreaker.NewDBCircuitBreaker(database), workerMetrics, workerConfig)

	return pool, manager
}

// setupAlerting builds the failure alert service from the configured
// webhook channels.
func setupAlerting(logger *slog.Logger, upstream *config.UpstreamConfig) notify.Service {
	var channels []notify.Channel

	discordConfig := loadDiscordConfig(logger, upstream)
	if discordConfig.Enabled {
		channels = append(channels, notify.NewDiscordChannel(discordConfig))
		logger.Info("Discord channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Discord channel disabled")
	}

	slackConfig := loadSlackConfig(logger, upstream)
	if slackConfig.Enabled {
		channels = append(channels, notify.NewSlackChannel(slackConfig))
		logger.Info("Slack channel initialized", slog.String("status", "enabled"))
	} else {
		logger.Info("Slack channel disabled")
	}

	notifyService := notify.NewService(channels, upstream.Alerts.MaxConcurrent)
	logger.Info("alert service initialized",
		slog.Int("channels", len(channels)),
		slog.Int("max_concurrent", upstream.Alerts.MaxConcurrent))

	return notifyService
}

// startMaintenance schedules the lease reclamation and stale-worker reaping
// jobs on the configured cron schedule.
func startMaintenance(ctx context.Context, logger *slog.Logger, manager *workerPkg.Manager, cfg workerPkg.WorkerConfig) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.MaintenanceSchedule, func() {
		jobCtx, cancel := context.WithTimeout(ctx, 1*time.Minute)
		defer cancel()
		manager.Reclaim(jobCtx)
		manager.Reap(jobCtx)
	})
	if err != nil {
		logger.Error("failed to add maintenance job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	go func() {
		<-ctx.Done()
		c.Stop()
	}()

	logger.Info("maintenance scheduled",
		slog.String("schedule", cfg.MaintenanceSchedule),
		slog.String("timezone", cfg.Timezone))
}

// loadDiscordConfig builds the Discord channel configuration. The channel
// is enabled when DISCORD_WEBHOOK_URL is set and passes validation.
func loadDiscordConfig(logger *slog.Logger, upstream *config.UpstreamConfig) notifier.DiscordConfig {
	webhookURL := upstream.Alerts.DiscordWebhookURL
	if webhookURL == "" {
		return notifier.DiscordConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Discord webhook URL format, disabling alerts", slog.Any("error", err))
		return notifier.DiscordConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Discord webhook URL must use HTTPS, disabling alerts")
		return notifier.DiscordConfig{Enabled: false}
	}

	if u.Host != "discord.com" {
		logger.Warn("Invalid Discord webhook host, disabling alerts", slog.String("host", u.Host))
		return notifier.DiscordConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/api/webhooks/") {
		logger.Warn("Invalid Discord webhook path, disabling alerts", slog.String("path", u.Path))
		return notifier.DiscordConfig{Enabled: false}
	}

	return notifier.DiscordConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    upstream.Alerts.Timeout,
	}
}

// loadSlackConfig builds the Slack channel configuration. The channel is
// enabled when SLACK_WEBHOOK_URL is set and passes validation.
func loadSlackConfig(logger *slog.Logger, upstream *config.UpstreamConfig) notifier.SlackConfig {
	webhookURL := upstream.Alerts.SlackWebhookURL
	if webhookURL == "" {
		return notifier.SlackConfig{Enabled: false}
	}

	u, err := url.Parse(webhookURL)
	if err != nil {
		logger.Warn("Invalid Slack webhook URL format, disabling alerts", slog.Any("error", err))
		return notifier.SlackConfig{Enabled: false}
	}

	if u.Scheme != "https" {
		logger.Warn("Slack webhook URL must use HTTPS, disabling alerts")
		return notifier.SlackConfig{Enabled: false}
	}

	if u.Host != "hooks.slack.com" {
		logger.Warn("Invalid Slack webhook host, disabling alerts", slog.String("host", u.Host))
		return notifier.SlackConfig{Enabled: false}
	}

	if !strings.HasPrefix(u.Path, "/services/") {
		logger.Warn("Invalid Slack webhook path, disabling alerts", slog.String("path", u.Path))
		return notifier.SlackConfig{Enabled: false}
	}

	return notifier.SlackConfig{
		Enabled:    true,
		WebhookURL: webhookURL,
		Timeout:    upstream.Alerts.Timeout,
	}
}
