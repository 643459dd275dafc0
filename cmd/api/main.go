package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"infinite-feed/internal/common/pagination"
	appconfig "infinite-feed/internal/config"
	pgRepo "infinite-feed/internal/infra/adapter/persistence/postgres"
	"infinite-feed/internal/infra/db"
	"infinite-feed/internal/infra/promptgen"
	workerPkg "infinite-feed/internal/infra/worker"
	"infinite-feed/internal/observability/slo"
	"infinite-feed/internal/observability/tracing"
	"infinite-feed/internal/repository"
	"infinite-feed/pkg/config"
	"infinite-feed/pkg/ratelimit"
	"infinite-feed/pkg/security/csp"

	decisionUC "infinite-feed/internal/usecase/decision"
	feedUC "infinite-feed/internal/usecase/feed"

	hhttp "infinite-feed/internal/handler/http"
	hfeed "infinite-feed/internal/handler/http/feed"
	"infinite-feed/internal/handler/http/middleware"
	hpreference "infinite-feed/internal/handler/http/preference"
	hqueue "infinite-feed/internal/handler/http/queue"
	"infinite-feed/internal/handler/http/requestid"

	_ "infinite-feed/docs" // swagger docs
)

// @title           Infinite Feed API
// @version         1.0
// @description     嗜好駆動の動画生成キューとパーソナライズドフィードの REST API
// @description     嗜好ベクトルの受付、フィード配信、生成キューの管理機能を提供します。

// @contact.name   API Support
// @contact.url    https://github.com/yujitsuchiya/infinite-feed
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	version := getVersion()
	serverCfg := loadServerConfig(logger)

	tracingEnabled, _ := strconv.ParseBool(os.Getenv("TRACING_ENABLED"))
	if tracingEnabled {
		shutdownTracing, err := tracing.InitProvider("infinite-feed-api", version)
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
		logger.Info("tracing enabled")
	}

	serverComponents := setupServer(logger, database, serverCfg, tracingEnabled, version)

	runServer(logger, serverComponents, serverCfg, version)
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

// initDatabase opens the database connection and runs migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// loadServerConfig loads the server YAML configuration when SERVER_CONFIG_PATH
// is set and falls back to production defaults otherwise.
func loadServerConfig(logger *slog.Logger) *appconfig.ServerConfig {
	path := os.Getenv("SERVER_CONFIG_PATH")
	if path == "" {
		return appconfig.DefaultServerConfig()
	}

	cfg, err := appconfig.LoadServerConfig(path)
	if err != nil {
		logger.Error("failed to load server configuration", slog.String("path", path), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server configuration loaded", slog.String("path", path))
	return cfg
}

// newPromptGenerator selects the prompt generation backend. With an
// Anthropic API key configured the Claude client is used; otherwise prompt
// generation falls back to the template backend.
func newPromptGenerator(logger *slog.Logger) (promptgen.Generator, []hhttp.UpstreamBreaker) {
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		claude := promptgen.NewClaude(apiKey)
		logger.Info("prompt generation: Claude backend enabled")
		return claude, []hhttp.UpstreamBreaker{claude.Breaker()}
	}
	logger.Info("prompt generation: template backend (ANTHROPIC_API_KEY not set)")
	return promptgen.NewTemplate(), nil
}

// corsConfigSource resolves CORS origins from the server YAML configuration
// when present, delegating everything else to environment variables.
type corsConfigSource struct {
	env       middleware.EnvConfigSource
	serverCfg *appconfig.ServerConfig
}

func (s *corsConfigSource) LoadOrigins() ([]string, error) {
	if origins := s.serverCfg.AllowedOrigins(); len(origins) > 0 {
		return origins, nil
	}
	return s.env.LoadOrigins()
}

func (s *corsConfigSource) LoadMethods() ([]string, error) { return s.env.LoadMethods() }
func (s *corsConfigSource) LoadHeaders() ([]string, error) { return s.env.LoadHeaders() }
func (s *corsConfigSource) LoadMaxAge() (int, error)       { return s.env.LoadMaxAge() }

// rateLimiting bundles the per-IP and per-user limiter stacks. All fields
// are nil when rate limiting is disabled.
type rateLimiting struct {
	ip   *middleware.IPRateLimiter
	user *middleware.UserRateLimiter

	ipStore   *ratelimit.InMemoryRateLimitStore
	userStore *ratelimit.InMemoryRateLimitStore

	ipBreaker   *ratelimit.CircuitBreaker
	userBreaker *ratelimit.CircuitBreaker

	ipDegradation   *middleware.DegradationManager
	userDegradation *middleware.DegradationManager
}

// newRateLimiting builds both limiter stacks: separate stores so IP and
// user keys age out independently, one sliding window algorithm, a breaker
// per limiter, and degradation managers that relax the limits when the
// breaker opens or a store runs hot.
func newRateLimiting(logger *slog.Logger, cfg *ratelimit.RateLimitConfig, serverCfg *appconfig.ServerConfig) *rateLimiting {
	if !cfg.Enabled {
		logger.Warn("rate limiting is DISABLED - not recommended for production")
		return &rateLimiting{}
	}

	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var ipExtractor middleware.IPExtractor
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyConfig)
		logger.Info("rate limiting: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	} else {
		ipExtractor = &middleware.RemoteAddrExtractor{}
		logger.Info("rate limiting: using RemoteAddr (secure mode, proxy headers ignored)")
	}

	rl := &rateLimiting{
		ipStore:   ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{MaxKeys: cfg.MaxActiveKeys}),
		userStore: ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{MaxKeys: cfg.MaxActiveKeys}),
	}

	algorithm := ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{})
	metrics := ratelimit.NewPrometheusMetrics()

	breakerCfg := ratelimit.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		RecoveryTimeout:  cfg.CircuitBreakerResetTimeout,
	}
	rl.ipBreaker = ratelimit.NewCircuitBreaker(breakerCfg)
	rl.userBreaker = ratelimit.NewCircuitBreaker(breakerCfg)

	rl.ipDegradation = middleware.NewDegradationManager(middleware.DegradationConfig{
		AutoAdjust:  true,
		Clock:       &ratelimit.SystemClock{},
		Metrics:     metrics,
		LimiterType: "ip",
	})
	rl.userDegradation = middleware.NewDegradationManager(middleware.DegradationConfig{
		AutoAdjust:  true,
		Clock:       &ratelimit.SystemClock{},
		Metrics:     metrics,
		LimiterType: "user",
	})

	rl.ip = middleware.NewIPRateLimiter(
		middleware.IPRateLimiterConfig{
			Limit:       cfg.DefaultIPLimit,
			Window:      cfg.DefaultIPWindow,
			Enabled:     true,
			ExemptPaths: serverCfg.RateLimitExemptPaths(),
			Degradation: rl.ipDegradation,
		},
		ipExtractor, rl.ipStore, algorithm, metrics, rl.ipBreaker,
	)

	tierLimits := make(map[ratelimit.UserTier]middleware.TierLimit)
	for _, tierCfg := range cfg.TierLimits {
		tierLimits[tierCfg.Tier] = middleware.TierLimit{Limit: tierCfg.Limit, Window: tierCfg.Window}
	}

	rl.user = middleware.NewUserRateLimiter(middleware.UserRateLimiterConfig{
		Store:          rl.userStore,
		Algorithm:      algorithm,
		Metrics:        metrics,
		CircuitBreaker: rl.userBreaker,
		// The user is resolved from the /users/{id} path segment
		UserExtractor:       middleware.NewContextUserExtractor(middleware.UserIDContextKey, nil),
		TierLimits:          tierLimits,
		DefaultLimit:        cfg.DefaultUserLimit,
		DefaultWindow:       cfg.DefaultUserWindow,
		SkipUnauthenticated: true,
		Clock:               &ratelimit.SystemClock{},
		Degradation:         rl.userDegradation,
	})

	logger.Info("rate limiting initialized",
		slog.Bool("enabled", true),
		slog.Int("ip_limit", cfg.DefaultIPLimit),
		slog.Duration("ip_window", cfg.DefaultIPWindow),
		slog.Int("user_limit", cfg.DefaultUserLimit),
		slog.Duration("user_window", cfg.DefaultUserWindow),
		slog.Int("max_keys", cfg.MaxActiveKeys),
	)
	return rl
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler         http.Handler
	IPStore         *ratelimit.InMemoryRateLimitStore
	UserStore       *ratelimit.InMemoryRateLimitStore
	IPWindow        time.Duration
	UserWindow      time.Duration
	IPDegradation   *middleware.DegradationManager
	UserDegradation *middleware.DegradationManager
}

// degradationLevelReporter adapts a degradation manager to the health
// handler's reporting interface.
type degradationLevelReporter struct {
	mgr *middleware.DegradationManager
}

func (d degradationLevelReporter) GetLevel() hhttp.DegradationLevel {
	return d.mgr.GetLevel()
}

// setupServer configures and returns the HTTP handler with all routes and middleware.
func setupServer(logger *slog.Logger, database *sql.DB, serverCfg *appconfig.ServerConfig, tracingEnabled bool, version string) *ServerComponents {
	queueRepo := pgRepo.NewQueueRepo(database)
	preferenceRepo := pgRepo.NewPreferenceRepo(database)
	embeddingRepo := pgRepo.NewPromptEmbeddingRepo(database)
	videoRepo := pgRepo.NewVideoRepo(database)
	feedRepo := pgRepo.NewFeedRepo(database)
	workerRepo := pgRepo.NewWorkerRepo(database)

	promptGen, upstreams := newPromptGenerator(logger)

	decisionSvc := decisionUC.NewService(queueRepo, preferenceRepo, embeddingRepo, videoRepo, promptGen, decisionUC.DefaultConfig())

	// フィードのページサイズは共通ページネーション設定に従う
	paginationCfg := pagination.LoadFromEnv()
	feedConfig := feedUC.DefaultConfig()
	feedConfig.DefaultPageSize = paginationCfg.DefaultLimit
	feedConfig.MaxPageSize = paginationCfg.MaxLimit
	feedSvc := feedUC.NewService(feedRepo, videoRepo, feedConfig)

	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		logger.Error("failed to load rate limit configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Server YAML rate limit settings override the environment defaults
	if serverCfg.Server.RateLimit.Enabled {
		rlCfg.Enabled = true
		rlCfg.DefaultIPLimit = serverCfg.Server.RateLimit.IPLimit
		rlCfg.DefaultIPWindow = serverCfg.RateLimitWindow()
	}

	limiters := newRateLimiting(logger, rlCfg, serverCfg)

	// Load CSP configuration (shared by the middleware chain and health report)
	cspConfig, err := config.LoadCSPConfig()
	if err != nil {
		logger.Error("failed to load CSP configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Health reports limiter stores, breaker states, and degradation levels
	healthHandler := &hhttp.HealthHandler{
		DB:            database,
		Version:       version,
		CSPEnabled:    cspConfig.Enabled,
		CSPReportOnly: cspConfig.ReportOnly,
	}
	if rlCfg.Enabled {
		healthHandler.RateLimiterEnabled = true
		healthHandler.IPRateLimiterStore = limiters.ipStore
		healthHandler.UserRateLimiterStore = limiters.userStore
		healthHandler.IPCircuitBreaker = limiters.ipBreaker
		healthHandler.UserCircuitBreaker = limiters.userBreaker
		healthHandler.IPDegradationManager = degradationLevelReporter{mgr: limiters.ipDegradation}
		healthHandler.UserDegradationManager = degradationLevelReporter{mgr: limiters.userDegradation}
	}

	// Setup routes with rate limiting middleware
	rootMux := setupRoutes(database, healthHandler, decisionSvc, feedSvc, queueRepo, workerRepo, upstreams, limiters.user, logger)
	handler := applyMiddleware(logger, rootMux, serverCfg, cspConfig, limiters.ip, tracingEnabled)

	// Return server components including stores for cleanup
	return &ServerComponents{
		Handler:         handler,
		IPStore:         limiters.ipStore,
		UserStore:       limiters.userStore,
		IPWindow:        rlCfg.DefaultIPWindow,
		UserWindow:      rlCfg.DefaultUserWindow,
		IPDegradation:   limiters.ipDegradation,
		UserDegradation: limiters.userDegradation,
	}
}

// setupRoutes registers all HTTP routes (public and API).
func setupRoutes(
	database *sql.DB,
	healthHandler *hhttp.HealthHandler,
	decisionSvc decisionUC.Service,
	feedSvc feedUC.Service,
	queueRepo repository.QueueRepository,
	workerRepo repository.WorkerRepository,
	upstreams []hhttp.UpstreamBreaker,
	userRateLimiter *middleware.UserRateLimiter,
	logger *slog.Logger,
) *http.ServeMux {
	// ヘルスチェックエンドポイント
	publicMux := http.NewServeMux()
	publicMux.Handle("/health", healthHandler)
	publicMux.Handle("/ready", &hhttp.ReadyHandler{DB: database})
	publicMux.Handle("/live", &hhttp.LiveHandler{})
	publicMux.Handle("/metrics", hhttp.MetricsHandler())

	// 生成パイプラインの外部依存の状態
	upstreamHealth := hhttp.NewUpstreamHealthHandler(upstreams...)
	publicMux.HandleFunc("/health/upstreams", upstreamHealth.Health)
	publicMux.HandleFunc("/ready/upstreams", upstreamHealth.Ready)

	// Swagger UI
	publicMux.Handle("/swagger/", httpSwagger.WrapHandler)

	apiMux := http.NewServeMux()
	hfeed.Register(apiMux, feedSvc, logger)
	hpreference.Register(apiMux, decisionSvc, logger)
	hqueue.Register(apiMux, queueRepo, workerRepo, workerPkg.DefaultConfig().StaleWorkerAfter, logger)

	// Resolve the user from the path, then apply the per-user rate limiter
	api := http.Handler(apiMux)
	if userRateLimiter != nil {
		api = userRateLimiter.Middleware()(api)
	}
	api = middleware.UserContext(api)

	rootMux := http.NewServeMux()
	rootMux.Handle("/health", publicMux)
	rootMux.Handle("/health/upstreams", publicMux)
	rootMux.Handle("/ready", publicMux)
	rootMux.Handle("/ready/upstreams", publicMux)
	rootMux.Handle("/live", publicMux)
	rootMux.Handle("/metrics", publicMux)
	rootMux.Handle("/swagger/", publicMux)
	rootMux.Handle("/", api)

	return rootMux
}

// applyMiddleware wraps the handler with middleware chain.
// Middleware order: CORS → Tracing → Request ID → IP Rate Limit → Recovery → Logging → Body Limit → Input Validation → CSP → Metrics
func applyMiddleware(logger *slog.Logger, handler http.Handler, serverCfg *appconfig.ServerConfig, cspConfig *config.CSPConfig, ipRateLimiter *middleware.IPRateLimiter, tracingEnabled bool) http.Handler {
	// Load CORS configuration (server YAML origins take precedence over env)
	corsSource := &corsConfigSource{serverCfg: serverCfg}
	corsConfig, err := middleware.LoadCORSConfigFromSource(corsSource, &middleware.SlogAdapter{Logger: logger})
	if err != nil {
		logger.Error("failed to load CORS configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Log CORS startup configuration
	logger.Info("CORS enabled",
		slog.Int("allowed_origins_count", len(corsConfig.Validator.GetAllowedOrigins())),
		slog.Any("allowed_origins", corsConfig.Validator.GetAllowedOrigins()),
		slog.Any("allowed_methods", corsConfig.AllowedMethods),
		slog.Any("allowed_headers", corsConfig.AllowedHeaders),
		slog.Int("max_age", corsConfig.MaxAge))

	// Create CSP middleware
	var cspMiddleware func(http.Handler) http.Handler
	if cspConfig.Enabled {
		cspMW := middleware.NewCSPMiddleware(middleware.CSPMiddlewareConfig{
			Enabled:       true,
			DefaultPolicy: csp.StrictPolicy(),
			PathPolicies: map[string]*csp.CSPBuilder{
				"/swagger/": csp.SwaggerUIPolicy(),
			},
			ReportOnly: cspConfig.ReportOnly,
		})
		cspMiddleware = cspMW.Middleware()
		logger.Info("CSP enabled",
			slog.Bool("report_only", cspConfig.ReportOnly))
	} else {
		// No-op middleware if CSP is disabled
		cspMiddleware = func(next http.Handler) http.Handler {
			return next
		}
		logger.Warn("CSP is disabled")
	}

	// Build middleware chain
	// Recommended order:
	// 1. CORS (handles preflight requests early)
	// 2. Tracing (span covers the full request, when enabled)
	// 3. Request ID (generates unique ID for request tracking)
	// 4. IP Rate Limiting (check rate limit before expensive operations)
	// 5. Recovery (catch panics)
	// 6. Logging (log all requests)
	// 7. Body Size Limit (prevent DoS)
	// 8. Input Validation (header and path limits)
	// 9. CSP (set security headers)
	// 10. Metrics (record request metrics)
	// 11. User Rate Limiting (in routes layer, after path user resolution)

	middlewareChain := handler

	// Apply in reverse order (innermost to outermost)
	middlewareChain = hhttp.MetricsMiddleware(middlewareChain)
	middlewareChain = cspMiddleware(middlewareChain)
	middlewareChain = hhttp.InputValidation()(middlewareChain)
	middlewareChain = hhttp.LimitRequestBody(1 << 20)(middlewareChain) // 1MB limit
	middlewareChain = hhttp.Logging(logger)(middlewareChain)
	middlewareChain = hhttp.Recover(logger)(middlewareChain)

	// Apply IP rate limiting if enabled
	if ipRateLimiter != nil {
		middlewareChain = ipRateLimiter.Middleware()(middlewareChain)
	}

	middlewareChain = requestid.Middleware(middlewareChain)
	if tracingEnabled {
		middlewareChain = tracing.Middleware(middlewareChain)
	}
	middlewareChain = middleware.CORS(*corsConfig)(middlewareChain)

	return middlewareChain
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, components *ServerComponents, serverCfg *appconfig.ServerConfig, version string) {
	// Create a context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load cleanup configuration
	cleanupCfg := hhttp.LoadCleanupConfigFromEnv()

	// Start background cleanup goroutines for rate limit stores. The
	// degradation manager hears about store memory pressure from here.
	if components.IPStore != nil {
		var pressure hhttp.MemoryPressureReporter
		if components.IPDegradation != nil {
			pressure = components.IPDegradation
		}
		go hhttp.StartRateLimitCleanup(ctx, components.IPStore, cleanupCfg.Interval, components.IPWindow, "ip", pressure)
		logger.Info("IP rate limit cleanup started",
			slog.Duration("interval", cleanupCfg.Interval),
			slog.Duration("window", components.IPWindow))
	}

	if components.UserStore != nil {
		var pressure hhttp.MemoryPressureReporter
		if components.UserDegradation != nil {
			pressure = components.UserDegradation
		}
		go hhttp.StartRateLimitCleanup(ctx, components.UserStore, cleanupCfg.Interval, components.UserWindow, "user", pressure)
		logger.Info("user rate limit cleanup started",
			slog.Duration("interval", cleanupCfg.Interval),
			slog.Duration("window", components.UserWindow))
	}

	// Recompute the SLO gauges once a minute from the collected window
	go slo.Run(ctx, 1*time.Minute)

	srv := &http.Server{
		Addr:              serverCfg.ListenAddr(),
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       serverCfg.ReadTimeout(),
		WriteTimeout:      serverCfg.WriteTimeout(),
		IdleTimeout:       serverCfg.IdleTimeout(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", serverCfg.ListenAddr()),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Cancel background goroutines (rate limit cleanup, SLO flush loop)
	cancel()
	logger.Debug("background goroutines cancelled")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
