package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	printapp "github.com/cravings/printagent/internal/application/printing"
	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/infrastructure/config"
	"github.com/cravings/printagent/internal/infrastructure/delivery"
	"github.com/cravings/printagent/internal/infrastructure/logger"
	"github.com/cravings/printagent/internal/infrastructure/metrics"
	"github.com/cravings/printagent/internal/infrastructure/persistence"
	"github.com/cravings/printagent/internal/infrastructure/sandbox"
	"github.com/cravings/printagent/internal/infrastructure/settings"
	"github.com/cravings/printagent/internal/infrastructure/statusrelay"
	"github.com/cravings/printagent/internal/infrastructure/telemetry"
	"github.com/cravings/printagent/internal/interfaces/http/handler"
	"github.com/cravings/printagent/internal/interfaces/http/middleware"
	"github.com/cravings/printagent/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting print agent",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("strategy", cfg.Print.Strategy),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Strategy:          cfg.Print.Strategy,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	printMetrics := metrics.Default()

	errorLog, err := logger.NewErrorLog(logger.ErrorLogPath(cfg.Print.ErrorLog, cfg.Print.DataDir))
	if err != nil {
		log.Fatal("Failed to open error log", zap.Error(err))
	}
	defer func() {
		_ = errorLog.Close()
	}()

	// Print settings
	store := settings.NewStore(cfg.Print.DataDir, settings.WithStoreLogger(log))
	store.Load()
	if cfg.Print.WatchSettings {
		go func() {
			if err := store.Watch(ctx); err != nil {
				log.Warn("Settings watcher stopped", zap.Error(err))
			}
		}()
	}

	// Rendering sandboxes
	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.ReadyMode = sandbox.ReadyMode(cfg.Sandbox.ReadyMode)
	sandboxCfg.Selector = cfg.Sandbox.Selector
	sandboxCfg.ChromePath = cfg.Sandbox.ChromePath
	sandboxCfg.RemoteURL = cfg.Sandbox.RemoteURL
	sandboxCfg.Headless = cfg.Sandbox.Headless
	sandboxCfg.NoSandbox = cfg.Sandbox.NoSandbox
	sandboxCfg.NavigationTimeout = cfg.Sandbox.NavigationTimeout
	manager, err := sandbox.NewManager(sandboxCfg, log)
	if err != nil {
		log.Fatal("Failed to start sandbox manager", zap.Error(err))
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error("Error closing sandbox manager", zap.Error(err))
		}
	}()

	// Delivery
	artifacts, err := delivery.NewArtifactStore(cfg.Print.ArtifactDir, log)
	if err != nil {
		log.Fatal("Failed to create artifact store", zap.Error(err))
	}
	artifacts.OnCleanup(printMetrics.ArtifactsRemoved)
	go artifacts.RunCleanup(ctx, cfg.Print.CleanupInterval, cfg.Print.ArtifactRetention)

	spooler := delivery.NewSpooler(delivery.SpoolerConfig{
		Command:     cfg.Native.SpoolCommand,
		ListCommand: cfg.Native.ListCommand,
		Timeout:     cfg.Native.Timeout,
		Logger:      log,
	})
	strategy := printing.Strategy(cfg.Print.Strategy)
	deliverer, err := delivery.New(strategy, delivery.Deps{
		Artifacts: artifacts,
		Bridge: delivery.NewBridge(delivery.BridgeConfig{
			Binary:  cfg.Bridge.Binary,
			Timeout: cfg.Bridge.Timeout,
			Logger:  log,
		}),
		Spooler:  spooler,
		Selector: cfg.Sandbox.Selector,
		Logger:   log,
	})
	if err != nil {
		log.Fatal("Failed to create deliverer", zap.Error(err))
	}

	// Job history
	var (
		db      *persistence.Database
		history printing.HistoryRepository
	)
	if cfg.History.Enabled {
		tracing := telemetry.DefaultDBTracingConfig()
		tracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
		db, err = persistence.NewDatabase(persistence.DatabaseConfig{
			DSN:      cfg.History.DSN,
			LogLevel: cfg.History.LogLevel,
			Tracing:  tracing,
		}, log)
		if err != nil {
			log.Fatal("Failed to open history database", zap.Error(err))
		}
		repo := persistence.NewGormHistoryRepository(db.DB)
		history = repo
		go pruneHistory(ctx, repo, cfg.History.Retention, log)
		log.Info("Job history enabled", zap.String("dsn", cfg.History.DSN))
	}

	// Status fan-out, optionally mirrored to peers through Redis
	bus := printapp.NewStatusBus(cfg.HTTP.SSEMaxClients, log)
	var relay *statusrelay.Relay
	if cfg.Redis.Enabled {
		relay, err = statusrelay.New(ctx, statusrelay.Config{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, statusrelay.WithLogger(log))
		if err != nil {
			log.Warn("Status relay unavailable, continuing without it", zap.Error(err))
		} else {
			bus.SetRelay(relay)
			go func() {
				if err := relay.Subscribe(ctx, bus.Receive); err != nil {
					log.Error("Status relay subscription failed", zap.Error(err))
				}
			}()
		}
	}

	// Orchestrator and service
	orchestrator, err := printapp.NewOrchestrator(printapp.Config{
		Strategy:        strategy,
		Timeout:         cfg.Print.Timeout,
		CleanupDelay:    cfg.Print.CleanupDelay,
		NotifyOnTimeout: cfg.Print.NotifyOnTimeout,
		WidthHint:       cfg.Sandbox.WidthHint,
	}, printapp.Deps{
		Opener:    printapp.ManagerOpener{Manager: manager},
		Deliverer: deliverer,
		Settings:  store,
		Status:    bus,
		ErrorLog:  errorLog,
		History:   history,
		Metrics:   printMetrics,
		Logger:    log,
	})
	if err != nil {
		log.Fatal("Failed to create print orchestrator", zap.Error(err))
	}
	var printers printapp.PrinterLister
	if strategy == printing.StrategyNative {
		printers = spooler
	}
	service := printapp.NewPrintService(orchestrator, store, history, printers, bus, printMetrics, log)

	// HTTP
	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	tracingCfg.Enabled = tracer.IsEnabled()
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	const streamPath = "/api/v1/print/status/stream"
	engine := router.NewEngine(router.EngineConfig{
		Production:     cfg.App.Env == "production",
		TrustedProxies: cfg.HTTP.TrustedProxies,
		CORS:           corsCfg,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		Tracing:        tracingCfg,
		Registerer:     prometheus.DefaultRegisterer,
		QuietPaths:     []string{"/health", "/metrics", streamPath},
	}, log)

	var navMiddleware []gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitBurst)
		go limiter.Run(ctx)
		navMiddleware = append(navMiddleware, middleware.RateLimit(limiter))
		log.Info("Navigation rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow))
	}

	printHandler := handler.NewPrintHandler(service)
	streamHandler := handler.NewStatusStreamHandler(bus,
		handler.WithStreamLogger(log),
		handler.WithStreamHeartbeat(cfg.HTTP.SSEHeartbeat))
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, cfg.Print.Strategy)
	if db != nil {
		systemHandler.AddCheck("database", func(context.Context) error { return db.Ping() })
	}
	if relay != nil {
		systemHandler.AddCheck("redis", relay.Ping)
	}

	streamRoutes := router.NewDomainGroup("status-stream", "/print/status")
	streamRoutes.GET("/stream", streamHandler.Stream)
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)

	router.NewRouter(engine).
		Register(printHandler.Routes(navMiddleware...)...).
		Register(streamRoutes, systemRoutes).
		Setup()

	engine.GET("/health", systemHandler.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// No write timeout: status streams stay open.
	srv := &http.Server{
		Addr:        net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:     engine,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	streamHandler.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Error("Print orchestrator did not drain", zap.Error(err))
	}
	bus.Wait()
	stop()

	if relay != nil {
		if err := relay.Close(); err != nil {
			log.Error("Error closing status relay", zap.Error(err))
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// pruneHistory deletes history older than retention once at startup and
// then daily until ctx is done.
func pruneHistory(ctx context.Context, repo printing.HistoryRepository, retention time.Duration, log *zap.Logger) {
	if retention <= 0 {
		return
	}
	prune := func() {
		deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
		if err != nil {
			log.Warn("History pruning failed", zap.Error(err))
			return
		}
		if deleted > 0 {
			log.Info("History pruned", zap.Int64("deleted", deleted))
		}
	}

	prune()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
