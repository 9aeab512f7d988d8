package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lensly/catalog-service/config"
	"github.com/lensly/catalog-service/internal/adapters/sdk"
	_ "github.com/lensly/catalog-service/internal/adapters/vendoradapters"
	"github.com/lensly/catalog-service/internal/alerts"
	"github.com/lensly/catalog-service/internal/catalog"
	"github.com/lensly/catalog-service/internal/database"
	"github.com/lensly/catalog-service/internal/engine"
	"github.com/lensly/catalog-service/internal/fetcher"
	"github.com/lensly/catalog-service/internal/handlers"
	"github.com/lensly/catalog-service/internal/metrics"
	"github.com/lensly/catalog-service/internal/middleware"
	"github.com/lensly/catalog-service/internal/observability"
	"github.com/lensly/catalog-service/internal/runs"
	"github.com/lensly/catalog-service/internal/telemetry"
	"github.com/lensly/catalog-service/internal/vendors"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting catalog service")

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	ctx := context.Background()
	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure schema")
	}

	telCfg := telemetry.GetConfigFromEnv()
	if cfg.Telemetry.Enabled {
		telCfg.Enabled = true
	}
	if cfg.Telemetry.Endpoint != "" {
		telCfg.Endpoint = cfg.Telemetry.Endpoint
	}
	shutdownTelemetry, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	recorder := runs.NewRecorder(database.Pool(), *logger)
	if count, err := recorder.FailInterrupted(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to handle interrupted runs")
	} else if count > 0 {
		logger.Info().Int("count", count).Msg("Marked interrupted runs as failed")
	}

	vendorStore := vendors.NewStore(database.Pool())
	catalogStore := catalog.NewStore(database.Pool())
	ingress := alerts.NewIngress(database.Pool(), *logger)
	obs := observability.NewService(database.Pool())
	rec := metrics.NewRecorder()
	fetch := fetcher.New(fetcher.ExecInvoker{}, cfg.Sync.ScraperWorkDir, *logger)

	eng := engine.New(
		database.Pool(),
		vendorStore,
		fetch,
		sdk.Default,
		catalogStore,
		recorder,
		ingress,
		rec,
		cfg.Sync,
		*logger,
	)

	api := handlers.NewAPI(eng, vendorStore, recorder, obs, ingress, fetch, rec, *logger)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	// The unauthenticated surface gets a per-IP limiter; the internal
	// surface shares one service-wide limiter behind the API key.
	publicLimit := middleware.RateLimitMiddleware()
	router.GET("/health", publicLimit, handlers.HealthCheck)
	router.GET("/metrics", publicLimit, gin.WrapH(promhttp.Handler()))

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.Server.InternalAPIKey))
	internal.Use(middleware.ServiceRateLimitMiddleware(50, 100))
	{
		internal.GET("/health", handlers.HealthCheck)

		sync := internal.Group("/sync")
		{
			sync.POST("", api.TriggerSyncAll)
			sync.GET("/runs", api.ListRuns)
			sync.POST("/:vendor", api.TriggerSync)
		}

		vendorRoutes := internal.Group("/vendors")
		{
			vendorRoutes.GET("", api.ListVendors)
			vendorRoutes.POST("", api.CreateVendor)
			vendorRoutes.PUT("/:vendor/credentials", api.SaveCredentials)
			vendorRoutes.POST("/:vendor/test", api.TestVendor)
		}

		internal.GET("/observability", api.Observability)
		internal.POST("/alerts", api.IngestAlert)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down telemetry")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "catalog-service").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
