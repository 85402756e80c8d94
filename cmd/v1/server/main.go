package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/voxhall/voxhall/internal/v1/bus"
	"github.com/voxhall/voxhall/internal/v1/config"
	"github.com/voxhall/voxhall/internal/v1/health"
	"github.com/voxhall/voxhall/internal/v1/logging"
	"github.com/voxhall/voxhall/internal/v1/middleware"
	"github.com/voxhall/voxhall/internal/v1/pipeline"
	"github.com/voxhall/voxhall/internal/v1/recording"
	"github.com/voxhall/voxhall/internal/v1/room"
	"github.com/voxhall/voxhall/internal/v1/tracing"
	"github.com/voxhall/voxhall/internal/v1/transport"
)

func main() {
	// Load .env file for local development. Try multiple paths to handle
	// different ways of running the app.
	envPaths := []string{".env", "../../../.env", "../../.env"}
	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			envLoaded = true
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		// Startup errors (this one and the dependency setup below) are the
		// only ones that abort the process.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.IsDevelopment(), cfg.LogFile); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	ctx := context.Background()

	if !envLoaded {
		logging.Warn(ctx, "No .env file found, relying on environment variables")
	}
	logging.Info(ctx, "Starting up",
		zap.String("app", cfg.AppName),
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.Addr()),
		zap.String("default_agent", cfg.DefaultAgentProvider),
		zap.String("openai_api_key", config.RedactSecret(cfg.OpenAIAPIKey)),
		zap.String("gemini_api_key", config.RedactSecret(cfg.GeminiAPIKey)))

	// --- Dependencies ---
	recorder, err := recording.NewLogger(cfg.RecordingsDir)
	if err != nil {
		logging.Fatal(ctx, "Failed to create recorder", zap.Error(err))
	}

	var presence *bus.Service
	if cfg.RedisEnabled {
		presence, err = bus.NewService(cfg.RedisURL)
		if err != nil {
			logging.Fatal(ctx, "Failed to connect to Redis", zap.Error(err))
		}
	}

	var tracerProvider *sdktrace.TracerProvider
	if cfg.OTelCollectorAddr != "" {
		tracerProvider, err = tracing.InitTracer(ctx, cfg.AppName, cfg.OTelCollectorAddr)
		if err != nil {
			logging.Fatal(ctx, "Failed to initialize tracing", zap.Error(err))
		}
		logging.Info(ctx, "Tracing enabled", zap.String("collector", cfg.OTelCollectorAddr))
	}

	registry := pipeline.NewRegistry(cfg)
	manager := room.NewManager(registry, recorder, presence, room.Options{
		AgentQueueDepth:      cfg.AgentQueueDepth,
		PipelineStallTimeout: cfg.PipelineStallTimeout,
		MaxEnvelopeBytes:     cfg.MaxEnvelopeBytes,
		JitterBufferMs:       cfg.JitterBufferMs,
		FrameDurationMs:      cfg.FrameDurationMs,
	})

	wsHandler := transport.NewHandler(manager, cfg.MaxEnvelopeBytes)
	healthHandler := health.NewHandler(cfg.AppName, cfg.AppEnv, presence)

	// --- Set up Server ---
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(cors.Default())

	router.GET("/ws/:roomId/:username", wsHandler.ServeWs)

	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Static demo client, when present.
	router.Static("/static", "./static")
	router.GET("/", func(c *gin.Context) {
		c.File("./static/index.html")
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	// --- Graceful Shutdown ---
	go func() {
		logging.Info(ctx, "Server listening", zap.String("addr", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "Server forced to shutdown", zap.Error(err))
	}
	manager.Shutdown(shutdownCtx)
	if err := recorder.Close(); err != nil {
		logging.Error(ctx, "Recorder close failed", zap.Error(err))
	}
	if err := presence.Close(); err != nil {
		logging.Error(ctx, "Redis close failed", zap.Error(err))
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logging.Error(ctx, "Tracer shutdown failed", zap.Error(err))
		}
	}

	logging.Info(ctx, "Server exiting")
}
