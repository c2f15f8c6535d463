package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"svgcache-api/internal/config"
	"svgcache-api/internal/debug"
	"svgcache-api/internal/gateway"
	"svgcache-api/internal/generator"
	"svgcache-api/internal/handler"
	"svgcache-api/internal/imagecache"
	"svgcache-api/internal/middleware"
	"svgcache-api/internal/template"
	"svgcache-api/internal/tracing"
	"svgcache-api/internal/upstream"
)

const (
	shutdownTimeout     = 30 * time.Second
	statsReportInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.DebugEnabled {
		debug.CleanupAllLogs(cfg.DebugLogDir)
		slog.Info("Debug dumps enabled", "dir", cfg.DebugLogDir)
	}

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.TraceExporter, "svgcache-api", cfg.TraceSampleRatio)
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("Tracing shutdown error", "error", err)
		}
	}()

	stats := imagecache.NewStats()
	store, closeStore, err := imagecache.Open(imagecache.Options{
		Mode:            cfg.StoreMode,
		Dir:             cfg.StaticPath,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		RedisDB:         cfg.RedisDB,
		RedisPrefix:     cfg.RedisPrefix,
		MemoryCacheSize: cfg.MemoryCacheSize,
	}, stats)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	switch cfg.StoreMode {
	case "redis":
		slog.Info("Store initialized", "mode", cfg.StoreMode, "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix, "memory_cache", cfg.MemoryCacheSize)
	default:
		slog.Info("Store initialized", "mode", cfg.StoreMode, "path", cfg.StaticPath, "memory_cache", cfg.MemoryCacheSize)
	}

	var breaker *upstream.CircuitBreaker
	if cfg.BreakerEnabled {
		breaker = upstream.GetBreaker("openai", generator.IsSuccessful)
	}
	gen := generator.New(cfg, breaker)
	slog.Info("Generator initialized",
		"model", cfg.OpenAIModel,
		"base_url", cfg.OpenAIBaseURL,
		"api_key", config.MaskSensitive(cfg.OpenAIAPIKey),
		"breaker", cfg.BreakerEnabled,
	)

	gw := gateway.New(store, gen, cfg.SecretKey)
	if cfg.GenerationRequiresKey() {
		slog.Info("Generation requires SECRET_KEY")
	} else {
		slog.Warn("SECRET_KEY is not set, generation is open to everyone")
	}

	tmplRenderer, err := template.NewRenderer()
	if err != nil {
		slog.Error("Failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	h := handler.New(gw, tmplRenderer)
	h.SetHealthSources(cfg.StoreMode, stats, breaker)

	mux := http.NewServeMux()
	limiter := middleware.NewConcurrencyLimiter(cfg.GenerateConcurrencyLimit, cfg.GenerateTimeout())
	h.Register(mux, limiter)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.Chain(middleware.TraceMiddleware, middleware.LoggingMiddleware)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()
	go startStatsReporter(ctx, stats, limiter, statsReportInterval)

	idleConnsClosed := make(chan struct{})
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		slog.Info("Received signal, starting graceful shutdown", "signal", sig)

		cancelBackground()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		close(idleConnsClosed)
	}()

	slog.Info("Server running", "port", cfg.Port, "url", fmt.Sprintf("http://localhost:%d/", cfg.Port))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("Server start failed", "error", err)
		os.Exit(1)
	}

	<-idleConnsClosed
	slog.Info("Server shutdown gracefully")
}
