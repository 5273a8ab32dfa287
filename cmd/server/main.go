// Guard Labs - prompt-injection game server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/guard-labs/internal/api"
	"github.com/ashureev/guard-labs/internal/completion"
	"github.com/ashureev/guard-labs/internal/config"
	"github.com/ashureev/guard-labs/internal/counter"
	"github.com/ashureev/guard-labs/internal/guard"
	"github.com/ashureev/guard-labs/internal/identity"
	"github.com/ashureev/guard-labs/internal/level"
	"github.com/ashureev/guard-labs/internal/middleware"
	"github.com/ashureev/guard-labs/internal/observability"
	"github.com/ashureev/guard-labs/internal/session"
	"github.com/ashureev/guard-labs/internal/store"
	"github.com/ashureev/guard-labs/internal/summary"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// counterStore is a durable counter backend the health check can ping.
type counterStore interface {
	counter.Backend
	api.Pinger
	Close() error
}

type memoryStore struct {
	*counter.MemoryBackend
}

func (memoryStore) Close() error { return nil }

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "counter_backend", cfg.CounterBackend)

	backend, err := openCounterStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize counter backend", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			slog.Error("Failed to close counter backend", "error", closeErr)
		}
	}()

	if err := backend.Ping(context.Background()); err != nil {
		slog.Error("Counter backend health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Counter backend connected")

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	// Core components.
	counters := counter.NewRegistry(backend, counter.WithLogger(logger))
	sessions := session.NewStore(level.NewGenerator(nil))
	observability.RegisterSessionGauge(reg, sessions.Count)
	summaryCache := summary.New(counters, cfg.Summary.TTL, summary.WithRefreshHook(metrics.SummaryRefreshed))
	completer := completion.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)

	svcCfg := guard.DefaultConfig()
	svcCfg.Models = level.Models{Fast: cfg.OpenAI.ModelFast, Capable: cfg.OpenAI.ModelCapable}
	svcCfg.MaxTokens = cfg.Chat.MaxTokens
	svcCfg.ChatTimeout = cfg.Chat.Timeout
	svcCfg.MaxRetries = cfg.Chat.MaxRetries
	svcCfg.Mask = cfg.Chat.Mask
	svc := guard.NewService(sessions, counters, summaryCache, completer, svcCfg, metrics, logger)

	// Handlers.
	gameHandler := api.NewGameHandler(svc, cfg.DebugEndpoints, logger)
	healthHandler := api.NewHealthHandler(backend)
	wsHandler := api.NewChatSocketHandler(svc, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(identity.Middleware)

	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	gameHandler.RegisterRoutes(r)
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	if cfg.DebugEndpoints {
		slog.Warn("Debug endpoints enabled, GET /api/session discloses codes")
	}

	// WriteTimeout stays above the completion timeout so chat replies are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Chat.Timeout*time.Duration(cfg.Chat.MaxRetries+1) + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if err := counters.Drain(shutdownCtx); err != nil {
		slog.Warn("Pending counter increments not flushed", "error", err)
	}
	counters.Close()

	slog.Info("Server stopped successfully")
}

func openCounterStore(cfg *config.Config) (counterStore, error) {
	if cfg.CounterBackend == config.BackendMemory {
		return memoryStore{counter.NewMemoryBackend()}, nil
	}
	s, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return s, nil
}
