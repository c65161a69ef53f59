package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rajasatyajit/balanca-checkout/config"
	"github.com/rajasatyajit/balanca-checkout/internal/api"
	"github.com/rajasatyajit/balanca-checkout/internal/database"
	"github.com/rajasatyajit/balanca-checkout/internal/gateway"
	"github.com/rajasatyajit/balanca-checkout/internal/logger"
	"github.com/rajasatyajit/balanca-checkout/internal/metrics"
	middlewares "github.com/rajasatyajit/balanca-checkout/internal/middleware"
	"github.com/rajasatyajit/balanca-checkout/internal/payment"
	"github.com/rajasatyajit/balanca-checkout/internal/ratelimit"
	"github.com/rajasatyajit/balanca-checkout/internal/reconcile"
	"github.com/rajasatyajit/balanca-checkout/internal/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration; a missing gateway key stops us before listening
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting checkout proxy",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
		"gateway", cfg.Gateway.Provider,
	)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)

	intentStore := store.New(db)
	if pg, ok := intentStore.(*store.PostgresStore); ok {
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to prepare schema", "error", err)
		}
	}

	limiter := newLimiter(ctx, cfg.Redis)
	if c, ok := limiter.(interface{ Close() error }); ok {
		defer c.Close()
	}

	gw, err := gateway.New(cfg.Gateway)
	if err != nil {
		logger.Fatal("Failed to initialize gateway", "error", err)
	}
	payments := payment.NewService(gw, intentStore, cfg.Payment)

	// Settle intents whose buyers stopped polling
	if cfg.Reconcile.Enabled {
		reconciler := reconcile.New(intentStore, payments, cfg.Reconcile, cfg.Payment.ExpiresIn)
		go func() {
			if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Reconciler error", "error", err)
			}
		}()
	}

	r := newRouter(cfg, payments, intentStore, gw, limiter)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// newLimiter prefers Redis so limits hold across replicas and falls back
// to a per-process limiter
func newLimiter(ctx context.Context, cfg config.RedisConfig) ratelimit.Limiter {
	if cfg.URL == "" {
		return ratelimit.NewMemoryLimiter()
	}
	m, err := ratelimit.NewManager(cfg.URL)
	if err != nil {
		logger.Warn("Invalid REDIS_URL; using in-process rate limiting", "error", err)
		return ratelimit.NewMemoryLimiter()
	}
	if err := m.Ping(ctx); err != nil {
		logger.Warn("Redis unreachable; using in-process rate limiting", "error", err)
		m.Close()
		return ratelimit.NewMemoryLimiter()
	}
	logger.Info("Rate limiting backed by Redis")
	return m
}

func newRouter(cfg *config.Config, payments api.Payments, st store.Store, gw gateway.Gateway, limiter ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	r.Use(middlewares.Security)
	r.Use(middlewares.CORS(cfg.HTTP.AllowedOrigins))

	var webhooks gateway.WebhookParser
	if p, ok := gateway.AsWebhookParser(gw); ok {
		webhooks = p
	}

	api.NewHandler(payments, st, webhooks, Version, BuildTime, GitCommit).
		WithCreateLimit(middlewares.RateLimit(limiter, "create", cfg.HTTP.CreateRateLimitPerMinute)).
		RegisterRoutes(r)
	return r
}

func startMetricsServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", "address", addr, "path", path)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", "error", err)
	}
}
