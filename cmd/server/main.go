// Package main is the entrypoint for the noisegate API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/noisegate/internal/api"
	"github.com/kiranshivaraju/noisegate/internal/api/handler"
	mw "github.com/kiranshivaraju/noisegate/internal/api/middleware"
	"github.com/kiranshivaraju/noisegate/internal/cache"
	"github.com/kiranshivaraju/noisegate/internal/config"
	"github.com/kiranshivaraju/noisegate/internal/engine"
	"github.com/kiranshivaraju/noisegate/internal/ingest"
	"github.com/kiranshivaraju/noisegate/internal/loki"
	"github.com/kiranshivaraju/noisegate/internal/store"
	"github.com/kiranshivaraju/noisegate/pkg/logql"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config; fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "loki_enabled", cfg.Loki.Enabled())

	engineCfg, err := cfg.Engine.Build(slog.Default())
	if err != nil {
		return fmt.Errorf("build engine config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and engines
	pgStore := store.NewPostgresStore(pool)
	registry := engine.NewRegistry(engineCfg)
	dispatcher := ingest.NewDispatcher(registry, pgStore, slog.Default())

	// 6. Start the Loki poller for the default tenant
	if cfg.Loki.Enabled() {
		poller, err := newLokiPoller(ctx, cfg.Loki, pgStore, redisCache, dispatcher)
		if err != nil {
			return fmt.Errorf("create loki poller: %w", err)
		}
		go poller.Run(ctx)
		slog.Info("loki poller started", "interval", cfg.Loki.PollInterval)
	}

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMinute),

		HealthHandler:       healthHandler(pgStore, redisCache, registry),
		IngestHandler:       handler.NewIngestHandler(dispatcher),
		AlertmanagerHandler: handler.NewAlertmanagerHandler(dispatcher),
		ListGroups:          handler.NewListGroupsHandler(registry),
		ActionableGroups:    handler.NewActionableHandler(registry),
		GetGroup:            handler.NewGetGroupHandler(registry),
		SummaryHandler:      handler.NewSummaryHandler(registry),
		ListNotifications:   handler.NewListNotificationsHandler(pgStore),
		CreateKeyHandler:    handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:     handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:    handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newLokiPoller feeds the configured Loki query into the default tenant's engine.
func newLokiPoller(ctx context.Context, cfg config.LokiConfig, s store.Store, cursors ingest.CursorStore, d *ingest.Dispatcher) (*ingest.Poller, error) {
	tenant, err := s.GetDefaultTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}

	client := loki.NewHTTPClient(cfg)
	if err := client.Ready(ctx); err != nil {
		// Not fatal: the poller retries on every tick.
		slog.Warn("loki not ready", "error", err)
	}

	query := logql.QueryBuilder{}.Resolve(cfg.Query, logql.StreamParams{
		Service:   cfg.Service,
		Namespace: cfg.Namespace,
		Levels:    cfg.Levels,
	})

	return ingest.NewPoller(ingest.PollerConfig{
		TenantID: tenant.ID,
		Query:    query,
		Interval: cfg.PollInterval,
		Lookback: cfg.Lookback,
		Limit:    cfg.Limit,
	}, client, cursors, d, slog.Default()), nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache, reg *engine.Registry) http.HandlerFunc {
	return handler.NewHealthHandler(map[string]handler.Pinger{
		"database": s,
		"cache":    c,
	}, reg)
}
