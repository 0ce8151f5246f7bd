package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshfin/financeiro-api/internal/config"
	"github.com/meshfin/financeiro-api/internal/domain"
	"github.com/meshfin/financeiro-api/internal/handler"
	"github.com/meshfin/financeiro-api/internal/infra/cache"
	"github.com/meshfin/financeiro-api/internal/infra/client"
	"github.com/meshfin/financeiro-api/internal/infra/observability"
	"github.com/meshfin/financeiro-api/internal/infra/resilience"
	"github.com/meshfin/financeiro-api/internal/infra/sqlstore"
	"github.com/meshfin/financeiro-api/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const tokenPurgeInterval = 10 * time.Minute

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Inicia a API HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "porta HTTP (sobrescreve PORT)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("database_dsn", cfg.DatabaseDSN),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("provider_call_timeout", cfg.ProviderCallTimeout),
		zap.Int("fetch_attempts", cfg.FetchAttempts),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrent_aggregations", cfg.MaxConcurrentAggregations),
		zap.Duration("token_cache_ttl", cfg.TokenCacheTTL),
		zap.Duration("access_token_ttl", cfg.AccessTokenTTL),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "financeiro-api")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Storage ---
	store, err := sqlstore.Open(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// --- Cache ---
	tokenCache := cache.New[*domain.User](cfg.TokenCacheTTL)
	defer tokenCache.Close()

	// --- Resilience ---
	retry := resilience.Config{
		MaxAttempts:    cfg.FetchAttempts,
		InitialBackoff: cfg.InitialBackoff,
		OnRetry: func(attempt int, lastErr error) {
			logger.Warn("retrying provider call", zap.Int("attempt", attempt), zap.Error(lastErr))
		},
	}
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrentAggregations)

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	opts := client.Options{CallTimeout: cfg.ProviderCallTimeout, Metrics: metrics}
	zoop := client.NewZoopClient(httpClient, cfg.ZoopAPIURL, cfg.ZoopPageSize, resilience.NewBreakers("zoop"), retry, opts)
	use := client.NewUseClient(httpClient, cfg.UseAPIURL, resilience.NewBreakers("use"), retry, opts)

	// --- Services ---
	authSvc := service.NewAuthService(store, store, store, tokenCache, metrics, cfg.JWTSecret, cfg.AccessTokenTTL, logger)
	svcs := handler.Services{
		Reconciliation: service.NewReconciliationService(zoop, use, store, store,
			service.NewTerminalResolver(zoop, logger), bulkhead, metrics, logger),
		Establishments: service.NewEstablishmentService(store, logger),
		Terminals:      service.NewTerminalService(store, store, zoop, logger),
		Users:          service.NewUserService(store, store, logger),
		Auth:           authSvc,
		DB:             store,
	}

	go purgeTokens(ctx, authSvc, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler.NewRouter(svcs, metrics, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * cfg.HTTPTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// --- Graceful shutdown ---
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func purgeTokens(ctx context.Context, auth *service.AuthService, logger *zap.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("token purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired tokens purged", zap.Int64("count", n))
			}
		}
	}
}
