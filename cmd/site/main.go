package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/beautylab-site/cmd/mainconfig"
	"github.com/wolfman30/beautylab-site/internal/api/router"
	"github.com/wolfman30/beautylab-site/internal/app/bootstrap"
	appconfig "github.com/wolfman30/beautylab-site/internal/config"
	"github.com/wolfman30/beautylab-site/internal/content"
	"github.com/wolfman30/beautylab-site/internal/formstate"
	httpmiddleware "github.com/wolfman30/beautylab-site/internal/http/middleware"
	"github.com/wolfman30/beautylab-site/internal/leads"
	"github.com/wolfman30/beautylab-site/internal/observability/metrics"
	"github.com/wolfman30/beautylab-site/internal/theme"
	"github.com/wolfman30/beautylab-site/internal/web"
	"github.com/wolfman30/beautylab-site/pkg/logging"
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting beautylab site",
		"env", cfg.Env,
		"port", cfg.Port,
		"relay", bootstrap.ProviderName(cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := content.Load(cfg.ContentFile)
	if err != nil {
		logger.Error("failed to load content catalog", "error", err)
		os.Exit(1)
	}
	if missing := catalog.MissingChoices(leads.ServiceCodeStrings()); len(missing) > 0 {
		logger.Warn("catalog has no label for some service codes", "codes", missing)
	}

	metricsHandler, leadMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}

	leadRelay, err := bootstrap.BuildRelay(ctx, cfg, logger, mainconfig.SESClient(cfg))
	if err != nil {
		logger.Error("failed to configure form relay", "error", err)
		os.Exit(1)
	}

	formStore := bootstrap.BuildFormStore(redisClient, cfg)
	if memStore, ok := formStore.(*formstate.MemoryStore); ok {
		go memStore.Run(ctx, 5*time.Minute)
	}

	leadService, err := leads.NewService(leads.ServiceConfig{
		Relay:    leadRelay,
		Provider: bootstrap.ProviderName(cfg),
		Store:    formStore,
		Journal:  bootstrap.BuildJournal(pool),
		Metrics:  leadMetrics,
		Labels:   catalog.ChoiceLabel,
		LockTTL:  cfg.FormLockTTL,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to build lead service", "error", err)
		os.Exit(1)
	}

	page, err := web.NewPage(web.Config{
		Catalog:      catalog,
		Themes:       theme.NewRegistry(cfg.DefaultTheme),
		Forms:        leadService,
		Metrics:      leadMetrics,
		SecureCookie: cfg.CookieSecure,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to build page", "error", err)
		os.Exit(1)
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx, 5*time.Minute)

	r := router.New(&router.Config{
		Logger:             logger,
		Page:               page,
		LeadsHandler:       leads.NewHandler(leadService, page, cfg.CookieSecure, logger),
		MetricsHandler:     metricsHandler,
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		HSTS:               cfg.IsProduction(),
		HealthChecks:       healthChecks(redisClient, pool),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second + cfg.RelayTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	return promhttp.Handler(), metrics.NewLeadMetrics(prometheus.DefaultRegisterer)
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	pool := bootstrap.BuildPostgresPool(ctx, databaseURL, logger)
	if pool != nil {
		logger.Info("outcome journal enabled")
	}
	return pool
}

func healthChecks(redisClient *redis.Client, pool *pgxpool.Pool) map[string]router.HealthCheck {
	checks := make(map[string]router.HealthCheck)
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	return checks
}
