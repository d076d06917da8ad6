package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"patrimonio/internal/backend"
	"patrimonio/internal/cache"
	"patrimonio/internal/cli"
	apphttp "patrimonio/internal/http"
	"patrimonio/internal/log"
	"patrimonio/internal/rates"
	"patrimonio/internal/services"
	"patrimonio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// Rate timeline: upstream client behind a TTL cache.
	provider := rates.NewCachedProvider(
		rates.NewBCBClient(cfg.RatesURL, cfg.RatesTimeout, logger),
		cfg.RatesCacheTTL, logger).WithFetchTimeout(cfg.RatesTimeout)
	caches := cache.NewManager()
	caches.Register(provider.Cache())
	caches.StartCleanup(10 * time.Minute)

	ledgerSvc := services.NewLedgerService(res.Store, res.Publisher, logger)
	analyticsSvc := services.NewAnalyticsService(res.Store, logger)
	goalSvc := services.NewGoalService(res.Store, provider, logger)

	deps := apphttp.Dependencies{
		Ledger:    ledgerSvc,
		Analytics: analyticsSvc,
		Goals:     goalSvc,
		Rates:     provider,
	}
	if res.Pinger != nil {
		deps.Ready = res.Pinger.Ping
	}
	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	// Snapshots are also produced here so a deployment without a broker or
	// without the worker still gets them.
	reconciler := worker.NewReconciler(
		worker.NewSnapshotWorker(res.Store, logger),
		res.Pruner,
		worker.ReconcilerConfig{Interval: cfg.SnapshotInterval, KeepImports: cfg.KeepImports})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := reconciler.Stop(shutdownCtx); err != nil {
			logger.Warn("Reconciler stop error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := reconciler.Start(ctx); err != nil {
		logger.Error("Failed to start reconciler", log.FieldError, err)
	}

	logger.Info("Starting patrimonio server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
