package main

import (
	"context"
	"errors"
	"os"
	"time"

	"patrimonio/internal/amqp"
	"patrimonio/internal/cli"
	"patrimonio/internal/log"
	"patrimonio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting patrimonio-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != "sqlite" {
		logger.Error("The snapshot worker needs the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	snapshots := worker.NewSnapshotWorker(repo, logger)

	// Catch up on imports whose message was lost while the worker was down.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := snapshots.ProcessPending(startupCtx); err != nil {
		logger.Error("Startup snapshot check failed", log.FieldError, err)
	}
	startupCancel()

	reconciler := worker.NewReconciler(snapshots, repo,
		worker.ReconcilerConfig{Interval: cfg.SnapshotInterval, KeepImports: cfg.KeepImports})

	consumeDone := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := reconciler.Stop(shutdownCtx); err != nil {
			logger.Warn("Reconciler stop error", log.FieldError, err)
		}
		select {
		case <-consumeDone:
		case <-shutdownCtx.Done():
		}
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("SQLite close error", log.FieldError, err)
		}
	})

	if err := reconciler.Start(ctx); err != nil {
		logger.Error("Failed to start reconciler", log.FieldError, err)
	}

	go func() {
		defer close(consumeDone)
		if err := amqpClient.ConsumeLedgerImported(ctx, snapshots.HandleLedgerImported); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
