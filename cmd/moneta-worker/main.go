package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneta/internal/adapters"
	"moneta/internal/cli"
	applog "moneta/internal/log"
	"moneta/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	logger.Info("Starting moneta-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	mirror, backend, err := adapters.NewMirror(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize backup mirror", "error", err)
		os.Exit(1)
	}
	logger.Info("Backup mirror initialized", "backend", backend, "spreadsheet_id", cfg.GoogleSpreadsheetID)
	if !adapters.DurableMirror(backend) {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set - backups are kept in worker memory only and lost on restart")
	}

	amqpClient, err := adapters.NewAMQPClient(cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	if amqpClient == nil {
		logger.Info("AMQP disabled - running periodic backups only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
	})

	syncWorker := worker.NewSyncWorker(repo, mirror)

	// Catch up on anything that changed while the worker was down.
	if n, err := syncWorker.FullBackup(ctx); err != nil {
		logger.Error("Startup backup failed", "error", err)
	} else {
		logger.Info("Startup backup done", "rows", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.ConsumeTransactionEvents(gctx, syncWorker.HandleEvent)
		})
	}
	g.Go(func() error {
		return syncWorker.RunPeriodicBackup(gctx, cfg.BackupInterval)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		repo.Close()
		os.Exit(1)
	}

	<-done
	repo.Close()
	logger.Info("Worker stopped gracefully")
}
