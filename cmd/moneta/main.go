package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneta/internal/adapters"
	"moneta/internal/cli"
	apphttp "moneta/internal/http"
	applog "moneta/internal/log"
	"moneta/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	amqpClient, err := adapters.NewAMQPClient(cfg)
	if err != nil {
		// Events are optional; the app keeps working without the broker.
		logger.Warn("Failed to connect to AMQP, continuing without events", "error", err)
	} else if amqpClient == nil {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}
	publisher := adapters.Publisher(amqpClient)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ImportMaxBytes:     cfg.ImportMaxBytes,
		StatsCacheTTL:      cfg.StatsCacheTTL,
		Logger:             logger,
	}, apphttp.Services{
		Transactions: services.NewTransactionService(repo, publisher),
		Importer:     services.NewImportService(repo, publisher),
		Exporter:     services.NewExportService(repo),
		Health:       repo,
	})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Error("SQLite close error", "error", err)
		}
	})

	logger.Info("Starting moneta server",
		"port", cfg.Port,
		"db", cfg.SQLiteDBPath,
		"events", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
