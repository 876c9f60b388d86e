// Command gastos-worker consumes queued entry lines and mirrors stored
// expenses to the configured spreadsheet.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gastos/internal/amqp"
	"gastos/internal/config"
	applog "gastos/internal/log"
	"gastos/internal/sheets"
	"gastos/internal/sheets/google"
	"gastos/internal/sheets/memory"
	"gastos/internal/storage"
	"gastos/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open database", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	queue, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPEntryQueue, cfg.AMQPSyncQueue)
	if err != nil {
		logger.Error("failed to connect to message broker", applog.FieldError, err)
		os.Exit(1)
	}
	defer queue.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mirror sheets.Mirror
	if cfg.MirrorEnabled() {
		mirror, err = google.New(ctx, google.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			logger.Error("failed to initialize sheets mirror", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("mirroring to spreadsheet", "sheet", cfg.GoogleSheetName)
	} else {
		mirror = memory.New()
		logger.Info("no spreadsheet configured, mirroring in memory only")
	}

	w := worker.New(repo, mirror, queue, cfg.SyncBatchSize, cfg.SyncInterval, cfg.Location())

	logger.Info("worker starting",
		"entry_queue", cfg.AMQPEntryQueue,
		"sync_queue", cfg.AMQPSyncQueue,
		"batch_size", cfg.SyncBatchSize)

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
