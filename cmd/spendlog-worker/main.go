package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"spendlog/internal/amqp"
	"spendlog/internal/config"
	"spendlog/internal/log"
	"spendlog/internal/sheets"
	gsheet "spendlog/internal/sheets/google"
	mem "spendlog/internal/sheets/memory"
	"spendlog/internal/storage"
	"spendlog/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	logger.Info("starting spendlog-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("failed to open expense store", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Export destination: Google Sheets when configured, otherwise an
	// in-memory sink so the worker still drains the pending queue locally.
	var writer sheets.RecordWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewClient(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = mem.New()
		logger.Info("Google Sheets disabled, exporting to memory sink")
	}

	exporter := worker.NewExportWorker(repo, writer, cfg.SyncBatchSize, logger)

	// Drain anything left over from previous runs before consuming.
	if err := exporter.ProcessPending(ctx); err != nil {
		logger.Warn("startup export sweep failed", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			return amqpClient.ConsumeExpenseRecorded(ctx, func(msg *amqp.ExpenseRecordedMessage) error {
				return exporter.HandleRecordedMessage(ctx, msg)
			})
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic sweep only")
	}

	g.Go(func() error {
		return exporter.RunSweep(ctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker error", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("spendlog-worker stopped")
}
