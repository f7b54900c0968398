package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"spendlog/internal/amqp"
	"spendlog/internal/config"
	"spendlog/internal/extraction"
	apphttp "spendlog/internal/http"
	"spendlog/internal/llm"
	"spendlog/internal/log"
	"spendlog/internal/ocr"
	"spendlog/internal/services"
	"spendlog/internal/speech"
	"spendlog/internal/storage"
	"spendlog/internal/summary"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	logger.Info("starting spendlog")

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

	model, err := llm.NewClient(ctx, cfg.ModelName, cfg.ModelTimeout, cfg.MaxRetries, logger)
	if err != nil {
		logger.Error("failed to initialize model client", log.FieldError, err)
		os.Exit(1)
	}

	extractor := extraction.NewEngine(model, cfg.HomeCurrency, cfg.MaxRetries, logger)
	transcriber := speech.NewTranscriber(model, logger)
	summarizer := summary.NewEngine(model, logger)

	var images services.ImageReader
	if cfg.VisionEnabled {
		images = ocr.NewReader(model, logger)
	} else {
		logger.Info("vision disabled, image expenses will be rejected")
	}

	// AMQP is optional. Without it the export worker still picks records up
	// through its periodic sweep.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without export notifications", log.FieldError, err)
		} else {
			publisher = amqpClient
		}
	}

	svc := services.NewExpenseService(extractor, transcriber, images, summarizer, repo, publisher, logger)
	defer svc.Close()

	srv := apphttp.NewServer(cfg.Addr(), svc, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("spendlog stopped")
}
