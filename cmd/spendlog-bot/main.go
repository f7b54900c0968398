package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"spendlog/internal/amqp"
	"spendlog/internal/bot"
	"spendlog/internal/config"
	"spendlog/internal/extraction"
	"spendlog/internal/llm"
	"spendlog/internal/log"
	"spendlog/internal/ocr"
	"spendlog/internal/services"
	"spendlog/internal/speech"
	"spendlog/internal/storage"
	"spendlog/internal/summary"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	logger.Info("starting spendlog-bot")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.TelegramToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is required")
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
	}

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

	b, err := bot.New(cfg.TelegramToken, svc, logger)
	if err != nil {
		logger.Error("failed to start telegram bot", log.FieldError, err)
		os.Exit(1)
	}

	// Scheduled report for the previous month, typically on the 1st.
	var scheduler *cron.Cron
	if cfg.TelegramChatID != 0 {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.MonthlyReportCron, func() {
			b.SendMonthlyReport(ctx, cfg.TelegramChatID)
		})
		if err != nil {
			logger.Error("invalid monthly report schedule",
				log.FieldError, err, "schedule", cfg.MonthlyReportCron)
			os.Exit(1)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("monthly report scheduled",
			"schedule", cfg.MonthlyReportCron, log.FieldChatID, cfg.TelegramChatID)
	} else {
		logger.Info("TELEGRAM_CHAT_ID not set, monthly report disabled")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot error", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("spendlog-bot stopped")
}
