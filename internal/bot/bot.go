// Package bot is the Telegram surface. Messages are interpreted as either a
// report request or an expense in plain language; photos and voice notes go
// through OCR and transcription first.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"spendlog/internal/core"
	"spendlog/internal/log"
)

const helpText = `Send me:

📝 Text – an expense in plain language
  e.g. 50 dollars on groceries yesterday

🎤 Voice – speak the expense
  I'll transcribe it and add the expense.

🖼 Photo – a receipt or screenshot
  I'll read it and add the expense.

📊 Report – ask for a summary
  e.g. report, summary, report February, report feb 2025`

// ExpenseService is the slice of the service layer the bot uses.
type ExpenseService interface {
	RecordText(ctx context.Context, text string, refDate time.Time) (core.ExpenseRecord, error)
	RecordAudio(ctx context.Context, audio []byte, mimeType string, refDate time.Time) (core.ExpenseRecord, error)
	RecordImage(ctx context.Context, image []byte, mimeType string, refDate time.Time) (core.ExpenseRecord, error)
	MonthlySummary(ctx context.Context, year, month int) (core.MonthlySummary, error)
}

type Bot struct {
	api        *tgbotapi.BotAPI
	svc        ExpenseService
	httpClient *http.Client
	log        *log.Logger
}

func New(token string, svc ExpenseService, logger *log.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	api.Debug = false

	return &Bot{
		api:        api,
		svc:        svc,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        logger.WithComponent(log.ComponentBot),
	}, nil
}

// Run processes updates until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("bot started", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	logger := b.log.With(log.FieldChatID, chatID)

	switch {
	case msg.IsCommand():
		switch msg.Command() {
		case "start", "help":
			b.reply(chatID, helpText)
		default:
			b.reply(chatID, "Unknown command. Try /help.")
		}
	case len(msg.Photo) > 0:
		b.sendTyping(chatID)
		b.reply(chatID, b.responseForPhoto(ctx, msg, logger))
	case msg.Voice != nil:
		b.sendTyping(chatID)
		b.reply(chatID, b.responseForFile(ctx, msg.Voice.FileID, msg.Voice.MimeType, b.svc.RecordAudio, logger))
	case msg.Audio != nil:
		b.sendTyping(chatID)
		b.reply(chatID, b.responseForFile(ctx, msg.Audio.FileID, msg.Audio.MimeType, b.svc.RecordAudio, logger))
	case msg.Text != "":
		b.sendTyping(chatID)
		b.reply(chatID, b.responseForText(ctx, msg.Text))
	default:
		b.reply(chatID, "Send text, a voice note, a photo of a receipt, or 'report'.")
	}
}

// responseForText handles both report requests and plain expenses.
func (b *Bot) responseForText(ctx context.Context, text string) string {
	if year, month, ok := parseReportIntent(text, time.Now()); ok {
		summary, err := b.svc.MonthlySummary(ctx, year, month)
		if err != nil {
			return "Report failed: " + errorReply(err)
		}
		return formatReport(summary)
	}

	rec, err := b.svc.RecordText(ctx, text, time.Now())
	if err != nil {
		return errorReply(err)
	}
	return formatRecorded(rec)
}

func (b *Bot) responseForPhoto(ctx context.Context, msg *tgbotapi.Message, logger *log.Logger) string {
	// Largest size is last.
	photo := msg.Photo[len(msg.Photo)-1]
	return b.responseForFile(ctx, photo.FileID, "image/jpeg", b.svc.RecordImage, logger)
}

func (b *Bot) responseForFile(ctx context.Context, fileID, mimeType string,
	record func(context.Context, []byte, string, time.Time) (core.ExpenseRecord, error),
	logger *log.Logger,
) string {
	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		logger.ErrorContext(ctx, "file download failed", log.FieldError, err)
		return "Could not download the attachment, try again."
	}

	rec, err := record(ctx, data, mimeType, time.Now())
	if err != nil {
		return errorReply(err)
	}
	return formatRecorded(rec)
}

// SendMonthlyReport sends the previous month's summary to the given chat.
// Wired to a cron schedule from the bot binary.
func (b *Bot) SendMonthlyReport(ctx context.Context, chatID int64) {
	prev := time.Now().AddDate(0, -1, 0)
	summary, err := b.svc.MonthlySummary(ctx, prev.Year(), int(prev.Month()))
	if err != nil {
		b.log.ErrorContext(ctx, "monthly report failed",
			log.FieldChatID, chatID, log.FieldError, err)
		return
	}
	b.reply(chatID, formatReport(summary))
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build file request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

func (b *Bot) reply(chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("failed to send reply", log.FieldChatID, chatID, log.FieldError, err)
	}
}

func (b *Bot) sendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.api.Request(action); err != nil {
		b.log.Debug("failed to send chat action", log.FieldChatID, chatID, log.FieldError, err)
	}
}

// errorReply turns domain errors into a short user-facing sentence.
func errorReply(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyText):
		return "Send text (expense or 'report' / 'summary'), or a photo of a receipt."
	case errors.Is(err, core.ErrNoAmountFound):
		return "I couldn't find an amount in that. Try something like '12.50 on lunch'."
	case errors.Is(err, core.ErrMalformedModelOutput):
		return "I couldn't understand that as an expense. Try rephrasing."
	case errors.Is(err, core.ErrModelUnavailable):
		return "The expense assistant is temporarily unavailable, try again in a minute."
	case errors.Is(err, core.ErrTranscriptionFailed):
		return "I couldn't transcribe that voice note. Try again or send text."
	case errors.Is(err, core.ErrOCRUnavailable):
		return "Reading receipts is not enabled on this bot. Send the expense as text."
	default:
		return "Something went wrong, try again."
	}
}
