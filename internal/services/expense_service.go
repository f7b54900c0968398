// Package services orchestrates the extraction, storage and reporting flows
// behind the HTTP and Telegram surfaces.
package services

import (
	"context"
	"fmt"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/log"
)

// Ports consumed by the service. The concrete implementations live in
// extraction, speech, ocr, summary, storage and amqp.
type (
	Extractor interface {
		Extract(ctx context.Context, text string, refDate time.Time) (core.Draft, error)
	}

	Transcriber interface {
		Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
	}

	ImageReader interface {
		Text(ctx context.Context, image []byte, mimeType string) (string, error)
	}

	Summarizer interface {
		Summarize(ctx context.Context, records []core.ExpenseRecord, year, month int) (core.MonthlySummary, error)
	}

	Store interface {
		Append(ctx context.Context, d core.Draft) (core.ExpenseRecord, error)
		QueryAll(ctx context.Context) ([]core.ExpenseRecord, error)
		QueryRange(ctx context.Context, from, to core.Date) ([]core.ExpenseRecord, error)
		QueryMonth(ctx context.Context, year, month int) ([]core.ExpenseRecord, error)
		Close() error
	}

	Publisher interface {
		PublishExpenseRecorded(ctx context.Context, id int64) error
		Close() error
	}
)

// ExpenseService ties extraction to the store and notifies the export
// worker. A publish failure never fails a request; the record is already
// durable and the worker sweeps for pending records anyway.
type ExpenseService struct {
	extractor   Extractor
	transcriber Transcriber
	images      ImageReader
	summarizer  Summarizer
	store       Store
	publisher   Publisher
	log         *log.Logger
}

func NewExpenseService(
	extractor Extractor,
	transcriber Transcriber,
	images ImageReader,
	summarizer Summarizer,
	store Store,
	publisher Publisher,
	logger *log.Logger,
) *ExpenseService {
	return &ExpenseService{
		extractor:   extractor,
		transcriber: transcriber,
		images:      images,
		summarizer:  summarizer,
		store:       store,
		publisher:   publisher,
		log:         logger.WithComponent(log.ComponentApp),
	}
}

// RecordText extracts a structured expense from free-form text and appends
// it to the store. refDate anchors relative dates like "yesterday".
func (s *ExpenseService) RecordText(ctx context.Context, text string, refDate time.Time) (core.ExpenseRecord, error) {
	draft, err := s.extractor.Extract(ctx, text, refDate)
	if err != nil {
		return core.ExpenseRecord{}, err
	}

	rec, err := s.store.Append(ctx, draft)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("save expense: %w", err)
	}

	s.notifyRecorded(ctx, rec.ID)

	return rec, nil
}

// RecordAudio transcribes a voice note and records the transcript.
func (s *ExpenseService) RecordAudio(ctx context.Context, audio []byte, mimeType string, refDate time.Time) (core.ExpenseRecord, error) {
	if s.transcriber == nil {
		return core.ExpenseRecord{}, core.ErrTranscriptionFailed
	}

	transcript, err := s.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return core.ExpenseRecord{}, err
	}

	return s.RecordText(ctx, transcript, refDate)
}

// RecordImage reads the text off a receipt image and records it. Without a
// configured image reader the operation reports core.ErrOCRUnavailable.
func (s *ExpenseService) RecordImage(ctx context.Context, image []byte, mimeType string, refDate time.Time) (core.ExpenseRecord, error) {
	if s.images == nil {
		return core.ExpenseRecord{}, core.ErrOCRUnavailable
	}

	text, err := s.images.Text(ctx, image, mimeType)
	if err != nil {
		return core.ExpenseRecord{}, err
	}

	return s.RecordText(ctx, text, refDate)
}

// ListExpenses returns all records in date order.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	records, err := s.store.QueryAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return records, nil
}

// ListExpensesRange returns records with from <= date <= to.
func (s *ExpenseService) ListExpensesRange(ctx context.Context, from, to core.Date) ([]core.ExpenseRecord, error) {
	if to.Before(from.Time) {
		return nil, fmt.Errorf("%w: range end before start", core.ErrInvalidDate)
	}
	records, err := s.store.QueryRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expenses by range: %w", err)
	}
	return records, nil
}

// MonthlySummary aggregates one calendar month and attaches a narrative.
func (s *ExpenseService) MonthlySummary(ctx context.Context, year, month int) (core.MonthlySummary, error) {
	if month < 1 || month > 12 {
		return core.MonthlySummary{}, fmt.Errorf("%w: month %d", core.ErrInvalidDate, month)
	}
	if year < 1 {
		return core.MonthlySummary{}, fmt.Errorf("%w: year %d", core.ErrInvalidDate, year)
	}

	records, err := s.store.QueryMonth(ctx, year, month)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("query month: %w", err)
	}

	return s.summarizer.Summarize(ctx, records, year, month)
}

func (s *ExpenseService) notifyRecorded(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseRecorded(ctx, id); err != nil {
		s.log.ErrorContext(ctx, "failed to publish expense recorded message",
			log.FieldExpenseID, id, log.FieldError, err)
	}
}

// Close releases the store and publisher connections.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %v", errs)
	}

	return nil
}
