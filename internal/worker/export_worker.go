// Package worker exports stored expense records to a spreadsheet. It is
// driven by AMQP notifications and backed by a periodic sweep over records
// still marked pending, so lost messages only delay an export.
package worker

import (
	"context"
	"fmt"
	"time"

	"spendlog/internal/amqp"
	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/sheets"
	"spendlog/internal/storage"
)

// ExportStore is the slice of the repository the worker needs.
type ExportStore interface {
	GetExpense(ctx context.Context, id int64) (core.ExpenseRecord, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSyncExpense, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64, cause string) error
}

type ExportWorker struct {
	store     ExportStore
	writer    sheets.RecordWriter
	batchSize int
	log       *log.Logger
}

func NewExportWorker(store ExportStore, writer sheets.RecordWriter, batchSize int, logger *log.Logger) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
		log:       logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRecordedMessage exports the record named by one AMQP message. The
// returned error requeues the delivery.
func (w *ExportWorker) HandleRecordedMessage(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	rec, err := w.store.GetExpense(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if err := w.export(ctx, rec); err != nil {
		return fmt.Errorf("export expense: %w", err)
	}

	return nil
}

// ProcessPending exports up to one batch of records that never made it to
// the sheet, oldest first.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.GetPendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	w.log.InfoContext(ctx, "processing pending expenses", "count", len(pending))

	for _, p := range pending {
		rec, err := w.store.GetExpense(ctx, p.ID)
		if err != nil {
			w.log.ErrorContext(ctx, "failed to load pending expense",
				log.FieldExpenseID, p.ID, log.FieldError, err)
			if markErr := w.store.MarkSyncError(ctx, p.ID, err.Error()); markErr != nil {
				w.log.ErrorContext(ctx, "failed to mark sync error",
					log.FieldExpenseID, p.ID, log.FieldError, markErr)
			}
			continue
		}

		if err := w.export(ctx, rec); err != nil {
			w.log.ErrorContext(ctx, "failed to export pending expense",
				log.FieldExpenseID, p.ID, log.FieldError, err)
		}
	}

	return nil
}

// RunSweep calls ProcessPending on a fixed interval until the context ends.
func (w *ExportWorker) RunSweep(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				w.log.ErrorContext(ctx, "pending sweep failed", log.FieldError, err)
			}
		}
	}
}

func (w *ExportWorker) export(ctx context.Context, rec core.ExpenseRecord) error {
	ref, err := w.writer.AppendRecord(ctx, rec)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, rec.ID, err.Error()); markErr != nil {
			w.log.ErrorContext(ctx, "failed to mark sync error",
				log.FieldExpenseID, rec.ID, log.FieldError, markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.store.MarkSynced(ctx, rec.ID); err != nil {
		// The export itself succeeded; the record will be retried and the
		// sheet may end up with a duplicate row, which is acceptable.
		w.log.ErrorContext(ctx, "failed to mark as synced",
			log.FieldExpenseID, rec.ID, log.FieldError, err)
		return nil
	}

	w.log.InfoContext(ctx, "expense exported",
		log.FieldExpenseID, rec.ID,
		log.FieldSheetRange, ref,
		log.FieldAmountCents, rec.Amount.Cents)

	return nil
}
