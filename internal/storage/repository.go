// Package storage persists expense records in SQLite. The schema is owned by
// embedded migrations and every write goes through a single *sql.DB pool, so
// concurrent appends serialize on the driver and each record gets a distinct
// monotonically increasing ID.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/log"

	_ "modernc.org/sqlite"
)

var ErrExpenseNotFound = errors.New("expense not found")

type SQLiteRepository struct {
	db  *sql.DB
	log *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// WAL keeps readers unblocked during appends; busy_timeout covers the
	// short write lock taken by concurrent inserts. DSN pragmas apply to
	// every pooled connection.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteRepository{
		db:  db,
		log: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append stores a validated draft and returns the completed record. The
// record is immutable once written; there is no update path.
func (r *SQLiteRepository) Append(ctx context.Context, d core.Draft) (core.ExpenseRecord, error) {
	if err := d.Validate(); err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("validate draft: %w", err)
	}

	createdAt := time.Now().UTC()

	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO expenses (date, category, amount_cents, currency, raw_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING id`,
		d.Date.String(), d.Category, d.Amount.Cents, d.Currency, d.RawText, createdAt,
	).Scan(&id)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("insert expense: %w", err)
	}

	rec := core.ExpenseRecord{
		ID:        id,
		Date:      d.Date,
		Category:  d.Category,
		Amount:    d.Amount,
		Currency:  d.Currency,
		RawText:   d.RawText,
		CreatedAt: createdAt,
	}

	r.log.InfoContext(ctx, "expense saved",
		log.FieldExpenseID, rec.ID,
		log.FieldAmountCents, rec.Amount.Cents,
		log.FieldCurrency, rec.Currency,
		log.FieldCategory, rec.Category,
		"date", rec.Date.String())

	return rec, nil
}

// QueryAll returns every stored record ordered by expense date, then by
// insertion order for same-day records.
func (r *SQLiteRepository) QueryAll(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, category, amount_cents, currency, raw_text, created_at
		 FROM expenses
		 ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// QueryRange returns records with from <= date <= to, in the same order as
// QueryAll.
func (r *SQLiteRepository) QueryRange(ctx context.Context, from, to core.Date) ([]core.ExpenseRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, category, amount_cents, currency, raw_text, created_at
		 FROM expenses
		 WHERE date >= ? AND date <= ?
		 ORDER BY date ASC, id ASC`,
		from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("query expenses by range: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// QueryMonth returns the records of a calendar month.
func (r *SQLiteRepository) QueryMonth(ctx context.Context, year, month int) ([]core.ExpenseRecord, error) {
	first := core.NewDate(year, month, 1)
	last := core.DateOf(first.AddDate(0, 1, -1))
	return r.QueryRange(ctx, first, last)
}

// GetExpense retrieves a single record by ID. A missing row is reported as
// ErrExpenseNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.ExpenseRecord, error) {
	var (
		rec       core.ExpenseRecord
		dateStr   string
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, date, category, amount_cents, currency, raw_text, created_at
		 FROM expenses
		 WHERE id = ?`, id,
	).Scan(&rec.ID, &dateStr, &rec.Category, &rec.Amount.Cents, &rec.Currency, &rec.RawText, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseRecord{}, fmt.Errorf("%w: id %d", ErrExpenseNotFound, id)
	}
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("get expense by id: %w", err)
	}

	date, err := core.ParseDate(dateStr)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	rec.Date = date
	rec.CreatedAt = createdAt.UTC()

	return rec, nil
}

// PendingSyncExpense is the minimal payload queued for the export worker.
type PendingSyncExpense struct {
	ID        int64
	CreatedAt time.Time
}

// GetPendingSync lists records not yet exported, oldest first.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSyncExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at
		 FROM expenses
		 WHERE sync_status = 'pending'
		 ORDER BY id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncExpense
	for rows.Next() {
		var p PendingSyncExpense
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending expense: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending expenses: %w", err)
	}

	return pending, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = 'synced', sync_error = NULL WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	r.log.InfoContext(ctx, "expense marked as synced", log.FieldExpenseID, id)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64, cause string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = 'error', sync_error = ? WHERE id = ?`, cause, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	r.log.WarnContext(ctx, "expense marked with sync error", log.FieldExpenseID, id, "cause", cause)
	return nil
}

func scanRecords(rows *sql.Rows) ([]core.ExpenseRecord, error) {
	var records []core.ExpenseRecord
	for rows.Next() {
		var (
			rec       core.ExpenseRecord
			dateStr   string
			createdAt time.Time
		)
		if err := rows.Scan(&rec.ID, &dateStr, &rec.Category, &rec.Amount.Cents,
			&rec.Currency, &rec.RawText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		date, err := core.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", dateStr, err)
		}
		rec.Date = date
		rec.CreatedAt = createdAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense rows: %w", err)
	}
	return records, nil
}
