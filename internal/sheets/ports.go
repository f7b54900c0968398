package sheets

import (
	"context"

	"spendlog/internal/core"
)

// RecordWriter is the outbound port for exporting stored expense records to
// a spreadsheet.
type RecordWriter interface {
	// AppendRecord writes one record and returns a reference to the
	// written row.
	AppendRecord(ctx context.Context, rec core.ExpenseRecord) (rowRef string, err error)
}
