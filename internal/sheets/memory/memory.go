// Package memory is an in-process RecordWriter used for local development
// and tests when no real spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spendlog/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items []core.ExpenseRecord
}

func New() *Store {
	return &Store{}
}

// AppendRecord stores the record and returns a synthetic row reference.
func (s *Store) AppendRecord(_ context.Context, rec core.ExpenseRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, rec)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Records returns a copy of everything appended so far.
func (s *Store) Records() []core.ExpenseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExpenseRecord(nil), s.items...)
}
