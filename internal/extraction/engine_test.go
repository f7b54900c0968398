package extraction

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/llm"
	"spendlog/internal/log"
)

// fakeGenerator replays a scripted sequence of responses.
type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string, parts ...llm.Part) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func testLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Component: "test"})
}

func testEngine(gen llm.TextGenerator, maxRetries int) *Engine {
	return NewEngine(gen, "USD", maxRetries, testLogger())
}

var refTime = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func TestExtractHappyPath(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{`{"date": "2025-03-14", "category": "groceries", "amount": 52.30, "currency": "USD"}`},
	}

	draft, err := testEngine(gen, 2).Extract(context.Background(), "spent $52.30 on groceries yesterday", refTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Amount.Cents != 5230 {
		t.Errorf("amount = %d cents, want 5230", draft.Amount.Cents)
	}
	if draft.Date != core.NewDate(2025, 3, 14) {
		t.Errorf("date = %v, want 2025-03-14", draft.Date)
	}
	if draft.Category != "groceries" {
		t.Errorf("category = %q, want groceries", draft.Category)
	}
	if draft.RawText != "spent $52.30 on groceries yesterday" {
		t.Errorf("raw text not preserved: %q", draft.RawText)
	}
	if gen.calls != 1 {
		t.Errorf("model called %d times, want 1", gen.calls)
	}
}

func TestExtractEmptyText(t *testing.T) {
	gen := &fakeGenerator{}
	_, err := testEngine(gen, 2).Extract(context.Background(), "   \n\t ", refTime)
	if !errors.Is(err, core.ErrEmptyText) {
		t.Fatalf("error = %v, want ErrEmptyText", err)
	}
	if gen.calls != 0 {
		t.Errorf("model should not be called for empty text, got %d calls", gen.calls)
	}
}

func TestExtractRetriesMalformedThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{
			"Sorry, here you go: it was fifty dollars",
			`{"category": "dining", "amount": 50, "currency": "USD"}`,
		},
	}

	draft, err := testEngine(gen, 2).Extract(context.Background(), "dinner, fifty bucks", refTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Amount.Cents != 5000 {
		t.Errorf("amount = %d cents, want 5000", draft.Amount.Cents)
	}
	if gen.calls != 2 {
		t.Fatalf("model called %d times, want 2", gen.calls)
	}
	// The second attempt must restate the instruction.
	if gen.prompts[0] == gen.prompts[1] {
		t.Error("retry prompt should differ from the first prompt")
	}
}

func TestExtractMalformedExhausted(t *testing.T) {
	gen := &fakeGenerator{
		responses: []string{"junk", "more junk"},
	}

	_, err := testEngine(gen, 1).Extract(context.Background(), "coffee 3.50", refTime)
	if !errors.Is(err, core.ErrMalformedModelOutput) {
		t.Fatalf("error = %v, want ErrMalformedModelOutput", err)
	}
	if gen.calls != 2 {
		t.Errorf("model called %d times, want 2 (initial + 1 retry)", gen.calls)
	}
}

func TestExtractNoAmountFound(t *testing.T) {
	noAmount := `{"date": "2025-03-15", "category": "dining", "currency": "USD"}`
	gen := &fakeGenerator{
		responses: []string{noAmount, noAmount, noAmount},
	}

	_, err := testEngine(gen, 2).Extract(context.Background(), "lunch with friends", refTime)
	if !errors.Is(err, core.ErrNoAmountFound) {
		t.Fatalf("error = %v, want ErrNoAmountFound", err)
	}
}

func TestExtractModelUnavailablePropagates(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{core.ErrModelUnavailable},
	}

	_, err := testEngine(gen, 3).Extract(context.Background(), "coffee 3.50", refTime)
	if !errors.Is(err, core.ErrModelUnavailable) {
		t.Fatalf("error = %v, want ErrModelUnavailable", err)
	}
	if gen.calls != 1 {
		t.Errorf("model called %d times, want 1 (transport retries live in the llm client)", gen.calls)
	}
}

func TestExtractZeroRetriesConfig(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"junk"}}

	_, err := testEngine(gen, 0).Extract(context.Background(), "coffee 3.50", refTime)
	if !errors.Is(err, core.ErrMalformedModelOutput) {
		t.Fatalf("error = %v, want ErrMalformedModelOutput", err)
	}
	if gen.calls != 1 {
		t.Errorf("model called %d times, want exactly 1", gen.calls)
	}
}
