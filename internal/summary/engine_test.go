package summary

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"spendlog/internal/core"
	"spendlog/internal/llm"
	"spendlog/internal/log"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
	prompt   string
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string, _ ...llm.Part) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.response, f.err
}

func testEngine(gen llm.TextGenerator) *Engine {
	return NewEngine(gen, log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)}))
}

func record(date core.Date, category string, cents int64, currency string) core.ExpenseRecord {
	return core.ExpenseRecord{
		Date:     date,
		Category: category,
		Amount:   core.Money{Cents: cents},
		Currency: currency,
		RawText:  "r",
	}
}

func TestAggregate(t *testing.T) {
	records := []core.ExpenseRecord{
		record(core.NewDate(2026, 3, 5), core.CategoryGroceries, 5000, "EUR"),
		record(core.NewDate(2026, 3, 12), core.CategoryTransport, 3000, "EUR"),
		record(core.NewDate(2026, 3, 20), core.CategoryGroceries, 2000, "EUR"),
		// Outside the requested month, must be ignored.
		record(core.NewDate(2026, 4, 1), core.CategoryGroceries, 99999, "EUR"),
		record(core.NewDate(2025, 3, 1), core.CategoryGroceries, 99999, "EUR"),
	}

	s := Aggregate(records, 2026, 3)

	if s.Count != 3 {
		t.Fatalf("Count = %d, want 3", s.Count)
	}
	if len(s.ByCurrency) != 1 {
		t.Fatalf("ByCurrency has %d entries, want 1", len(s.ByCurrency))
	}

	eur := s.ByCurrency[0]
	if eur.Currency != "EUR" {
		t.Errorf("Currency = %s, want EUR", eur.Currency)
	}
	if eur.Total.Cents != 10000 {
		t.Errorf("Total.Cents = %d, want 10000", eur.Total.Cents)
	}
	if len(eur.ByCategory) != 2 {
		t.Fatalf("ByCategory has %d entries, want 2", len(eur.ByCategory))
	}
	if eur.ByCategory[0].Name != core.CategoryGroceries || eur.ByCategory[0].Amount.Cents != 7000 {
		t.Errorf("top category = %s/%d, want groceries/7000",
			eur.ByCategory[0].Name, eur.ByCategory[0].Amount.Cents)
	}
	if eur.ByCategory[1].Name != core.CategoryTransport || eur.ByCategory[1].Amount.Cents != 3000 {
		t.Errorf("second category = %s/%d, want transport/3000",
			eur.ByCategory[1].Name, eur.ByCategory[1].Amount.Cents)
	}
}

func TestAggregateMixedCurrencies(t *testing.T) {
	records := []core.ExpenseRecord{
		record(core.NewDate(2026, 7, 1), core.CategoryDining, 1500, "USD"),
		record(core.NewDate(2026, 7, 2), core.CategoryDining, 2500, "EUR"),
		record(core.NewDate(2026, 7, 3), core.CategoryTravel, 4000, "USD"),
	}

	s := Aggregate(records, 2026, 7)

	if len(s.ByCurrency) != 2 {
		t.Fatalf("ByCurrency has %d entries, want 2", len(s.ByCurrency))
	}
	// Currencies are reported separately, busiest first.
	if s.ByCurrency[0].Currency != "USD" || s.ByCurrency[1].Currency != "EUR" {
		t.Errorf("currency order = %s, %s, want USD, EUR",
			s.ByCurrency[0].Currency, s.ByCurrency[1].Currency)
	}
	if s.ByCurrency[0].Total.Cents != 5500 {
		t.Errorf("USD total = %d, want 5500", s.ByCurrency[0].Total.Cents)
	}
	if s.ByCurrency[1].Total.Cents != 2500 {
		t.Errorf("EUR total = %d, want 2500", s.ByCurrency[1].Total.Cents)
	}
}

func TestAggregateCurrencyTiesAreByCode(t *testing.T) {
	records := []core.ExpenseRecord{
		record(core.NewDate(2026, 7, 1), core.CategoryDining, 1500, "USD"),
		record(core.NewDate(2026, 7, 2), core.CategoryDining, 2500, "EUR"),
	}

	s := Aggregate(records, 2026, 7)

	if len(s.ByCurrency) != 2 {
		t.Fatalf("ByCurrency has %d entries, want 2", len(s.ByCurrency))
	}
	if s.ByCurrency[0].Currency != "EUR" || s.ByCurrency[1].Currency != "USD" {
		t.Errorf("currency order = %s, %s, want EUR, USD",
			s.ByCurrency[0].Currency, s.ByCurrency[1].Currency)
	}
}

func TestAggregateCategoryTiesAreAlphabetical(t *testing.T) {
	records := []core.ExpenseRecord{
		record(core.NewDate(2026, 1, 1), core.CategoryTransport, 1000, "EUR"),
		record(core.NewDate(2026, 1, 2), core.CategoryDining, 1000, "EUR"),
	}

	s := Aggregate(records, 2026, 1)

	cats := s.ByCurrency[0].ByCategory
	if cats[0].Name != core.CategoryDining || cats[1].Name != core.CategoryTransport {
		t.Errorf("tie order = %s, %s, want dining, transport", cats[0].Name, cats[1].Name)
	}
}

func TestSummarizeEmptyMonthSkipsModel(t *testing.T) {
	gen := &fakeGenerator{response: "should not be used"}
	e := testEngine(gen)

	s, err := e.Summarize(context.Background(), nil, 2026, 2)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if s.Narrative != emptyMonthNarrative {
		t.Errorf("Narrative = %q, want %q", s.Narrative, emptyMonthNarrative)
	}
	if gen.calls != 0 {
		t.Errorf("model called %d times for an empty month, want 0", gen.calls)
	}
}

func TestSummarizeUsesModelNarrative(t *testing.T) {
	gen := &fakeGenerator{response: "  You spent 100.00 EUR, mostly on groceries.  "}
	e := testEngine(gen)

	records := []core.ExpenseRecord{
		record(core.NewDate(2026, 3, 5), core.CategoryGroceries, 10000, "EUR"),
	}

	s, err := e.Summarize(context.Background(), records, 2026, 3)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if s.Narrative != "You spent 100.00 EUR, mostly on groceries." {
		t.Errorf("Narrative = %q, want trimmed model output", s.Narrative)
	}
	if gen.calls != 1 {
		t.Errorf("model called %d times, want 1", gen.calls)
	}
	if !strings.Contains(gen.prompt, "2026-03") {
		t.Errorf("prompt does not mention the month: %q", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "100.00") {
		t.Errorf("prompt does not include the total: %q", gen.prompt)
	}
}

func TestSummarizeFallsBackWhenModelUnavailable(t *testing.T) {
	gen := &fakeGenerator{err: core.ErrModelUnavailable}
	e := testEngine(gen)

	records := []core.ExpenseRecord{
		record(core.NewDate(2026, 3, 5), core.CategoryGroceries, 7000, "EUR"),
		record(core.NewDate(2026, 3, 6), core.CategoryTransport, 3000, "EUR"),
	}

	s, err := e.Summarize(context.Background(), records, 2026, 3)
	if err != nil {
		t.Fatalf("Summarize() error = %v, want nil on fallback", err)
	}
	if s.Narrative == "" {
		t.Fatal("Narrative is empty, want fallback text")
	}
	if !strings.Contains(s.Narrative, "100.00") {
		t.Errorf("fallback narrative missing total: %q", s.Narrative)
	}
	if s.ByCurrency[0].Total.Cents != 10000 {
		t.Errorf("aggregation changed on fallback: total = %d", s.ByCurrency[0].Total.Cents)
	}
}

func TestSummarizeEmptyModelOutputFallsBack(t *testing.T) {
	gen := &fakeGenerator{response: "   "}
	e := testEngine(gen)

	records := []core.ExpenseRecord{
		record(core.NewDate(2026, 3, 5), core.CategoryGroceries, 7000, "EUR"),
	}

	s, err := e.Summarize(context.Background(), records, 2026, 3)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if s.Narrative == "" {
		t.Error("Narrative is empty, want fallback text")
	}
}
