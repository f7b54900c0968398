// Package summary derives monthly reports from stored expense records. The
// numeric aggregation is deterministic and always succeeds; the narrative is
// best-effort and degrades to a canned sentence when the model backend is
// down.
package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"spendlog/internal/core"
	"spendlog/internal/llm"
	"spendlog/internal/log"
)

const emptyMonthNarrative = "No expenses were recorded this month."

type Engine struct {
	gen llm.TextGenerator
	log *log.Logger
}

func NewEngine(gen llm.TextGenerator, logger *log.Logger) *Engine {
	return &Engine{
		gen: gen,
		log: logger.WithComponent(log.ComponentSummary),
	}
}

// Summarize aggregates the given records for a calendar month and asks the
// model for a short narrative. Records outside the month are ignored, so
// callers may pass a broader slice. A model failure never fails the summary.
func (e *Engine) Summarize(ctx context.Context, records []core.ExpenseRecord, year, month int) (core.MonthlySummary, error) {
	s := Aggregate(records, year, month)

	if s.Count == 0 {
		s.Narrative = emptyMonthNarrative
		return s, nil
	}

	narrative, err := e.gen.GenerateText(ctx, narrativePrompt(s))
	if err != nil {
		e.log.WarnContext(ctx, "narrative generation failed, using fallback",
			log.FieldYear, year, log.FieldMonth, month, log.FieldError, err)
		s.Narrative = fallbackNarrative(s)
		return s, nil
	}

	s.Narrative = strings.TrimSpace(narrative)
	if s.Narrative == "" {
		s.Narrative = fallbackNarrative(s)
	}

	return s, nil
}

// Aggregate computes the numeric part of a monthly summary. Totals are kept
// per currency; unlike units are never summed together.
func Aggregate(records []core.ExpenseRecord, year, month int) core.MonthlySummary {
	s := core.MonthlySummary{Year: year, Month: month}

	type bucket struct {
		count      int
		total      int64
		byCategory map[string]int64
	}
	buckets := make(map[string]*bucket)

	for _, rec := range records {
		if !rec.Date.InMonth(year, month) {
			continue
		}
		b := buckets[rec.Currency]
		if b == nil {
			b = &bucket{byCategory: make(map[string]int64)}
			buckets[rec.Currency] = b
		}
		b.count++
		b.total += rec.Amount.Cents
		b.byCategory[rec.Category] += rec.Amount.Cents
		s.Count++
	}

	for currency, b := range buckets {
		cs := core.CurrencySummary{
			Currency: currency,
			Count:    b.count,
			Total:    core.Money{Cents: b.total},
		}
		for name, cents := range b.byCategory {
			cs.ByCategory = append(cs.ByCategory, core.CategoryAmount{
				Name:   name,
				Amount: core.Money{Cents: cents},
			})
		}
		// Largest categories first; equal subtotals fall back to name order
		// so output is stable.
		sort.Slice(cs.ByCategory, func(i, j int) bool {
			if cs.ByCategory[i].Amount.Cents != cs.ByCategory[j].Amount.Cents {
				return cs.ByCategory[i].Amount.Cents > cs.ByCategory[j].Amount.Cents
			}
			return cs.ByCategory[i].Name < cs.ByCategory[j].Name
		})
		s.ByCurrency = append(s.ByCurrency, cs)
	}

	// Busiest currency first; ties fall back to code order so output is
	// stable.
	sort.Slice(s.ByCurrency, func(i, j int) bool {
		if s.ByCurrency[i].Count != s.ByCurrency[j].Count {
			return s.ByCurrency[i].Count > s.ByCurrency[j].Count
		}
		return s.ByCurrency[i].Currency < s.ByCurrency[j].Currency
	})

	return s
}

func narrativePrompt(s core.MonthlySummary) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant. Write a short, friendly summary ")
	b.WriteString("(2-4 sentences) of the following monthly spending figures. ")
	b.WriteString("Mention the total, the number of expenses and the biggest category. ")
	b.WriteString("Do not invent numbers that are not listed. Plain text only.\n\n")
	fmt.Fprintf(&b, "Month: %04d-%02d\n", s.Year, s.Month)
	fmt.Fprintf(&b, "Expenses recorded: %d\n", s.Count)
	for _, cs := range s.ByCurrency {
		fmt.Fprintf(&b, "\nCurrency %s: total %s across %d expenses\n", cs.Currency, cs.Total, cs.Count)
		for _, ca := range cs.ByCategory {
			fmt.Fprintf(&b, "  %s: %s\n", ca.Name, ca.Amount)
		}
	}
	return b.String()
}

// fallbackNarrative renders the same facts as the model would, from the
// aggregates alone.
func fallbackNarrative(s core.MonthlySummary) string {
	var parts []string
	for _, cs := range s.ByCurrency {
		top := ""
		if len(cs.ByCategory) > 0 {
			top = fmt.Sprintf(", led by %s at %s", cs.ByCategory[0].Name, cs.ByCategory[0].Amount)
		}
		parts = append(parts, fmt.Sprintf("%d expenses totalling %s %s%s", cs.Count, cs.Currency, cs.Total, top))
	}
	return fmt.Sprintf("You recorded %s in %04d-%02d.", strings.Join(parts, " and "), s.Year, s.Month)
}
