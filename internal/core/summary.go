package core

// CategoryAmount is an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// CurrencySummary aggregates the records of one currency within a month.
// Unlike units are never summed together; a month with mixed currencies
// produces one CurrencySummary per currency.
type CurrencySummary struct {
	Currency   string
	Count      int
	Total      Money
	ByCategory []CategoryAmount
}

// MonthlySummary is the derived report for a (year, month) window. It is
// recomputed on request and never persisted.
type MonthlySummary struct {
	Year       int
	Month      int // 1-12
	Count      int
	ByCurrency []CurrencySummary
	Narrative  string
}
