package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"spendlog/internal/core"
)

var monthNames = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

var (
	reportPrefixRe = regexp.MustCompile(`^(?:report|summary)\s+(.+)$`)
	yearMonthRe    = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})`)
)

// parseReportIntent recognizes report requests like "report", "summary",
// "report feb", "report february 2025", "report 2025-02". It returns false
// when the text is not a report request, in which case the message is
// treated as an expense.
func parseReportIntent(text string, now time.Time) (year, month int, ok bool) {
	t := strings.ToLower(strings.TrimSpace(text))

	switch t {
	case "report", "summary", "monthly report", "monthly summary", "report this month":
		return now.Year(), int(now.Month()), true
	}

	m := reportPrefixRe.FindStringSubmatch(t)
	if m == nil {
		return 0, 0, false
	}
	rest := strings.TrimSpace(m[1])

	// "2025-02" or "2025/2"
	if dm := yearMonthRe.FindStringSubmatch(rest); dm != nil {
		y, _ := strconv.Atoi(dm[1])
		mo, _ := strconv.Atoi(dm[2])
		if mo >= 1 && mo <= 12 {
			return y, mo, true
		}
		return 0, 0, false
	}

	// "february 2025", "feb 2025", "2 2025", "february", "2"
	year = now.Year()
	month = 0
	for _, p := range strings.Fields(rest) {
		if n, err := strconv.Atoi(p); err == nil {
			switch {
			case n >= 2000 && n <= 2100:
				year = n
			case n >= 1 && n <= 12:
				month = n
			}
			continue
		}
		if mo, found := monthNames[p]; found {
			month = mo
		}
	}
	if month >= 1 && month <= 12 {
		return year, month, true
	}
	return 0, 0, false
}

// formatRecorded renders the confirmation line sent after saving an expense.
func formatRecorded(rec core.ExpenseRecord) string {
	raw := rec.RawText
	if len(raw) > 70 {
		raw = raw[:70] + "..."
	}
	return fmt.Sprintf("✅ Added\n  %s | %s | %s %s\n  %q",
		rec.Date.String(), rec.Category, rec.Currency, rec.Amount, raw)
}

// formatReport renders a monthly summary as a short plain-text message.
func formatReport(s core.MonthlySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Report %04d-%02d\n", s.Year, s.Month)
	fmt.Fprintf(&b, "  Expenses: %d\n", s.Count)

	for _, cs := range s.ByCurrency {
		fmt.Fprintf(&b, "\n%s total: %s\n", cs.Currency, cs.Total)
		top := cs.ByCategory
		if len(top) > 5 {
			top = top[:5]
		}
		for _, ca := range top {
			fmt.Fprintf(&b, "  • %s: %s\n", ca.Name, ca.Amount)
		}
	}

	if narrative := strings.TrimSpace(s.Narrative); narrative != "" {
		if len(narrative) > 800 {
			narrative = narrative[:800] + "..."
		}
		b.WriteString("\n")
		b.WriteString(narrative)
	}

	return strings.TrimRight(b.String(), "\n")
}
