package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-02-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2025 || d.Month() != 2 || d.Day() != 3 {
		t.Errorf("unexpected date parts: %v", d)
	}
	if got := d.String(); got != "2025-02-03" {
		t.Errorf("String() = %q, want 2025-02-03", got)
	}

	if _, err := ParseDate("03/02/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
	if _, err := ParseDate(""); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate for empty input, got %v", err)
	}
}

func TestDateOfTruncatesTime(t *testing.T) {
	ts := time.Date(2025, 6, 15, 23, 45, 1, 0, time.UTC)
	d := DateOf(ts)
	if d.Hour() != 0 || d.Minute() != 0 {
		t.Errorf("expected midnight, got %v", d.Time)
	}
	if !d.InMonth(2025, 6) {
		t.Errorf("expected date in 2025-06")
	}
	if d.InMonth(2025, 7) {
		t.Errorf("date should not be in 2025-07")
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Groceries", "groceries"},
		{"  TRANSPORT  ", "transport"},
		{"", "other"},
		{"   ", "other"},
		{"pet supplies", "pet supplies"}, // open set: unknown labels pass through
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.input); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"USD", "USD"},
		{"usd", "USD"},
		{"$", "USD"},
		{"€", "EUR"},
		{"£", "GBP"},
		{"₹", "INR"},
		{"", "EUR"},
		{"???", "EUR"},
		{"DOLLARS", "EUR"}, // not a 3-letter code, falls back
	}
	for _, tt := range tests {
		if got := NormalizeCurrency(tt.input, "EUR"); got != tt.want {
			t.Errorf("NormalizeCurrency(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDraftValidate(t *testing.T) {
	valid := Draft{
		Date:     NewDate(2025, 3, 10),
		Category: CategoryGroceries,
		Amount:   Money{Cents: 5000},
		Currency: "USD",
		RawText:  "spent 50 dollars on groceries",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Draft)
		wantErr error
	}{
		{"zero amount", func(d *Draft) { d.Amount.Cents = 0 }, ErrInvalidAmount},
		{"negative amount", func(d *Draft) { d.Amount.Cents = -100 }, ErrInvalidAmount},
		{"zero date", func(d *Draft) { d.Date = Date{} }, ErrInvalidDate},
		{"empty category", func(d *Draft) { d.Category = " " }, ErrEmptyCategory},
		{"empty currency", func(d *Draft) { d.Currency = "" }, ErrEmptyCurrency},
		{"empty raw text", func(d *Draft) { d.RawText = "" }, ErrEmptyRawText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			if err := d.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
