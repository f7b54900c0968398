package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CategoryGroceries     = "groceries"
	CategoryTransport     = "transport"
	CategoryDining        = "dining"
	CategoryShopping      = "shopping"
	CategoryEntertainment = "entertainment"
	CategoryUtilities     = "utilities"
	CategoryHealthcare    = "healthcare"
	CategoryTravel        = "travel"
	CategoryOther         = "other"
)

type (
	// Date is a calendar date without time-of-day semantics.
	// The embedded time is always UTC midnight.
	Date struct {
		time.Time
	}

	// Money is an amount in minor currency units (cents).
	Money struct {
		Cents int64
	}

	// Draft is an expense as produced by the extraction engine,
	// before the store assigns an ID and creation timestamp.
	Draft struct {
		Date     Date
		Category string
		Amount   Money
		Currency string
		RawText  string
	}

	// ExpenseRecord is the canonical persisted entity. Once appended it
	// is never mutated.
	ExpenseRecord struct {
		ID        int64
		Date      Date
		Category  string
		Amount    Money
		Currency  string
		RawText   string
		CreatedAt time.Time
	}
)

var (
	ErrEmptyText            = errors.New("empty input text")
	ErrNoAmountFound        = errors.New("no positive amount found in input")
	ErrMalformedModelOutput = errors.New("malformed model output")
	ErrModelUnavailable     = errors.New("model backend unavailable")
	ErrTranscriptionFailed  = errors.New("audio transcription failed")
	ErrOCRUnavailable       = errors.New("image text extraction not configured")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyCurrency = errors.New("empty currency")
	ErrEmptyRawText  = errors.New("empty raw text")
)

// KnownCategories is the recognized-but-not-closed category set. Extraction
// steers the model towards these labels; anything else is accepted as-is.
var KnownCategories = []string{
	CategoryGroceries,
	CategoryTransport,
	CategoryDining,
	CategoryShopping,
	CategoryEntertainment,
	CategoryUtilities,
	CategoryHealthcare,
	CategoryTravel,
	CategoryOther,
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// InMonth reports whether the date falls in the given year and month.
func (d Date) InMonth(year, month int) bool {
	return d.Time.Year() == year && int(d.Time.Month()) == month
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year.
func (d Date) Year() int {
	return d.Time.Year()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// NormalizeCategory lowercases and trims a category label. Empty input maps
// to CategoryOther; any other text is accepted as-is (the set is open).
func NormalizeCategory(s string) string {
	c := strings.ToLower(strings.TrimSpace(s))
	if c == "" {
		return CategoryOther
	}
	return c
}

func (d Draft) Validate() error {
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.Category) == "" {
		return ErrEmptyCategory
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.Currency) == "" {
		return ErrEmptyCurrency
	}
	if strings.TrimSpace(d.RawText) == "" {
		return ErrEmptyRawText
	}
	return nil
}
