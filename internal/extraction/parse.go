package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"spendlog/internal/core"
)

// cleanModelJSON strips markdown fences and surrounding junk that models
// emit despite instructions, keeping only the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// If there's still prose around the object, keep only from the first '{'
	// to the last '}'.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

// parseModelOutput validates one model response against the expected shape
// and applies the per-field defaulting policy:
//
//   - amount: required; no interpretable positive quantity is
//     core.ErrNoAmountFound (never defaulted)
//   - date: defaults to the reference date when missing or unparseable
//   - category: defaults to "other"
//   - currency: symbol or code normalized; defaults to the home currency
//
// A response that is not a JSON object at all is core.ErrMalformedModelOutput.
func parseModelOutput(raw string, refDate core.Date, homeCurrency string) (core.Draft, error) {
	clean := cleanModelJSON(raw)

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return core.Draft{}, fmt.Errorf("%w: %v", core.ErrMalformedModelOutput, err)
	}

	amount, err := amountField(obj, "amount")
	if err != nil {
		return core.Draft{}, err
	}

	date := refDate
	if s := stringField(obj, "date"); s != "" {
		if parsed, err := core.ParseDate(s); err == nil {
			date = parsed
		}
	}

	category := core.NormalizeCategory(stringField(obj, "category"))
	currency := core.NormalizeCurrency(stringField(obj, "currency"), homeCurrency)

	return core.Draft{
		Date:     date,
		Category: category,
		Amount:   amount,
		Currency: currency,
	}, nil
}

func stringField(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		// Models occasionally emit numbers where strings belong.
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	default:
		return ""
	}
}

// amountField coerces the amount from a JSON number or a string carrying
// currency symbols and separators.
func amountField(m map[string]interface{}, key string) (core.Money, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return core.Money{}, core.ErrNoAmountFound
	}
	switch val := v.(type) {
	case float64:
		if val <= 0 {
			return core.Money{}, core.ErrNoAmountFound
		}
		return core.Money{Cents: int64(math.Round(val * 100))}, nil
	case string:
		money, err := core.ParseAmount(val)
		if err != nil {
			return core.Money{}, core.ErrNoAmountFound
		}
		return money, nil
	default:
		return core.Money{}, core.ErrNoAmountFound
	}
}
