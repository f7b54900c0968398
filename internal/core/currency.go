package core

import "strings"

// symbolCodes maps common currency symbols to ISO 4217 codes.
var symbolCodes = map[string]string{
	"$":  "USD",
	"€":  "EUR",
	"£":  "GBP",
	"¥":  "JPY",
	"₹":  "INR",
	"₽":  "RUB",
	"₩":  "KRW",
	"₺":  "TRY",
	"zł": "PLN",
	"kr": "SEK",
	"r$": "BRL",
	"a$": "AUD",
	"c$": "CAD",
}

// NormalizeCurrency maps a currency symbol or code to an uppercase 3-letter
// ISO code. Unknown or empty input falls back to the home currency.
func NormalizeCurrency(s, home string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return home
	}
	if code, ok := symbolCodes[strings.ToLower(s)]; ok {
		return code
	}
	code := strings.ToUpper(s)
	if len(code) == 3 && isAlpha(code) {
		return code
	}
	return home
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
