package pricing

import (
	"fmt"
	"strconv"
)

var symbols = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
	"CAD": "CA$",
	"AUD": "A$",
	"NZD": "NZ$",
}

// Format renders whole units with a currency symbol and thousands separators,
// e.g. "£3,599".
func Format(amount int64, currency string) string {
	return symbol(currency) + group(amount)
}

// FormatMinor renders minor units (pence, cents) with two decimals, e.g.
// "£3,400.00".
func FormatMinor(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s%s.%02d", sign, symbol(currency), group(minor/100), minor%100)
}

func symbol(currency string) string {
	if s, ok := symbols[currency]; ok {
		return s
	}
	return currency + " "
}

func group(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if n < 0 {
		neg = true
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
