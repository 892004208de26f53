package pricing

import (
	"strings"

	"golang.org/x/text/language"
)

var localeCurrency = map[string]string{
	"en-us": "USD",
	"es-us": "USD",
	"en-gb": "GBP",
	"cy-gb": "GBP",
	"en-ca": "CAD",
	"fr-ca": "CAD",
	"en-au": "AUD",
	"en-nz": "NZD",
	"mi-nz": "NZD",
	"en-ie": "EUR",
	"de-de": "EUR",
	"de-at": "EUR",
	"fr-fr": "EUR",
	"fr-be": "EUR",
	"nl-nl": "EUR",
	"nl-be": "EUR",
	"es-es": "EUR",
	"it-it": "EUR",
	"pt-pt": "EUR",
	"fi-fi": "EUR",
}

var euroLanguages = map[string]bool{
	"de": true, "fr": true, "es": true, "it": true, "nl": true, "pt": true,
	"fi": true, "el": true, "et": true, "lv": true, "lt": true, "sk": true,
	"sl": true, "mt": true, "ga": true,
}

// DetectCurrency maps a locale such as "en-US" or "fr_CA" to a currency code.
// Exact locales win; otherwise English maps to the base currency, a set of
// eurozone languages to EUR, and everything else to the base currency.
func DetectCurrency(locale string) string {
	l := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
	if c, ok := localeCurrency[l]; ok {
		return c
	}

	lang, _, _ := strings.Cut(l, "-")
	if euroLanguages[lang] {
		return "EUR"
	}
	return BaseCurrency
}

// FromAcceptLanguage detects the currency from the most preferred language
// in an Accept-Language header.
func FromAcceptLanguage(header string) string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return BaseCurrency
	}
	return DetectCurrency(tags[0].String())
}
