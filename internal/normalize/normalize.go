// Package normalize converts free-form price and stock text scraped from
// product pages into canonical values, independent of locale.
package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// priceCharset keeps digits, commas, periods and whitespace; everything
// else (currency symbols, words) is stripped before separator analysis.
var priceCharset = regexp.MustCompile(`[^\d.,\s]+`)

// ParsePrice parses price text such as "45.900 TND", "45,90" or "1,234.56"
// into an exact decimal. The second return is false when the text does not
// contain a parseable non-negative amount.
//
// Separator rules, applied in order: whitespace alone is a thousands
// separator; a comma without a period is the decimal separator; when both
// appear, the comma separates thousands and the period decimals.
func ParsePrice(text string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(priceCharset.ReplaceAllString(text, ""))
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	hasComma := strings.Contains(cleaned, ",")
	hasPeriod := strings.Contains(cleaned, ".")

	switch {
	case !hasComma && !hasPeriod:
		// "1 234" style: whitespace is the only separator.
		cleaned = strings.Join(strings.Fields(cleaned), "")
	case hasComma && !hasPeriod:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case hasComma && hasPeriod:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	cleaned = strings.Join(strings.Fields(cleaned), "")

	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// outOfStockPhrases are matched case-insensitively as substrings. English
// and French cover the sites currently harvested.
var outOfStockPhrases = []string{
	"out of stock",
	"rupture",
	"indisponible",
	"épuisé",
	"non disponible",
	"unavailable",
}

// InStock interprets a stock indicator. elementFound reflects whether the
// configured indicator element matched on the page; with no text to go on,
// the element's presence is the answer (present means in stock).
func InStock(text string, elementFound bool) bool {
	if !elementFound {
		return false
	}
	if strings.TrimSpace(text) == "" {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range outOfStockPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}
