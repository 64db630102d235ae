package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// amountPattern matches "$1,299.99", "1 299,99" and "199" with an optional leading currency symbol.
// Space grouping allows a two-digit decimal part, comma grouping a dot decimal part, and a bare
// number either a dot or a two-digit comma decimal part.
var amountPattern = regexp.MustCompile(`([\$€£¥])?\s*(\d{1,3}(?: \d{3})+(?:[.,]\d{1,2})?|\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+|,\d{1,2})?)`)

var (
	decimalSuffix = regexp.MustCompile(`[.,]\d{1,2}$`)
	decimalComma  = regexp.MustCompile(`,\d{1,2}$`)
)

// normalizeWhitespace replaces unicode whitespace (including NBSP) with spaces and collapses runs
func normalizeWhitespace(text string) string {
	normalized := strings.Builder{}
	for _, r := range text {
		if unicode.IsSpace(r) {
			normalized.WriteRune(' ')
		} else {
			normalized.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(normalized.String()), " ")
}

// ParsePrice extracts a price from display text such as "Dell Price $1,299.99" or "$199.99 –".
// The first amount carrying a currency symbol wins, otherwise the first bare number.
// Text without a parseable amount yields an invalid (null) price.
func ParsePrice(text string) decimal.NullDecimal {
	text = normalizeWhitespace(text)
	if text == "" {
		return decimal.NullDecimal{}
	}

	matches := amountPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return decimal.NullDecimal{}
	}

	chosen := matches[0]
	for _, m := range matches {
		if m[2] >= 0 {
			chosen = m
			break
		}
	}

	amount := text[chosen[4]:chosen[5]]
	// "$199 200 reviews": a space group without decimals only counts when nothing but a currency follows
	if strings.Contains(amount, " ") && !decimalSuffix.MatchString(amount) && !endsAmount(text[chosen[5]:]) {
		amount = amount[:strings.Index(amount, " ")]
	}

	price, err := decimal.NewFromString(cleanAmount(amount))
	if err != nil || price.IsNegative() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(price)
}

// endsAmount reports whether rest holds nothing after an amount but an optional currency symbol
func endsAmount(rest string) bool {
	rest = strings.TrimSpace(rest)
	return rest == "" || strings.IndexAny(rest, "$€£¥") == 0
}

// cleanAmount drops grouping separators and turns a decimal comma into a dot
func cleanAmount(amount string) string {
	amount = strings.ReplaceAll(amount, " ", "")
	if decimalComma.MatchString(amount) {
		return strings.Replace(amount, ",", ".", 1)
	}
	return strings.ReplaceAll(amount, ",", "")
}
