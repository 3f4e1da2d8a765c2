package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies have no minor unit, so amounts are already whole.
var zeroDecimalCurrencies = map[string]struct{}{
	"jpy": {}, "krw": {}, "vnd": {}, "clp": {}, "isk": {}, "ugx": {},
}

// Major converts an amount in minor units to major units.
func Major(cents int64, currency string) decimal.Decimal {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		return decimal.NewFromInt(cents)
	}
	return decimal.New(cents, -2)
}

// FormatAmount renders an amount for display, e.g. "11.25 USD".
func FormatAmount(cents int64, currency string) string {
	if currency == "" {
		currency = "usd"
	}
	places := int32(2)
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		places = 0
	}
	return Major(cents, currency).StringFixed(places) + " " + strings.ToUpper(currency)
}

// Minor converts a major-unit amount to minor units. Amounts with more
// precision than the currency's minor unit are rejected.
func Minor(amount decimal.Decimal, currency string) (int64, error) {
	exp := int32(2)
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		exp = 0
	}
	minor := amount.Shift(exp)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, exp)
	}
	if minor.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", amount)
	}
	return minor.IntPart(), nil
}
