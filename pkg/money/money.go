// Package money holds the single rounding rule used for every monetary
// figure in the ledger.
package money

import "github.com/shopspring/decimal"

// Places is the number of decimal places kept on stored amounts.
const Places = 2

// Zero is 0.00.
var Zero = decimal.Zero

// Round rounds half away from zero to two places. For the non-negative
// amounts the ledger stores this is round-half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Sum adds the values exactly and rounds once.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round(total)
}

// Parse parses a textual amount and rounds it.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return Round(d), nil
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) decimal.Decimal {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders d with exactly two places.
func String(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
