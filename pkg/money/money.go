package money

import (
	"github.com/shopspring/decimal"
)

// Monetary amounts are stored with 2 fractional digits. Invoice totals and
// seller revenue shares round away from zero; statistical aggregations may
// use banker's rounding instead.

const Scale = 2

// Round2AwayFromZero rounds to 2 decimal places, halves away from zero.
// 0.005 -> 0.01, -0.005 -> -0.01.
func Round2AwayFromZero(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Round2Bankers rounds to 2 decimal places, halves to even.
// 0.005 -> 0.00, 0.015 -> 0.02.
func Round2Bankers(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(Scale)
}

// Percent returns pct percent of amount, unrounded.
func Percent(amount decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(decimal.NewFromInt(100))
}
