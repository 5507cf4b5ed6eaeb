// Package money centralizes decimal arithmetic for prices and totals.
// All amounts are decimals rounded to two places at computation boundaries;
// float math on money is never used.
package money

import "github.com/shopspring/decimal"

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Round normalizes an amount to two decimal places.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Extend computes quantity * unit price, rounded to two places.
func Extend(unitPrice decimal.Decimal, quantity int64) decimal.Decimal {
	return Round(unitPrice.Mul(decimal.NewFromInt(quantity)))
}

// Sum adds amounts and rounds the result to two places.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Round(total)
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(amount decimal.Decimal) bool {
	return amount.IsPositive()
}

// Cents converts an amount to an integer cent count, the unit payment
// gateways charge in.
func Cents(amount decimal.Decimal) int64 {
	return Round(amount).Mul(decimal.NewFromInt(100)).IntPart()
}

// FromCents converts gateway cents back to a two-place amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}
