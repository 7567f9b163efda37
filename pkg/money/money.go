// Package money holds the rounding and revenue-split rules shared by the ledger.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Places is the number of minor-unit digits every stored amount carries.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round2 rounds half-up to two decimal places. Amounts handled by the ledger
// are never negative when they reach this function, so shopspring's
// half-away-from-zero rounding is half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Parse reads a decimal amount such as "100.33".
func Parse(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Split is the result of dividing one captured amount between seller and platform.
type Split struct {
	Amount       decimal.Decimal
	SellerAmount decimal.Decimal
	PlatformFee  decimal.Decimal
}

// FeeRate converts a percentage such as "15" into a fraction.
func FeeRate(percent string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(percent)
	if err != nil {
		return decimal.Zero, err
	}
	if p.IsNegative() || p.GreaterThan(hundred) {
		return decimal.Zero, errors.New("fee percent must be between 0 and 100")
	}
	return p.Div(hundred), nil
}

// SplitAmount divides amount by feeRate. The seller share is rounded on its
// own and the platform fee is whatever remains, so the two shares always sum
// to the (rounded) input.
func SplitAmount(amount, feeRate decimal.Decimal) Split {
	amount = Round2(amount)
	seller := Round2(amount.Mul(decimal.NewFromInt(1).Sub(feeRate)))
	return Split{
		Amount:       amount,
		SellerAmount: seller,
		PlatformFee:  amount.Sub(seller),
	}
}
