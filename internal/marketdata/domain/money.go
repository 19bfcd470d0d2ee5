package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyUSD is the only currency the paper-trading ledger settles in today.
const CurrencyUSD = "USD"

// Money is an amount paired with an ISO currency code. USD amounts carry at
// most two decimal places; constructing a Money from a higher-precision
// value is an error. Rounding of raw provider values happens at the edge
// (the provider client), never here.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney validates precision and builds a Money.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if currency == "" {
		return Money{}, fmt.Errorf("money requires a currency code")
	}
	if currency == CurrencyUSD && amount.Exponent() < -2 {
		return Money{}, fmt.Errorf("USD amount %s exceeds 2 decimal places", amount)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// USD builds a USD Money from an already-rounded decimal.
func USD(amount decimal.Decimal) (Money, error) {
	return NewMoney(amount, CurrencyUSD)
}

// USDFromProviderString parses a raw provider price string (which typically
// carries four or more decimal places) and rounds it half-up to cents before
// constructing the Money. This is the single conversion point between
// provider precision and the domain's 2-decimal invariant.
func USDFromProviderString(raw string) (Money, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Money{}, fmt.Errorf("parse provider price %q: %w", raw, err)
	}
	// decimal.Round rounds half away from zero; prices are positive, so this
	// is round-half-up ("150.005" -> "150.01").
	return NewMoney(d.Round(2), CurrencyUSD)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// Mul scales the amount by a quantity, keeping 2-decimal precision.
func (m Money) Mul(qty decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(qty).Round(2), Currency: m.Currency}
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Equal compares currency and numeric value.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}
