package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUSDFromProviderString(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"123.4567", "123.46"},
		{"123.4512", "123.45"},
		{"150.005", "150.01"}, // half rounds up
		{"150.004", "150.00"},
		{"0.0001", "0.00"},
		{"178.72", "178.72"},
		{"178.7200", "178.72"},
		{"42", "42.00"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			m, err := USDFromProviderString(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.Amount.StringFixed(2))
			assert.Equal(t, CurrencyUSD, m.Currency)
		})
	}
}

func TestUSDFromProviderStringRejectsGarbage(t *testing.T) {
	_, err := USDFromProviderString("not-a-price")
	assert.Error(t, err)
}

func TestNewMoneyRejectsExcessPrecision(t *testing.T) {
	_, err := NewMoney(decimal.RequireFromString("10.123"), CurrencyUSD)
	assert.Error(t, err)

	m, err := NewMoney(decimal.RequireFromString("10.12"), CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, "10.12 USD", m.String())
}

func TestNewMoneyRequiresCurrency(t *testing.T) {
	_, err := NewMoney(decimal.NewFromInt(10), "")
	assert.Error(t, err)
}

func TestMoneyMulRoundsToCents(t *testing.T) {
	price, err := USD(decimal.RequireFromString("10.01"))
	require.NoError(t, err)

	total := price.Mul(decimal.RequireFromString("1.5"))
	assert.Equal(t, "15.02 USD", total.String())
}

func TestMoneyAddCurrencyMismatch(t *testing.T) {
	usd, _ := USD(decimal.NewFromInt(1))
	eur := Money{Amount: decimal.NewFromInt(1), Currency: "EUR"}
	_, err := usd.Add(eur)
	assert.Error(t, err)
}

func TestMoneyEqualComparesValueNotRepresentation(t *testing.T) {
	a := Money{Amount: decimal.RequireFromString("10.10"), Currency: CurrencyUSD}
	b := Money{Amount: decimal.RequireFromString("10.1"), Currency: CurrencyUSD}
	assert.True(t, a.Equal(b))
}
