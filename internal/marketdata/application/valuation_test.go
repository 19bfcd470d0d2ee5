package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
)

type staticHoldings []Holding

func (h staticHoldings) GetHoldings(ctx context.Context, accountID string) ([]Holding, error) {
	return h, nil
}

func TestValueAccountSumsAndFlagsUnpriced(t *testing.T) {
	port := newFakePort()
	port.current[domain.MustTicker("AAPL")] = point(t, "AAPL", testNow.Add(-time.Minute), "100.00", domain.SourceCache)
	port.current[domain.MustTicker("MSFT")] = point(t, "MSFT", testNow.Add(-time.Minute), "400.00", domain.SourceAPI)

	holdings := staticHoldings{
		{Ticker: domain.MustTicker("AAPL"), Quantity: decimal.RequireFromString("2")},
		{Ticker: domain.MustTicker("MSFT"), Quantity: decimal.RequireFromString("0.5")},
		{Ticker: domain.MustTicker("GOOG"), Quantity: decimal.RequireFromString("1")}, // unpriceable
	}
	prices := newTestService(port)
	s := NewPortfolioValuationService(holdings, prices, port)

	dto, err := s.ValueAccount(context.Background(), "acct-1")
	require.NoError(t, err)

	// 2*100 + 0.5*400, GOOG excluded rather than guessed.
	assert.Equal(t, "400.00", dto.TotalValue)
	assert.Equal(t, []string{"GOOG"}, dto.Unpriced)
	require.Len(t, dto.Positions, 2)
	assert.Equal(t, "USD", dto.Currency)
}

func TestValueAccountEmptyPortfolio(t *testing.T) {
	port := newFakePort()
	s := NewPortfolioValuationService(staticHoldings{}, newTestService(port), port)

	dto, err := s.ValueAccount(context.Background(), "acct-2")
	require.NoError(t, err)
	assert.Equal(t, "0.00", dto.TotalValue)
	assert.Empty(t, dto.Positions)
	assert.Empty(t, dto.Unpriced)
}
