package application

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
)

// Holding is one position to be valued.
type Holding struct {
	Ticker   domain.Ticker
	Quantity decimal.Decimal
}

// HoldingsProvider supplies the positions of an account. The portfolio
// service owning positions implements this; tests use a literal slice.
type HoldingsProvider interface {
	GetHoldings(ctx context.Context, accountID string) ([]Holding, error)
}

// PositionValueDTO is one valued position.
type PositionValueDTO struct {
	Ticker   string `json:"ticker"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`
	Value    string `json:"value"`
	Source   string `json:"source"`
	IsStale  bool   `json:"is_stale"`
}

// ValuationDTO is a whole-portfolio valuation. Unpriced lists positions the
// tiered lookup could not price; their value is excluded from TotalValue
// rather than guessed.
type ValuationDTO struct {
	AccountID  string             `json:"account_id"`
	TotalValue string             `json:"total_value"`
	Currency   string             `json:"currency"`
	Positions  []PositionValueDTO `json:"positions"`
	Unpriced   []string           `json:"unpriced,omitempty"`
}

// PortfolioValuationService marks portfolios to market using batch price
// lookups.
type PortfolioValuationService struct {
	holdings HoldingsProvider
	prices   *MarketDataService
	port     domain.MarketDataPort
}

// NewPortfolioValuationService builds the valuation facade.
func NewPortfolioValuationService(holdings HoldingsProvider, prices *MarketDataService, port domain.MarketDataPort) *PortfolioValuationService {
	return &PortfolioValuationService{holdings: holdings, prices: prices, port: port}
}

// ValueAccount prices every holding in one batch and sums what it could
// price. Positions without an obtainable price appear in Unpriced so the
// caller can flag the valuation as partial.
func (s *PortfolioValuationService) ValueAccount(ctx context.Context, accountID string) (*ValuationDTO, error) {
	holdings, err := s.holdings.GetHoldings(ctx, accountID)
	if err != nil {
		return nil, err
	}

	tickers := make([]domain.Ticker, 0, len(holdings))
	for _, h := range holdings {
		tickers = append(tickers, h.Ticker)
	}
	points, err := s.port.GetBatchPrices(ctx, tickers)
	if err != nil {
		return nil, err
	}

	out := &ValuationDTO{
		AccountID: accountID,
		Currency:  domain.CurrencyUSD,
		Positions: make([]PositionValueDTO, 0, len(holdings)),
	}
	total := decimal.Zero
	for _, h := range holdings {
		point, ok := points[h.Ticker]
		if !ok {
			out.Unpriced = append(out.Unpriced, h.Ticker.Symbol())
			continue
		}
		value := point.Price.Amount.Mul(h.Quantity)
		total = total.Add(value)
		out.Positions = append(out.Positions, PositionValueDTO{
			Ticker:   h.Ticker.Symbol(),
			Quantity: h.Quantity.String(),
			Price:    point.Price.Amount.StringFixed(2),
			Value:    value.StringFixed(2),
			Source:   string(point.Source),
			IsStale:  point.IsStale(s.prices.now().UTC(), staleAfter),
		})
	}
	out.TotalValue = total.StringFixed(2)
	return out, nil
}
