// Package application exposes the market-data use cases consumed by the
// HTTP interface and the background scheduler.
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
)

// staleAfter is the staleness threshold surfaced to the UI, not a fetch
// policy. The adapter decides when to refetch; this only labels responses.
const staleAfter = 15 * time.Minute

// PriceDTO is the outward representation of a PricePoint. Source and IsStale
// let the UI distinguish fresh, cached and degraded data.
type PriceDTO struct {
	Ticker    string  `json:"ticker"`
	Price     string  `json:"price"`
	Currency  string  `json:"currency"`
	Timestamp string  `json:"timestamp"`
	Source    string  `json:"source"`
	Interval  string  `json:"interval"`
	IsStale   bool    `json:"is_stale"`
	Open      *string `json:"open,omitempty"`
	High      *string `json:"high,omitempty"`
	Low       *string `json:"low,omitempty"`
	Close     *string `json:"close,omitempty"`
}

// HistoryDTO wraps a history response, flagging ranges the tiered lookup
// could not fully satisfy.
type HistoryDTO struct {
	Ticker     string     `json:"ticker"`
	Interval   string     `json:"interval"`
	Points     []PriceDTO `json:"points"`
	Complete   bool       `json:"complete"`
	TradingDay int        `json:"trading_days_requested"`
}

// MarketDataService is the application facade over the market-data port.
type MarketDataService struct {
	port     domain.MarketDataPort
	calendar *domain.MarketCalendar
	now      func() time.Time
}

// NewMarketDataService builds the facade.
func NewMarketDataService(port domain.MarketDataPort, calendar *domain.MarketCalendar) *MarketDataService {
	return &MarketDataService{port: port, calendar: calendar, now: time.Now}
}

// GetCurrentPrice resolves the ticker and fetches its freshest price.
func (s *MarketDataService) GetCurrentPrice(ctx context.Context, symbol string) (*PriceDTO, error) {
	ticker, err := domain.NewTicker(symbol)
	if err != nil {
		return nil, err
	}
	point, err := s.port.GetCurrentPrice(ctx, ticker)
	if err != nil {
		return nil, err
	}
	dto := s.toDTO(point)
	return &dto, nil
}

// GetHistory fetches the available daily history for [start, end].
func (s *MarketDataService) GetHistory(ctx context.Context, symbol string, start, end time.Time, interval string) (*HistoryDTO, error) {
	ticker, err := domain.NewTicker(symbol)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s precedes start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	iv, err := domain.ParseInterval(interval)
	if err != nil {
		return nil, err
	}

	points, err := s.port.GetHistory(ctx, ticker, start, end, iv)
	if err != nil {
		return nil, err
	}

	tradingDays := len(s.calendar.TradingDaysInRange(start, end))
	dto := &HistoryDTO{
		Ticker:     ticker.Symbol(),
		Interval:   string(iv),
		Points:     make([]PriceDTO, 0, len(points)),
		Complete:   len(points) == tradingDays,
		TradingDay: tradingDays,
	}
	for _, p := range points {
		dto.Points = append(dto.Points, s.toDTO(p))
	}
	return dto, nil
}

// GetPriceAt serves historical execution lookups; nil means nothing close
// enough was stored.
func (s *MarketDataService) GetPriceAt(ctx context.Context, symbol string, ts time.Time) (*PriceDTO, error) {
	ticker, err := domain.NewTicker(symbol)
	if err != nil {
		return nil, err
	}
	if ts.After(s.now()) {
		return nil, fmt.Errorf("timestamp %s is in the future", ts.Format(time.RFC3339))
	}
	point, err := s.port.GetPriceAt(ctx, ticker, ts)
	if err != nil {
		return nil, err
	}
	if point == nil {
		return nil, nil
	}
	dto := s.toDTO(point)
	return &dto, nil
}

// GetBatchPrices prices many symbols, omitting the unpriceable ones. Invalid
// symbols are likewise omitted rather than failing the batch.
func (s *MarketDataService) GetBatchPrices(ctx context.Context, symbols []string) (map[string]PriceDTO, error) {
	tickers := make([]domain.Ticker, 0, len(symbols))
	for _, symbol := range symbols {
		ticker, err := domain.NewTicker(symbol)
		if err != nil {
			continue
		}
		tickers = append(tickers, ticker)
	}
	prices, err := s.port.GetBatchPrices(ctx, tickers)
	if err != nil {
		return nil, err
	}
	out := make(map[string]PriceDTO, len(prices))
	for ticker, point := range prices {
		out[ticker.Symbol()] = s.toDTO(point)
	}
	return out, nil
}

func (s *MarketDataService) toDTO(p *domain.PricePoint) PriceDTO {
	dto := PriceDTO{
		Ticker:    p.Ticker.Symbol(),
		Price:     p.Price.Amount.StringFixed(2),
		Currency:  p.Price.Currency,
		Timestamp: p.Timestamp.Format(time.RFC3339),
		Source:    string(p.Source),
		Interval:  string(p.Interval),
		IsStale:   p.IsStale(s.now().UTC(), staleAfter),
	}
	if p.OHLC != nil {
		open := p.OHLC.Open.Amount.StringFixed(2)
		high := p.OHLC.High.Amount.StringFixed(2)
		low := p.OHLC.Low.Amount.StringFixed(2)
		closing := p.OHLC.Close.Amount.StringFixed(2)
		dto.Open, dto.High, dto.Low, dto.Close = &open, &high, &low, &closing
	}
	return dto
}
