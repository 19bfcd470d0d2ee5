package domain

import (
	"context"
	"time"
)

// MarketDataPort is what the rest of the application depends on for prices.
// Implementations coordinate the cache tiers and the rate-limited provider,
// preferring stale or partial data over failure.
type MarketDataPort interface {
	// GetCurrentPrice returns the freshest obtainable price. It fails with
	// *TickerNotFoundError when the provider confirms the symbol is unknown,
	// and with *MarketDataUnavailableError only when no observation of any
	// staleness exists.
	GetCurrentPrice(ctx context.Context, ticker Ticker) (*PricePoint, error)
	// GetPriceAt returns the observation nearest ts, or nil when none is
	// close enough. Never called for future instants.
	GetPriceAt(ctx context.Context, ticker Ticker, ts time.Time) (*PricePoint, error)
	// GetHistory returns whatever subset of [start, end] is available, in
	// chronological order. Partial availability is not an error; the result
	// may be empty.
	GetHistory(ctx context.Context, ticker Ticker, start, end time.Time, interval PriceInterval) ([]*PricePoint, error)
	// GetBatchPrices never fails: tickers that cannot be priced are omitted
	// from the result map.
	GetBatchPrices(ctx context.Context, tickers []Ticker) (map[Ticker]*PricePoint, error)
}
