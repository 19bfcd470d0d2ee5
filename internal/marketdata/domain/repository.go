package domain

import (
	"context"
	"time"
)

// PriceRepository is the durable tier: one row per (ticker, timestamp,
// source, interval) observation, kept indefinitely for history and
// backtesting.
type PriceRepository interface {
	// UpsertPrice inserts or overwrites the row for the point's uniqueness
	// key. It is idempotent; concurrent writers for the same historical day
	// are last-writer-wins, which is acceptable because closed-day values
	// are immutable.
	UpsertPrice(ctx context.Context, point *PricePoint) error
	// GetLatestPrice returns the most recent observation for the ticker, or
	// nil when none exists. maxAge > 0 filters out anything older.
	GetLatestPrice(ctx context.Context, ticker Ticker, maxAge time.Duration) (*PricePoint, error)
	// GetPriceAt returns the observation nearest to ts within the tolerance
	// window, or nil. Used for historical trade execution.
	GetPriceAt(ctx context.Context, ticker Ticker, ts time.Time, tolerance time.Duration) (*PricePoint, error)
	// GetPriceHistory returns observations in [start, end] for the interval,
	// in chronological order.
	GetPriceHistory(ctx context.Context, ticker Ticker, start, end time.Time, interval PriceInterval) ([]*PricePoint, error)
	// GetAllTickers enumerates tickers with any stored data.
	GetAllTickers(ctx context.Context) ([]Ticker, error)
}

// PriceCache is the fast tier, keyed per (ticker, interval, day). Misses are
// nil, not errors; a partial GetRange result is valid and expected.
type PriceCache interface {
	Get(ctx context.Context, ticker Ticker, interval PriceInterval, day time.Time) (*PricePoint, error)
	Set(ctx context.Context, ticker Ticker, interval PriceInterval, day time.Time, point *PricePoint, ttl time.Duration) error
	// GetRange issues one batched read for every day in days and returns
	// only the hits, keyed by the day (UTC midnight).
	GetRange(ctx context.Context, ticker Ticker, interval PriceInterval, days []time.Time) (map[time.Time]*PricePoint, error)
}

// RateLimiter gates outbound provider calls against per-minute and per-day
// quotas. Implementations never return errors: a backend failure reads as
// "no token", which callers treat as a back-off signal, not a fault.
type RateLimiter interface {
	// CanMakeRequest is a non-mutating check of both windows.
	CanMakeRequest(ctx context.Context) bool
	// ConsumeToken atomically takes one token from both windows, or neither.
	ConsumeToken(ctx context.Context) bool
	// MarkExhausted force-drains the minute window, used when the provider
	// itself signals throttling so we stop retrying within the window.
	MarkExhausted(ctx context.Context)
}

// WatchlistRepository persists watchlist entries. State transitions happen
// on the entity (MarkRefreshed, Deactivate); Save writes them back.
type WatchlistRepository interface {
	// Upsert inserts the entry or, on ticker conflict, updates priority,
	// interval and active flag while keeping the refresh history.
	Upsert(ctx context.Context, entry *WatchlistEntry) error
	GetByTicker(ctx context.Context, ticker Ticker) (*WatchlistEntry, error)
	ListActive(ctx context.Context) ([]*WatchlistEntry, error)
	// Save persists the mutable state of an existing entry.
	Save(ctx context.Context, entry *WatchlistEntry) error
}

// EventPublisher pushes market-data events (e.g. a watchlist refresh landing
// a new price) to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}
