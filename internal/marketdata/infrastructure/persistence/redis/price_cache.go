// Package redis implements the fast cache tier with one key per
// (ticker, interval, day). Direct key gets and a pipelined MGET replace the
// scan-and-parse lookups a range-keyed layout would need.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
)

// PriceCache stores PricePoints in Redis under per-day keys.
type PriceCache struct {
	client redis.UniversalClient
	prefix string
}

// NewPriceCache builds the cache on a shared Redis client.
func NewPriceCache(client redis.UniversalClient) *PriceCache {
	return &PriceCache{client: client, prefix: "marketdata:price:"}
}

var _ domain.PriceCache = (*PriceCache)(nil)

// key builds "marketdata:price:{ticker}:{interval}:{day}". Intraday
// intervals extend the final segment with the time component, so finer
// granularities slot in without a new namespace.
func (c *PriceCache) key(ticker domain.Ticker, interval domain.PriceInterval, day time.Time) string {
	stamp := domain.DayOf(day).Format("2006-01-02")
	if interval != domain.Interval1Day && interval != domain.IntervalRealTime {
		stamp = day.UTC().Format("2006-01-02T15:04")
	}
	return fmt.Sprintf("%s%s:%s:%s", c.prefix, ticker.Symbol(), interval, stamp)
}

// Get returns the cached point for the day, or nil on a miss.
func (c *PriceCache) Get(ctx context.Context, ticker domain.Ticker, interval domain.PriceInterval, day time.Time) (*domain.PricePoint, error) {
	data, err := c.client.Get(ctx, c.key(ticker, interval, day)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return decodePoint(data)
}

// Set stores the point under its per-day key with a TTL.
func (c *PriceCache) Set(ctx context.Context, ticker domain.Ticker, interval domain.PriceInterval, day time.Time, point *domain.PricePoint, ttl time.Duration) error {
	if point == nil {
		return nil
	}
	data, err := json.Marshal(encodePoint(point))
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(ticker, interval, day), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// GetRange fetches all requested days in one MGET. Only hits appear in the
// result; missing days are simply absent, which callers expect.
func (c *PriceCache) GetRange(ctx context.Context, ticker domain.Ticker, interval domain.PriceInterval, days []time.Time) (map[time.Time]*domain.PricePoint, error) {
	if len(days) == 0 {
		return map[time.Time]*domain.PricePoint{}, nil
	}
	keys := make([]string, len(days))
	for i, day := range days {
		keys[i] = c.key(ticker, interval, day)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache mget: %w", err)
	}

	hits := make(map[time.Time]*domain.PricePoint, len(days))
	for i, raw := range vals {
		if raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		point, err := decodePoint([]byte(s))
		if err != nil {
			// A corrupt entry is a miss; it will be rewritten on the next
			// fill.
			continue
		}
		hits[domain.DayOf(days[i])] = point
	}
	return hits, nil
}

// cachedPoint is the wire form. The ticker symbol is stored flat because
// domain.Ticker keeps its field private.
type cachedPoint struct {
	Ticker    string       `json:"ticker"`
	Price     domain.Money `json:"price"`
	Timestamp time.Time    `json:"timestamp"`
	Source    string       `json:"source"`
	Interval  string       `json:"interval"`
	OHLC      *domain.OHLC `json:"ohlc,omitempty"`
}

func encodePoint(p *domain.PricePoint) cachedPoint {
	return cachedPoint{
		Ticker:    p.Ticker.Symbol(),
		Price:     p.Price,
		Timestamp: p.Timestamp,
		Source:    string(p.Source),
		Interval:  string(p.Interval),
		OHLC:      p.OHLC,
	}
}

func decodePoint(data []byte) (*domain.PricePoint, error) {
	var cp cachedPoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	ticker, err := domain.NewTicker(cp.Ticker)
	if err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	point := &domain.PricePoint{
		Ticker:    ticker,
		Price:     cp.Price,
		Timestamp: cp.Timestamp.UTC(),
		Source:    domain.PriceSource(cp.Source),
		Interval:  domain.PriceInterval(cp.Interval),
		OHLC:      cp.OHLC,
	}
	return point, nil
}
