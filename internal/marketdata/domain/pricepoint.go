package domain

import (
	"fmt"
	"time"
)

// PriceSource records which tier an observation was served from.
type PriceSource string

const (
	SourceAPI      PriceSource = "api"
	SourceCache    PriceSource = "cache"
	SourceDatabase PriceSource = "database"
)

// PriceInterval is the observation granularity. Only Interval1Day flows
// through the tiered lookup today; the finer intervals are accepted by the
// key and schema layout so intraday support is an additive change.
type PriceInterval string

const (
	IntervalRealTime PriceInterval = "real-time"
	Interval1Day     PriceInterval = "1day"
	Interval1Hour    PriceInterval = "1hour"
	Interval5Min     PriceInterval = "5min"
	Interval1Min     PriceInterval = "1min"
)

// futureTolerance absorbs clock skew between us and the provider.
const futureTolerance = 5 * time.Minute

// OHLC carries the daily open/high/low/close summary when the provider
// supplies one.
type OHLC struct {
	Open  Money `json:"open"`
	High  Money `json:"high"`
	Low   Money `json:"low"`
	Close Money `json:"close"`
}

// PricePoint is a single observation of a ticker's price.
type PricePoint struct {
	Ticker    Ticker        `json:"ticker"`
	Price     Money         `json:"price"`
	Timestamp time.Time     `json:"timestamp"`
	Source    PriceSource   `json:"source"`
	Interval  PriceInterval `json:"interval"`
	OHLC      *OHLC         `json:"ohlc,omitempty"`
}

// NewPricePoint validates and builds a PricePoint. Timestamps are normalized
// to UTC; a timestamp more than a few minutes in the future is rejected.
func NewPricePoint(ticker Ticker, price Money, ts time.Time, source PriceSource, interval PriceInterval) (*PricePoint, error) {
	if ticker.IsZero() {
		return nil, fmt.Errorf("price point requires a ticker")
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("price for %s must be positive, got %s", ticker, price)
	}
	if ts.IsZero() {
		return nil, fmt.Errorf("price point for %s requires a timestamp", ticker)
	}
	ts = ts.UTC()
	if ts.After(time.Now().UTC().Add(futureTolerance)) {
		return nil, fmt.Errorf("price timestamp %s for %s is in the future", ts, ticker)
	}
	if err := validateSource(source); err != nil {
		return nil, err
	}
	if err := validateInterval(interval); err != nil {
		return nil, err
	}
	return &PricePoint{
		Ticker:    ticker,
		Price:     price,
		Timestamp: ts,
		Source:    source,
		Interval:  interval,
	}, nil
}

func validateSource(s PriceSource) error {
	switch s {
	case SourceAPI, SourceCache, SourceDatabase:
		return nil
	}
	return fmt.Errorf("unknown price source %q", s)
}

func validateInterval(i PriceInterval) error {
	switch i {
	case IntervalRealTime, Interval1Day, Interval1Hour, Interval5Min, Interval1Min:
		return nil
	}
	return fmt.Errorf("unknown price interval %q", i)
}

// ParseInterval validates a caller-supplied interval string before it can
// reach the tiered lookup and its quota. The empty string means daily.
func ParseInterval(s string) (PriceInterval, error) {
	if s == "" {
		return Interval1Day, nil
	}
	interval := PriceInterval(s)
	if err := validateInterval(interval); err != nil {
		return "", err
	}
	return interval, nil
}

// WithSource returns a copy tagged with the tier it was served from, so
// callers can distinguish fresh, cached and durable data.
func (p PricePoint) WithSource(source PriceSource) *PricePoint {
	p.Source = source
	return &p
}

// Day returns the UTC calendar day of the observation.
func (p *PricePoint) Day() time.Time { return DayOf(p.Timestamp) }

// IsStale reports whether the observation is older than maxAge relative to
// now. maxAge <= 0 means nothing is considered stale.
func (p *PricePoint) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(p.Timestamp) > maxAge
}

// DayOf truncates a timestamp to its UTC calendar day. All per-day cache and
// calendar logic operates on values normalized this way.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
