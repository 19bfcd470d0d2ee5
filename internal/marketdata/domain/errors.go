package domain

import (
	"errors"
	"fmt"
)

// TickerNotFoundError means the upstream provider confirmed the symbol does
// not exist. It is a stable fact: callers should not retry.
type TickerNotFoundError struct {
	Ticker Ticker
}

func (e *TickerNotFoundError) Error() string {
	return fmt.Sprintf("ticker %s not found by provider", e.Ticker)
}

// MarketDataUnavailableError means no data of any staleness could be
// obtained for the ticker: cache miss, durable miss, and the provider was
// rate-limited or unreachable. It is only raised when literally nothing has
// ever been observed.
type MarketDataUnavailableError struct {
	Ticker Ticker
	Reason string
}

func (e *MarketDataUnavailableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("no market data available for %s", e.Ticker)
	}
	return fmt.Sprintf("no market data available for %s: %s", e.Ticker, e.Reason)
}

// IsTickerNotFound reports whether err wraps a TickerNotFoundError.
func IsTickerNotFound(err error) bool {
	var target *TickerNotFoundError
	return errors.As(err, &target)
}

// IsMarketDataUnavailable reports whether err wraps a
// MarketDataUnavailableError.
func IsMarketDataUnavailable(err error) bool {
	var target *MarketDataUnavailableError
	return errors.As(err, &target)
}
