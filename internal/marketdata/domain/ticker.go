// Package domain holds the market-data service's entities, value objects,
// domain services and repository ports.
package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// tickerPattern covers US symbols (1-5 uppercase letters) with an optional
// exchange suffix for international listings, e.g. "SHOP.TRT".
var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z]{1,4})?$`)

// Ticker is a normalized stock symbol. It is a comparable value type and is
// used directly as a map and cache key.
type Ticker struct {
	symbol string
}

// NewTicker normalizes and validates a raw symbol.
func NewTicker(raw string) (Ticker, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if !tickerPattern.MatchString(symbol) {
		return Ticker{}, fmt.Errorf("invalid ticker symbol %q", raw)
	}
	return Ticker{symbol: symbol}, nil
}

// MustTicker is a constructor for symbols known to be valid at compile time.
// It panics on invalid input and is intended for tests and fixtures.
func MustTicker(raw string) Ticker {
	t, err := NewTicker(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Symbol returns the normalized symbol string.
func (t Ticker) Symbol() string { return t.symbol }

// IsZero reports whether the ticker is the zero value.
func (t Ticker) IsZero() bool { return t.symbol == "" }

func (t Ticker) String() string { return t.symbol }
