package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPrice(t *testing.T) Money {
	t.Helper()
	m, err := USD(decimal.RequireFromString("178.72"))
	require.NoError(t, err)
	return m
}

func TestNewPricePoint(t *testing.T) {
	ts := time.Now().Add(-time.Minute)
	p, err := NewPricePoint(MustTicker("AAPL"), validPrice(t), ts, SourceAPI, IntervalRealTime)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", p.Ticker.Symbol())
	assert.Equal(t, time.UTC, p.Timestamp.Location())
}

func TestNewPricePointRejections(t *testing.T) {
	price := validPrice(t)
	ts := time.Now().Add(-time.Minute)

	_, err := NewPricePoint(Ticker{}, price, ts, SourceAPI, IntervalRealTime)
	assert.Error(t, err, "zero ticker")

	zero, _ := NewMoney(decimal.Zero, CurrencyUSD)
	_, err = NewPricePoint(MustTicker("AAPL"), zero, ts, SourceAPI, IntervalRealTime)
	assert.Error(t, err, "non-positive price")

	_, err = NewPricePoint(MustTicker("AAPL"), price, time.Time{}, SourceAPI, IntervalRealTime)
	assert.Error(t, err, "zero timestamp")

	_, err = NewPricePoint(MustTicker("AAPL"), price, time.Now().Add(time.Hour), SourceAPI, IntervalRealTime)
	assert.Error(t, err, "future timestamp")

	_, err = NewPricePoint(MustTicker("AAPL"), price, ts, PriceSource("carrier-pigeon"), IntervalRealTime)
	assert.Error(t, err, "unknown source")

	_, err = NewPricePoint(MustTicker("AAPL"), price, ts, SourceAPI, PriceInterval("fortnightly"))
	assert.Error(t, err, "unknown interval")
}

func TestNewPricePointToleratesSmallClockSkew(t *testing.T) {
	_, err := NewPricePoint(MustTicker("AAPL"), validPrice(t), time.Now().Add(2*time.Minute), SourceAPI, IntervalRealTime)
	assert.NoError(t, err)
}

func TestWithSourceCopies(t *testing.T) {
	p, err := NewPricePoint(MustTicker("AAPL"), validPrice(t), time.Now().Add(-time.Minute), SourceAPI, IntervalRealTime)
	require.NoError(t, err)

	tagged := p.WithSource(SourceCache)
	assert.Equal(t, SourceCache, tagged.Source)
	assert.Equal(t, SourceAPI, p.Source)
}

func TestIsStale(t *testing.T) {
	now := time.Date(2024, time.March, 11, 16, 0, 0, 0, time.UTC)
	p := &PricePoint{Timestamp: now.Add(-20 * time.Minute)}

	assert.True(t, p.IsStale(now, 15*time.Minute))
	assert.False(t, p.IsStale(now, 30*time.Minute))
	assert.False(t, p.IsStale(now, 0), "maxAge<=0 disables staleness")
}

func TestParseInterval(t *testing.T) {
	interval, err := ParseInterval("")
	require.NoError(t, err)
	assert.Equal(t, Interval1Day, interval, "empty means daily")

	interval, err = ParseInterval("1hour")
	require.NoError(t, err)
	assert.Equal(t, Interval1Hour, interval)

	for _, bad := range []string{"1w", "daily", "60min", "Real-Time"} {
		_, err := ParseInterval(bad)
		assert.Error(t, err, "interval %q must be rejected", bad)
	}
}

func TestDayOf(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 22:00 EST on March 11 is 03:00 UTC on March 12.
	ts := time.Date(2024, time.March, 11, 22, 0, 0, 0, est)
	assert.Equal(t, time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC), DayOf(ts))
}
