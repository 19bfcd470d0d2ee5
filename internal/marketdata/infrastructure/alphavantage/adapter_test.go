package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
	"github.com/zebutrade/papertrade/pkg/metrics"
)

// fixedNow is a Friday evening; the surrounding week Mar 11-15 2024 has no
// market holidays.
var fixedNow = time.Date(2024, time.March, 15, 20, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func dailyPoint(t *testing.T, symbol string, ts time.Time, price string) *domain.PricePoint {
	t.Helper()
	money, err := domain.USD(decimal.RequireFromString(price))
	require.NoError(t, err)
	point, err := domain.NewPricePoint(domain.MustTicker(symbol), money, ts, domain.SourceAPI, domain.Interval1Day)
	require.NoError(t, err)
	return point
}

func quotePoint(t *testing.T, symbol string, ts time.Time, price string) *domain.PricePoint {
	t.Helper()
	money, err := domain.USD(decimal.RequireFromString(price))
	require.NoError(t, err)
	point, err := domain.NewPricePoint(domain.MustTicker(symbol), money, ts, domain.SourceAPI, domain.IntervalRealTime)
	require.NoError(t, err)
	return point
}

type fakeCache struct {
	data       map[string]*domain.PricePoint
	getCalls   int
	rangeCalls int
	setCalls   int
	rangeErr   error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]*domain.PricePoint)}
}

func cacheKey(ticker domain.Ticker, interval domain.PriceInterval, d time.Time) string {
	return fmt.Sprintf("%s|%s|%s", ticker.Symbol(), interval, d.Format("2006-01-02"))
}

func (c *fakeCache) put(ticker domain.Ticker, interval domain.PriceInterval, d time.Time, p *domain.PricePoint) {
	c.data[cacheKey(ticker, interval, d)] = p
}

func (c *fakeCache) Get(ctx context.Context, ticker domain.Ticker, interval domain.PriceInterval, d time.Time) (*domain.PricePoint, error) {
	c.getCalls++
	return c.data[cacheKey(ticker, interval, d)], nil
}

func (c *fakeCache) Set(ctx context.Context, ticker domain.Ticker, interval domain.PriceInterval, d time.Time, p *domain.PricePoint, ttl time.Duration) error {
	c.setCalls++
	c.put(ticker, interval, d, p)
	return nil
}

func (c *fakeCache) GetRange(ctx context.Context, ticker domain.Ticker, interval domain.PriceInterval, days []time.Time) (map[time.Time]*domain.PricePoint, error) {
	c.rangeCalls++
	if c.rangeErr != nil {
		return nil, c.rangeErr
	}
	out := make(map[time.Time]*domain.PricePoint)
	for _, d := range days {
		if p, ok := c.data[cacheKey(ticker, interval, d)]; ok {
			out[d] = p
		}
	}
	return out, nil
}

type fakeRepo struct {
	fresh        map[domain.Ticker]*domain.PricePoint
	stale        map[domain.Ticker]*domain.PricePoint
	history      []*domain.PricePoint
	at           *domain.PricePoint
	upserts      []*domain.PricePoint
	historyCalls int
	latestCalls  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		fresh: make(map[domain.Ticker]*domain.PricePoint),
		stale: make(map[domain.Ticker]*domain.PricePoint),
	}
}

func (r *fakeRepo) UpsertPrice(ctx context.Context, point *domain.PricePoint) error {
	r.upserts = append(r.upserts, point)
	return nil
}

func (r *fakeRepo) GetLatestPrice(ctx context.Context, ticker domain.Ticker, maxAge time.Duration) (*domain.PricePoint, error) {
	r.latestCalls++
	if maxAge > 0 {
		return r.fresh[ticker], nil
	}
	return r.stale[ticker], nil
}

func (r *fakeRepo) GetPriceAt(ctx context.Context, ticker domain.Ticker, ts time.Time, tolerance time.Duration) (*domain.PricePoint, error) {
	return r.at, nil
}

func (r *fakeRepo) GetPriceHistory(ctx context.Context, ticker domain.Ticker, start, end time.Time, interval domain.PriceInterval) ([]*domain.PricePoint, error) {
	r.historyCalls++
	var out []*domain.PricePoint
	for _, p := range r.history {
		if p.Timestamp.Before(start) || p.Timestamp.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fakeRepo) GetAllTickers(ctx context.Context) ([]domain.Ticker, error) {
	return nil, nil
}

type fakeLimiter struct {
	allow     bool
	consumed  int
	exhausted bool
}

func (l *fakeLimiter) CanMakeRequest(ctx context.Context) bool { return l.allow }

func (l *fakeLimiter) ConsumeToken(ctx context.Context) bool {
	if !l.allow {
		return false
	}
	l.consumed++
	return true
}

func (l *fakeLimiter) MarkExhausted(ctx context.Context) { l.exhausted = true }

type fakeClient struct {
	quote       *domain.PricePoint
	quoteErr    error
	series      map[time.Time]*domain.PricePoint
	seriesErr   error
	quoteCalls  int
	seriesCalls int
	lastFull    bool
}

func (c *fakeClient) FetchQuote(ctx context.Context, ticker domain.Ticker) (*domain.PricePoint, error) {
	c.quoteCalls++
	return c.quote, c.quoteErr
}

func (c *fakeClient) FetchDailySeries(ctx context.Context, ticker domain.Ticker, full bool) (map[time.Time]*domain.PricePoint, error) {
	c.seriesCalls++
	c.lastFull = full
	if c.seriesErr != nil {
		return nil, c.seriesErr
	}
	return c.series, nil
}

func newTestAdapter(client SeriesClient, cache *fakeCache, repo *fakeRepo, limiter *fakeLimiter) *Adapter {
	a := NewAdapter(client, cache, repo, limiter, domain.NewMarketCalendar(), metrics.New("test"), Config{
		CacheTTL:           time.Hour,
		CurrentPriceMaxAge: 15 * time.Minute,
	})
	a.now = func() time.Time { return fixedNow }
	return a
}

var aapl = domain.MustTicker("AAPL")

func TestGetHistoryCacheCompleteSkipsLowerTiers(t *testing.T) {
	cache := newFakeCache()
	for d := 11; d <= 15; d++ {
		cache.put(aapl, domain.Interval1Day, day(d), dailyPoint(t, "AAPL", day(d), "170.00"))
	}
	repo := newFakeRepo()
	client := &fakeClient{}
	limiter := &fakeLimiter{allow: true}
	a := newTestAdapter(client, cache, repo, limiter)

	points, err := a.GetHistory(context.Background(), aapl, day(11), day(15), domain.Interval1Day)
	require.NoError(t, err)
	require.Len(t, points, 5)

	assert.Zero(t, repo.historyCalls, "durable tier must not be read when cache is complete")
	assert.Zero(t, client.seriesCalls, "provider must not be called when cache is complete")
	assert.Zero(t, limiter.consumed, "no token spent on a cache-complete range")
	for _, p := range points {
		assert.Equal(t, domain.SourceCache, p.Source)
	}
}

func TestGetHistoryDurableBackfillWritesThrough(t *testing.T) {
	cache := newFakeCache()
	for d := 11; d <= 13; d++ {
		cache.put(aapl, domain.Interval1Day, day(d), dailyPoint(t, "AAPL", day(d), "170.00"))
	}
	repo := newFakeRepo()
	repo.history = []*domain.PricePoint{
		dailyPoint(t, "AAPL", day(14), "171.00"),
		dailyPoint(t, "AAPL", day(15), "172.00"),
	}
	client := &fakeClient{}
	limiter := &fakeLimiter{allow: true}
	a := newTestAdapter(client, cache, repo, limiter)

	points, err := a.GetHistory(context.Background(), aapl, day(11), day(15), domain.Interval1Day)
	require.NoError(t, err)
	require.Len(t, points, 5)

	assert.Zero(t, client.seriesCalls, "durable tier covered the gap")
	assert.Equal(t, 2, cache.setCalls, "durable hits are written back into the cache")
	assert.Equal(t, domain.SourceDatabase, points[3].Source)
	assert.Equal(t, domain.SourceDatabase, points[4].Source)

	// Chronological order.
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i-1].Timestamp.Before(points[i].Timestamp))
	}
}

func TestGetHistoryFetchesOnlyMissingDays(t *testing.T) {
	cache := newFakeCache()
	repo := newFakeRepo()
	series := make(map[time.Time]*domain.PricePoint)
	for d := 11; d <= 15; d++ {
		series[day(d)] = dailyPoint(t, "AAPL", day(d), "170.00")
	}
	client := &fakeClient{series: series}
	limiter := &fakeLimiter{allow: true}
	a := newTestAdapter(client, cache, repo, limiter)

	points, err := a.GetHistory(context.Background(), aapl, day(11), day(15), domain.Interval1Day)
	require.NoError(t, err)
	require.Len(t, points, 5)

	assert.Equal(t, 1, client.seriesCalls, "one provider call covers the whole range")
	assert.Equal(t, 1, limiter.consumed)
	assert.False(t, client.lastFull, "a recent range uses compact output")
	assert.Len(t, repo.upserts, 5, "fetched bars are persisted")
	assert.Equal(t, 5, cache.setCalls, "fetched bars are cached per day")
}

func TestGetHistoryRateLimitedDegradesToPartial(t *testing.T) {
	cache := newFakeCache()
	for d := 11; d <= 13; d++ {
		cache.put(aapl, domain.Interval1Day, day(d), dailyPoint(t, "AAPL", day(d), "170.00"))
	}
	repo := newFakeRepo()
	client := &fakeClient{}
	limiter := &fakeLimiter{allow: false}
	a := newTestAdapter(client, cache, repo, limiter)

	points, err := a.GetHistory(context.Background(), aapl, day(11), day(15), domain.Interval1Day)
	require.NoError(t, err, "a rate-limit denial is not an error")
	assert.Len(t, points, 3, "the cached subset is served as-is")
	assert.Zero(t, client.seriesCalls)
}

func TestGetHistoryThrottledPinsLimiter(t *testing.T) {
	cache := newFakeCache()
	cache.put(aapl, domain.Interval1Day, day(11), dailyPoint(t, "AAPL", day(11), "170.00"))
	repo := newFakeRepo()
	client := &fakeClient{seriesErr: ErrThrottled}
	limiter := &fakeLimiter{allow: true}
	a := newTestAdapter(client, cache, repo, limiter)

	points, err := a.GetHistory(context.Background(), aapl, day(11), day(15), domain.Interval1Day)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.True(t, limiter.exhausted, "provider throttling pins the local window")
}

func TestGetHistoryUnknownTickerPropagatesOnlyWithoutData(t *testing.T) {
	notFound := &domain.TickerNotFoundError{Ticker: domain.MustTicker("ZZZZZ")}

	// Nothing cached, nothing stored: the provider's verdict stands.
	a := newTestAdapter(&fakeClient{seriesErr: notFound}, newFakeCache(), newFakeRepo(), &fakeLimiter{allow: true})
	_, err := a.GetHistory(context.Background(), domain.MustTicker("ZZZZZ"), day(11), day(15), domain.Interval1Day)
	assert.True(t, domain.IsTickerNotFound(err))

	// Real observations exist: degrade instead of trusting the verdict.
	cache := newFakeCache()
	cache.put(aapl, domain.Interval1Day, day(11), dailyPoint(t, "AAPL", day(11), "170.00"))
	a = newTestAdapter(&fakeClient{seriesErr: notFound}, cache, newFakeRepo(), &fakeLimiter{allow: true})
	points, err := a.GetHistory(context.Background(), aapl, day(11), day(15), domain.Interval1Day)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestGetHistoryTransientErrorDegrades(t *testing.T) {
	cache := newFakeCache()
	cache.put(aapl, domain.Interval1Day, day(11), dailyPoint(t, "AAPL", day(11), "170.00"))
	client := &fakeClient{seriesErr: &TransientError{Op: "request", Err: errors.New("connection reset")}}
	a := newTestAdapter(client, cache, newFakeRepo(), &fakeLimiter{allow: true})

	points, err := a.GetHistory(context.Background(), aapl, day(11), day(15), domain.Interval1Day)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestGetHistorySkipsNonTradingDays(t *testing.T) {
	cache := newFakeCache()
	repo := newFakeRepo()
	client := &fakeClient{}
	limiter := &fakeLimiter{allow: true}
	a := newTestAdapter(client, cache, repo, limiter)

	// Saturday through Sunday: no trading days at all.
	points, err := a.GetHistory(context.Background(), aapl, day(9), day(10), domain.Interval1Day)
	require.NoError(t, err)
	assert.Nil(t, points)
	assert.Zero(t, cache.rangeCalls, "an empty trading-day range touches no tier")

	// Friday plus the weekend: the single cached Friday makes the range
	// complete; the weekend is not a gap.
	cache.put(aapl, domain.Interval1Day, day(8), dailyPoint(t, "AAPL", day(8), "169.00"))
	points, err = a.GetHistory(context.Background(), aapl, day(8), day(10), domain.Interval1Day)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.Zero(t, client.seriesCalls)
}

func TestGetHistoryToleratesCacheFailure(t *testing.T) {
	cache := newFakeCache()
	cache.rangeErr = errors.New("redis down")
	repo := newFakeRepo()
	repo.history = []*domain.PricePoint{
		dailyPoint(t, "AAPL", day(11), "170.00"),
		dailyPoint(t, "AAPL", day(12), "170.50"),
		dailyPoint(t, "AAPL", day(13), "171.00"),
		dailyPoint(t, "AAPL", day(14), "171.50"),
		dailyPoint(t, "AAPL", day(15), "172.00"),
	}
	a := newTestAdapter(&fakeClient{}, cache, repo, &fakeLimiter{allow: true})

	points, err := a.GetHistory(context.Background(), aapl, day(11), day(15), domain.Interval1Day)
	require.NoError(t, err, "a cache outage degrades to the durable tier")
	assert.Len(t, points, 5)
}

func TestGetHistoryIgnoresRowsOutsideRequestedDays(t *testing.T) {
	cache := newFakeCache()
	repo := newFakeRepo()
	// Good Friday 2024 sits inside the queried bounds but is not a trading
	// day; a stray row on it must not appear in the result.
	thursday := time.Date(2024, time.March, 28, 0, 0, 0, 0, time.UTC)
	goodFriday := time.Date(2024, time.March, 29, 0, 0, 0, 0, time.UTC)
	monday := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	repo.history = []*domain.PricePoint{
		dailyPoint(t, "AAPL", thursday, "170.00"),
		dailyPoint(t, "AAPL", goodFriday, "168.00"),
	}
	client := &fakeClient{seriesErr: &TransientError{Op: "request", Err: errors.New("down")}}
	a := newTestAdapter(client, cache, repo, &fakeLimiter{allow: true})

	points, err := a.GetHistory(context.Background(), aapl, thursday, monday, domain.Interval1Day)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, thursday, points[0].Timestamp)
}

func TestGetHistoryMiddayBoundsStillHitDurableTier(t *testing.T) {
	cache := newFakeCache()
	repo := newFakeRepo()
	for d := 11; d <= 15; d++ {
		repo.history = append(repo.history, dailyPoint(t, "AAPL", day(d), "170.00"))
	}
	client := &fakeClient{}
	limiter := &fakeLimiter{allow: true}
	a := newTestAdapter(client, cache, repo, limiter)

	// Midnight-stamped bars must satisfy a request whose bounds fall midday.
	start := day(11).Add(14*time.Hour + 30*time.Minute)
	end := day(15).Add(16 * time.Hour)
	points, err := a.GetHistory(context.Background(), aapl, start, end, domain.Interval1Day)
	require.NoError(t, err)
	require.Len(t, points, 5)
	assert.Zero(t, client.seriesCalls, "the durable tier covers the whole range")
	assert.Zero(t, limiter.consumed)
}

func TestGetHistoryProviderMissingBarIsSkipped(t *testing.T) {
	series := make(map[time.Time]*domain.PricePoint)
	for d := 12; d <= 15; d++ { // no bar for the 11th (e.g. pre-listing)
		series[day(d)] = dailyPoint(t, "AAPL", day(d), "170.00")
	}
	a := newTestAdapter(&fakeClient{series: series}, newFakeCache(), newFakeRepo(), &fakeLimiter{allow: true})

	points, err := a.GetHistory(context.Background(), aapl, day(11), day(15), domain.Interval1Day)
	require.NoError(t, err)
	assert.Len(t, points, 4)
}

func TestGetHistoryOldRangeUsesFullSeries(t *testing.T) {
	client := &fakeClient{series: map[time.Time]*domain.PricePoint{}}
	a := newTestAdapter(client, newFakeCache(), newFakeRepo(), &fakeLimiter{allow: true})

	start := time.Date(2023, time.March, 13, 0, 0, 0, 0, time.UTC) // ~1 year before fixedNow
	end := time.Date(2023, time.March, 17, 0, 0, 0, 0, time.UTC)
	_, err := a.GetHistory(context.Background(), aapl, start, end, domain.Interval1Day)
	require.NoError(t, err)
	assert.True(t, client.lastFull, "a range beyond the compact window requests full output")
}

func TestGetHistoryNarrowerRangeReturnsExactSubset(t *testing.T) {
	cache := newFakeCache()
	for d := 11; d <= 15; d++ {
		cache.put(aapl, domain.Interval1Day, day(d), dailyPoint(t, "AAPL", day(d), "170.00"))
	}
	client := &fakeClient{}
	a := newTestAdapter(client, cache, newFakeRepo(), &fakeLimiter{allow: true})

	points, err := a.GetHistory(context.Background(), aapl, day(12), day(14), domain.Interval1Day)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, day(12), points[0].Timestamp)
	assert.Equal(t, day(14), points[2].Timestamp)
	assert.Zero(t, client.seriesCalls)
}

func TestGetCurrentPriceSecondRequestHitsCache(t *testing.T) {
	cache := newFakeCache()
	repo := newFakeRepo()
	client := &fakeClient{quote: quotePoint(t, "AAPL", fixedNow.Add(-time.Minute), "178.72")}
	limiter := &fakeLimiter{allow: true}
	a := newTestAdapter(client, cache, repo, limiter)

	first, err := a.GetCurrentPrice(context.Background(), aapl)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAPI, first.Source)

	second, err := a.GetCurrentPrice(context.Background(), aapl)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, second.Source)
	assert.True(t, first.Price.Equal(second.Price))
	assert.Equal(t, 1, client.quoteCalls, "the repeat request is a pure cache hit")
	assert.Equal(t, 1, limiter.consumed)
}

func TestGetCurrentPriceCacheHit(t *testing.T) {
	cache := newFakeCache()
	today := domain.DayOf(fixedNow)
	cache.put(aapl, domain.IntervalRealTime, today, quotePoint(t, "AAPL", fixedNow.Add(-5*time.Minute), "178.72"))
	repo := newFakeRepo()
	client := &fakeClient{}
	a := newTestAdapter(client, cache, repo, &fakeLimiter{allow: true})

	point, err := a.GetCurrentPrice(context.Background(), aapl)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, point.Source)
	assert.Zero(t, repo.latestCalls)
	assert.Zero(t, client.quoteCalls)
}

func TestGetCurrentPriceDurableHitBackfillsCache(t *testing.T) {
	cache := newFakeCache()
	repo := newFakeRepo()
	repo.fresh[aapl] = quotePoint(t, "AAPL", fixedNow.Add(-10*time.Minute), "178.72")
	client := &fakeClient{}
	a := newTestAdapter(client, cache, repo, &fakeLimiter{allow: true})

	point, err := a.GetCurrentPrice(context.Background(), aapl)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDatabase, point.Source)
	assert.Equal(t, 1, cache.setCalls, "durable hit is written back to the cache")
	assert.Zero(t, client.quoteCalls)
}

func TestGetCurrentPriceFetchesAndStores(t *testing.T) {
	cache := newFakeCache()
	repo := newFakeRepo()
	client := &fakeClient{quote: quotePoint(t, "AAPL", fixedNow.Add(-time.Minute), "178.72")}
	limiter := &fakeLimiter{allow: true}
	a := newTestAdapter(client, cache, repo, limiter)

	point, err := a.GetCurrentPrice(context.Background(), aapl)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAPI, point.Source)
	assert.Equal(t, 1, limiter.consumed)
	assert.Len(t, repo.upserts, 1, "fresh quote is persisted")
	assert.Equal(t, 1, cache.setCalls, "fresh quote is cached")
}

func TestGetCurrentPriceRateLimitedServesStale(t *testing.T) {
	repo := newFakeRepo()
	repo.stale[aapl] = quotePoint(t, "AAPL", fixedNow.Add(-48*time.Hour), "175.00")
	client := &fakeClient{}
	a := newTestAdapter(client, newFakeCache(), repo, &fakeLimiter{allow: false})

	point, err := a.GetCurrentPrice(context.Background(), aapl)
	require.NoError(t, err, "stale data beats no data")
	assert.Equal(t, domain.SourceDatabase, point.Source)
	assert.Equal(t, "175.00", point.Price.Amount.StringFixed(2))
	assert.Zero(t, client.quoteCalls)
}

func TestGetCurrentPriceUnavailableWhenNothingStored(t *testing.T) {
	a := newTestAdapter(&fakeClient{}, newFakeCache(), newFakeRepo(), &fakeLimiter{allow: false})

	_, err := a.GetCurrentPrice(context.Background(), aapl)
	assert.True(t, domain.IsMarketDataUnavailable(err))
}

func TestGetCurrentPriceThrottledFallsBackAndPins(t *testing.T) {
	repo := newFakeRepo()
	repo.stale[aapl] = quotePoint(t, "AAPL", fixedNow.Add(-24*time.Hour), "175.00")
	limiter := &fakeLimiter{allow: true}
	a := newTestAdapter(&fakeClient{quoteErr: ErrThrottled}, newFakeCache(), repo, limiter)

	point, err := a.GetCurrentPrice(context.Background(), aapl)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDatabase, point.Source)
	assert.True(t, limiter.exhausted)
}

func TestGetCurrentPriceUnknownTickerPropagates(t *testing.T) {
	client := &fakeClient{quoteErr: &domain.TickerNotFoundError{Ticker: domain.MustTicker("ZZZZZ")}}
	a := newTestAdapter(client, newFakeCache(), newFakeRepo(), &fakeLimiter{allow: true})

	_, err := a.GetCurrentPrice(context.Background(), domain.MustTicker("ZZZZZ"))
	assert.True(t, domain.IsTickerNotFound(err))
}

func TestGetPriceAtIsDurableOnly(t *testing.T) {
	repo := newFakeRepo()
	repo.at = dailyPoint(t, "AAPL", day(11), "170.00")
	client := &fakeClient{}
	a := newTestAdapter(client, newFakeCache(), repo, &fakeLimiter{allow: true})

	point, err := a.GetPriceAt(context.Background(), aapl, day(11).Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDatabase, point.Source)
	assert.Zero(t, client.quoteCalls)
	assert.Zero(t, client.seriesCalls)

	repo.at = nil
	point, err = a.GetPriceAt(context.Background(), aapl, day(11))
	require.NoError(t, err)
	assert.Nil(t, point, "a miss is nil, not an error")
}

func TestGetBatchPricesOmitsFailures(t *testing.T) {
	msft := domain.MustTicker("MSFT")
	repo := newFakeRepo()
	repo.fresh[aapl] = quotePoint(t, "AAPL", fixedNow.Add(-5*time.Minute), "178.72")
	// MSFT has nothing anywhere and the limiter denies the provider call.
	a := newTestAdapter(&fakeClient{}, newFakeCache(), repo, &fakeLimiter{allow: false})

	prices, err := a.GetBatchPrices(context.Background(), []domain.Ticker{aapl, msft})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Contains(t, prices, aapl)
	assert.NotContains(t, prices, msft)
}
