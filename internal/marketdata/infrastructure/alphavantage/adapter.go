package alphavantage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
	"github.com/zebutrade/papertrade/pkg/logger"
	"github.com/zebutrade/papertrade/pkg/metrics"
)

// SeriesClient is the seam between the adapter and the raw provider client,
// substituted with a fake in tests.
type SeriesClient interface {
	FetchQuote(ctx context.Context, ticker domain.Ticker) (*domain.PricePoint, error)
	FetchDailySeries(ctx context.Context, ticker domain.Ticker, full bool) (map[time.Time]*domain.PricePoint, error)
}

// priceAtTolerance bounds how far GetPriceAt may reach for the nearest
// observation; price feeds are not continuous.
const priceAtTolerance = time.Hour

// compactSeriesDays is roughly how far back the provider's compact output
// reaches (100 trading days with margin for weekends and holidays).
const compactSeriesDays = 140

// Config tunes the adapter's freshness policy.
type Config struct {
	// CacheTTL is the fast-tier TTL for per-day entries.
	CacheTTL time.Duration
	// CurrentPriceMaxAge is how old a durable observation may be and still
	// satisfy GetCurrentPrice without a provider call.
	CurrentPriceMaxAge time.Duration
}

// Adapter implements domain.MarketDataPort with the tiered lookup: fast
// cache, then durable store, then the rate-limited provider, degrading to
// whatever was found when the provider is off the table.
type Adapter struct {
	client   SeriesClient
	cache    domain.PriceCache
	repo     domain.PriceRepository
	limiter  domain.RateLimiter
	calendar *domain.MarketCalendar
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
}

// NewAdapter wires the collaborators. All of them are shared references
// owned by the caller; the adapter holds no persistent state of its own.
func NewAdapter(
	client SeriesClient,
	cache domain.PriceCache,
	repo domain.PriceRepository,
	limiter domain.RateLimiter,
	calendar *domain.MarketCalendar,
	m *metrics.Metrics,
	cfg Config,
) *Adapter {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.CurrentPriceMaxAge <= 0 {
		cfg.CurrentPriceMaxAge = 15 * time.Minute
	}
	return &Adapter{
		client:   client,
		cache:    cache,
		repo:     repo,
		limiter:  limiter,
		calendar: calendar,
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
	}
}

var _ domain.MarketDataPort = (*Adapter)(nil)

// GetHistory returns the available subset of [start, end]. The result may be
// partial or empty; it is never an error to be missing days the provider
// could not be asked for.
func (a *Adapter) GetHistory(ctx context.Context, ticker domain.Ticker, start, end time.Time, interval domain.PriceInterval) ([]*domain.PricePoint, error) {
	defer a.observeDuration(a.now())

	tradingDays := a.calendar.TradingDaysInRange(start, end)
	if len(tradingDays) == 0 {
		return nil, nil
	}

	found := make(map[time.Time]*domain.PricePoint, len(tradingDays))

	// Tier 1: one batched cache read for the whole range.
	cached, err := a.cache.GetRange(ctx, ticker, interval, tradingDays)
	if err != nil {
		// A cache failure is a miss, not a fault.
		logger.Warn(ctx, "price cache range read failed", "ticker", ticker, "error", err)
	}
	for day, point := range cached {
		found[day] = point.WithSource(domain.SourceCache)
		a.metrics.TierHits.WithLabelValues("cache").Inc()
	}

	// Tier 2: durable store for the days the cache missed, with
	// write-through back into the cache.
	if len(found) < len(tradingDays) {
		wanted := make(map[time.Time]bool, len(tradingDays))
		for _, day := range tradingDays {
			wanted[day] = true
		}
		// Bars are midnight-stamped, so query whole trading days rather
		// than the caller's raw bounds; a midday start must not exclude
		// that day's bar.
		first := tradingDays[0]
		last := tradingDays[len(tradingDays)-1].Add(24*time.Hour - time.Nanosecond)
		stored, err := a.repo.GetPriceHistory(ctx, ticker, first, last, interval)
		if err != nil {
			logger.Warn(ctx, "durable price read failed", "ticker", ticker, "error", err)
		}
		for _, point := range stored {
			day := point.Day()
			if _, ok := found[day]; ok || !wanted[day] {
				continue
			}
			found[day] = point.WithSource(domain.SourceDatabase)
			a.metrics.TierHits.WithLabelValues("database").Inc()
			if err := a.cache.Set(ctx, ticker, interval, day, point, a.cfg.CacheTTL); err != nil {
				logger.Warn(ctx, "cache backfill failed", "ticker", ticker, "day", day, "error", err)
			}
		}
	}

	missing := missingDays(tradingDays, found)
	if len(missing) == 0 {
		// Cache-complete: every trading day accounted for, no provider call.
		return sortedPoints(found), nil
	}

	// Tier 3: the provider, but only with a token in hand.
	if !a.limiter.CanMakeRequest(ctx) || !a.limiter.ConsumeToken(ctx) {
		a.metrics.RateLimitDenials.Inc()
		return a.degradeHistory(ctx, ticker, found, missing, "rate limited"), nil
	}

	a.metrics.ProviderCalls.Inc()
	series, err := a.client.FetchDailySeries(ctx, ticker, a.needsFullSeries(missing))
	if err != nil {
		return a.historyFetchFallback(ctx, ticker, found, missing, err)
	}

	for _, day := range missing {
		point, ok := series[day]
		if !ok {
			// The provider has no bar for this day (e.g. pre-listing).
			continue
		}
		if err := a.repo.UpsertPrice(ctx, point); err != nil {
			logger.Warn(ctx, "durable price write failed", "ticker", ticker, "day", day, "error", err)
		}
		if err := a.cache.Set(ctx, ticker, interval, day, point, a.cfg.CacheTTL); err != nil {
			logger.Warn(ctx, "cache write failed", "ticker", ticker, "day", day, "error", err)
		}
		found[day] = point
	}
	return sortedPoints(found), nil
}

// historyFetchFallback decides what a failed provider fetch means for the
// caller: a confirmed unknown ticker propagates (when nothing contradicts
// it), everything else degrades to the partial result.
func (a *Adapter) historyFetchFallback(ctx context.Context, ticker domain.Ticker, found map[time.Time]*domain.PricePoint, missing []time.Time, err error) ([]*domain.PricePoint, error) {
	switch {
	case domain.IsTickerNotFound(err):
		a.metrics.ProviderErrors.WithLabelValues("not_found").Inc()
		if len(found) == 0 {
			return nil, err
		}
		// We hold real observations for this ticker, so trust them over a
		// transient provider hiccup dressed up as not-found.
		return a.degradeHistory(ctx, ticker, found, missing, "provider reported unknown ticker"), nil
	case errors.Is(err, ErrThrottled):
		a.metrics.ProviderErrors.WithLabelValues("throttled").Inc()
		a.limiter.MarkExhausted(ctx)
		return a.degradeHistory(ctx, ticker, found, missing, "provider throttled"), nil
	default:
		a.metrics.ProviderErrors.WithLabelValues("network").Inc()
		return a.degradeHistory(ctx, ticker, found, missing, err.Error()), nil
	}
}

// degradeHistory returns the partial result and records the degradation.
func (a *Adapter) degradeHistory(ctx context.Context, ticker domain.Ticker, found map[time.Time]*domain.PricePoint, missing []time.Time, reason string) []*domain.PricePoint {
	a.metrics.DegradedResponses.Inc()
	logger.Warn(ctx, "serving partial price history",
		"ticker", ticker,
		"available_days", len(found),
		"missing_days", len(missing),
		"reason", reason,
	)
	return sortedPoints(found)
}

// GetCurrentPrice is the tiered lookup collapsed to a single day.
func (a *Adapter) GetCurrentPrice(ctx context.Context, ticker domain.Ticker) (*domain.PricePoint, error) {
	defer a.observeDuration(a.now())

	now := a.now().UTC()
	today := domain.DayOf(now)

	// Tier 1: today's quote slot in the fast cache.
	if point, err := a.cache.Get(ctx, ticker, domain.IntervalRealTime, today); err != nil {
		logger.Warn(ctx, "price cache read failed", "ticker", ticker, "error", err)
	} else if point != nil {
		a.metrics.TierHits.WithLabelValues("cache").Inc()
		return point.WithSource(domain.SourceCache), nil
	}

	// Tier 2: a fresh-enough durable observation.
	if point, err := a.repo.GetLatestPrice(ctx, ticker, a.cfg.CurrentPriceMaxAge); err != nil {
		logger.Warn(ctx, "durable price read failed", "ticker", ticker, "error", err)
	} else if point != nil {
		a.metrics.TierHits.WithLabelValues("database").Inc()
		if err := a.cache.Set(ctx, ticker, domain.IntervalRealTime, today, point, a.cfg.CacheTTL); err != nil {
			logger.Warn(ctx, "cache backfill failed", "ticker", ticker, "error", err)
		}
		return point.WithSource(domain.SourceDatabase), nil
	}

	// Tier 3: the provider, if the quota allows.
	if !a.limiter.CanMakeRequest(ctx) || !a.limiter.ConsumeToken(ctx) {
		a.metrics.RateLimitDenials.Inc()
		return a.stalePriceFallback(ctx, ticker, "rate limited")
	}

	a.metrics.ProviderCalls.Inc()
	point, err := a.client.FetchQuote(ctx, ticker)
	if err != nil {
		switch {
		case domain.IsTickerNotFound(err):
			a.metrics.ProviderErrors.WithLabelValues("not_found").Inc()
			return nil, err
		case errors.Is(err, ErrThrottled):
			a.metrics.ProviderErrors.WithLabelValues("throttled").Inc()
			a.limiter.MarkExhausted(ctx)
			return a.stalePriceFallback(ctx, ticker, "provider throttled")
		default:
			a.metrics.ProviderErrors.WithLabelValues("network").Inc()
			return a.stalePriceFallback(ctx, ticker, err.Error())
		}
	}

	if err := a.repo.UpsertPrice(ctx, point); err != nil {
		logger.Warn(ctx, "durable price write failed", "ticker", ticker, "error", err)
	}
	if err := a.cache.Set(ctx, ticker, domain.IntervalRealTime, today, point, a.cfg.CacheTTL); err != nil {
		logger.Warn(ctx, "cache write failed", "ticker", ticker, "error", err)
	}
	a.metrics.TierHits.WithLabelValues("api").Inc()
	return point, nil
}

// stalePriceFallback serves the newest durable observation of any age, and
// only errors when the ticker has never been observed at all.
func (a *Adapter) stalePriceFallback(ctx context.Context, ticker domain.Ticker, reason string) (*domain.PricePoint, error) {
	point, err := a.repo.GetLatestPrice(ctx, ticker, 0)
	if err != nil {
		logger.Warn(ctx, "durable price read failed", "ticker", ticker, "error", err)
	}
	if point == nil {
		return nil, &domain.MarketDataUnavailableError{Ticker: ticker, Reason: reason}
	}
	a.metrics.DegradedResponses.Inc()
	logger.Warn(ctx, "serving stale price",
		"ticker", ticker,
		"observed_at", point.Timestamp,
		"reason", reason,
	)
	return point.WithSource(domain.SourceDatabase), nil
}

// GetPriceAt serves backtest execution from the durable tier only; there is
// no point spending provider quota on past instants that either are stored
// or are gone.
func (a *Adapter) GetPriceAt(ctx context.Context, ticker domain.Ticker, ts time.Time) (*domain.PricePoint, error) {
	point, err := a.repo.GetPriceAt(ctx, ticker, ts, priceAtTolerance)
	if err != nil {
		return nil, err
	}
	if point == nil {
		return nil, nil
	}
	return point.WithSource(domain.SourceDatabase), nil
}

// GetBatchPrices prices each ticker independently and omits the ones that
// fail. Callers treat a missing key as "unavailable for this one".
func (a *Adapter) GetBatchPrices(ctx context.Context, tickers []domain.Ticker) (map[domain.Ticker]*domain.PricePoint, error) {
	results := make(map[domain.Ticker]*domain.PricePoint, len(tickers))
	for _, ticker := range tickers {
		point, err := a.GetCurrentPrice(ctx, ticker)
		if err != nil {
			logger.Debug(ctx, "batch price omitted", "ticker", ticker, "error", err)
			continue
		}
		results[ticker] = point
	}
	return results, nil
}

// needsFullSeries decides between the provider's compact and full output
// based on how far back the oldest missing day reaches.
func (a *Adapter) needsFullSeries(missing []time.Time) bool {
	if len(missing) == 0 {
		return false
	}
	oldest := missing[0]
	return a.now().UTC().Sub(oldest) > compactSeriesDays*24*time.Hour
}

func (a *Adapter) observeDuration(start time.Time) {
	a.metrics.LookupDuration.Observe(time.Since(start).Seconds())
}

// missingDays returns the trading days without an observation, oldest first.
func missingDays(tradingDays []time.Time, found map[time.Time]*domain.PricePoint) []time.Time {
	var missing []time.Time
	for _, day := range tradingDays {
		if _, ok := found[day]; !ok {
			missing = append(missing, day)
		}
	}
	return missing
}

// sortedPoints flattens the day map in chronological order.
func sortedPoints(found map[time.Time]*domain.PricePoint) []*domain.PricePoint {
	points := make([]*domain.PricePoint, 0, len(found))
	for _, p := range found {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}
