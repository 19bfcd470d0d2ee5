package application

import (
	"context"
	"time"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
	"github.com/zebutrade/papertrade/pkg/logger"
	"github.com/zebutrade/papertrade/pkg/metrics"
)

// WatchlistEntryDTO is the outward representation of a watchlist entry.
type WatchlistEntryDTO struct {
	Ticker          string `json:"ticker"`
	Priority        int    `json:"priority"`
	RefreshMinutes  int    `json:"refresh_minutes"`
	LastRefreshedAt string `json:"last_refreshed_at,omitempty"`
	IsActive        bool   `json:"is_active"`
}

// PriceRefreshedEvent is published after each successful background refresh.
type PriceRefreshedEvent struct {
	Ticker      string `json:"ticker"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Source      string `json:"source"`
	RefreshedAt string `json:"refreshed_at"`
}

// WatchlistService manages refresh subscriptions and runs the periodic sweep
// that keeps watched tickers warm.
type WatchlistService struct {
	repo            domain.WatchlistRepository
	port            domain.MarketDataPort
	publisher       domain.EventPublisher
	metrics         *metrics.Metrics
	topic           string
	defaultInterval time.Duration
	now             func() time.Time
}

// NewWatchlistService builds the service. defaultInterval applies to entries
// added without an explicit refresh interval.
func NewWatchlistService(
	repo domain.WatchlistRepository,
	port domain.MarketDataPort,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	topic string,
	defaultInterval time.Duration,
) *WatchlistService {
	return &WatchlistService{
		repo:            repo,
		port:            port,
		publisher:       publisher,
		metrics:         m,
		topic:           topic,
		defaultInterval: defaultInterval,
		now:             time.Now,
	}
}

// Add subscribes a ticker for background refreshing. Re-adding an existing
// ticker reactivates it and updates priority and interval.
func (s *WatchlistService) Add(ctx context.Context, symbol string, priority int, refreshInterval time.Duration) (*WatchlistEntryDTO, error) {
	ticker, err := domain.NewTicker(symbol)
	if err != nil {
		return nil, err
	}
	if refreshInterval <= 0 {
		refreshInterval = s.defaultInterval
	}
	entry, err := domain.NewWatchlistEntry(ticker, priority, refreshInterval)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	dto := toWatchlistDTO(entry)
	return &dto, nil
}

// Deactivate removes a ticker from the refresh rotation.
func (s *WatchlistService) Deactivate(ctx context.Context, symbol string) error {
	ticker, err := domain.NewTicker(symbol)
	if err != nil {
		return err
	}
	existing, err := s.repo.GetByTicker(ctx, ticker)
	if err != nil {
		return err
	}
	if existing == nil {
		return &domain.TickerNotFoundError{Ticker: ticker}
	}
	existing.Deactivate()
	return s.repo.Save(ctx, existing)
}

// List returns the active watchlist, highest priority first.
func (s *WatchlistService) List(ctx context.Context) ([]WatchlistEntryDTO, error) {
	entries, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]WatchlistEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toWatchlistDTO(e))
	}
	return out, nil
}

// RefreshDue refreshes every entry whose interval has elapsed, in priority
// order. One failing ticker does not stop the sweep; provider quota denials
// surface as skipped entries in the next sweep. Returns the refreshed count.
func (s *WatchlistService) RefreshDue(ctx context.Context) (int, error) {
	entries, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	refreshed := 0
	for _, entry := range entries {
		if !entry.IsDue(now) {
			continue
		}
		point, err := s.port.GetCurrentPrice(ctx, entry.Ticker)
		if err != nil {
			s.metrics.WatchlistRefreshes.WithLabelValues("error").Inc()
			logger.Warn(ctx, "watchlist refresh failed",
				"ticker", entry.Ticker.Symbol(), "error", err)
			continue
		}

		entry.MarkRefreshed(now)
		if err := s.repo.Save(ctx, entry); err != nil {
			logger.Warn(ctx, "failed to record watchlist refresh",
				"ticker", entry.Ticker.Symbol(), "error", err)
		}
		s.publishRefresh(ctx, point, now)
		s.metrics.WatchlistRefreshes.WithLabelValues("ok").Inc()
		refreshed++
	}

	if refreshed > 0 {
		logger.Info(ctx, "watchlist sweep complete",
			"refreshed", refreshed, "active", len(entries))
	}
	return refreshed, nil
}

func (s *WatchlistService) publishRefresh(ctx context.Context, point *domain.PricePoint, at time.Time) {
	event := PriceRefreshedEvent{
		Ticker:      point.Ticker.Symbol(),
		Price:       point.Price.Amount.StringFixed(2),
		Currency:    point.Price.Currency,
		Source:      string(point.Source),
		RefreshedAt: at.Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, s.topic, event.Ticker, event); err != nil {
		// The refresh itself succeeded; losing the event is tolerable.
		logger.Warn(ctx, "failed to publish price refresh event",
			"ticker", event.Ticker, "error", err)
	}
}

func toWatchlistDTO(e *domain.WatchlistEntry) WatchlistEntryDTO {
	dto := WatchlistEntryDTO{
		Ticker:         e.Ticker.Symbol(),
		Priority:       e.Priority,
		RefreshMinutes: int(e.RefreshInterval / time.Minute),
		IsActive:       e.IsActive,
	}
	if !e.LastRefreshedAt.IsZero() {
		dto.LastRefreshedAt = e.LastRefreshedAt.Format(time.RFC3339)
	}
	return dto
}
