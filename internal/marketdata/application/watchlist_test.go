package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
	"github.com/zebutrade/papertrade/pkg/metrics"
)

type fakeWatchlistRepo struct {
	entries map[domain.Ticker]*domain.WatchlistEntry
}

func newFakeWatchlistRepo() *fakeWatchlistRepo {
	return &fakeWatchlistRepo{entries: make(map[domain.Ticker]*domain.WatchlistEntry)}
}

func (r *fakeWatchlistRepo) Upsert(ctx context.Context, entry *domain.WatchlistEntry) error {
	copied := *entry
	r.entries[entry.Ticker] = &copied
	return nil
}

func (r *fakeWatchlistRepo) GetByTicker(ctx context.Context, ticker domain.Ticker) (*domain.WatchlistEntry, error) {
	return r.entries[ticker], nil
}

func (r *fakeWatchlistRepo) ListActive(ctx context.Context) ([]*domain.WatchlistEntry, error) {
	var out []*domain.WatchlistEntry
	for _, e := range r.entries {
		if e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeWatchlistRepo) Save(ctx context.Context, entry *domain.WatchlistEntry) error {
	if _, ok := r.entries[entry.Ticker]; !ok {
		return nil
	}
	copied := *entry
	r.entries[entry.Ticker] = &copied
	return nil
}

type recordingPublisher struct {
	topics []string
	keys   []string
	events []any
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return nil
}

func newTestWatchlistService(repo domain.WatchlistRepository, port domain.MarketDataPort, pub domain.EventPublisher) *WatchlistService {
	s := NewWatchlistService(repo, port, pub, metrics.New("test"), "marketdata.price.refreshed", 30*time.Minute)
	s.now = func() time.Time { return testNow }
	return s
}

func TestWatchlistAddDefaultsInterval(t *testing.T) {
	repo := newFakeWatchlistRepo()
	s := newTestWatchlistService(repo, newFakePort(), &recordingPublisher{})

	dto, err := s.Add(context.Background(), "aapl", 5, 0)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", dto.Ticker)
	assert.Equal(t, 30, dto.RefreshMinutes)
	assert.True(t, dto.IsActive)
}

func TestWatchlistAddInvalidTicker(t *testing.T) {
	s := newTestWatchlistService(newFakeWatchlistRepo(), newFakePort(), &recordingPublisher{})
	_, err := s.Add(context.Background(), "not a ticker", 0, time.Minute)
	assert.Error(t, err)
}

func TestWatchlistDeactivateUnknownTicker(t *testing.T) {
	s := newTestWatchlistService(newFakeWatchlistRepo(), newFakePort(), &recordingPublisher{})
	err := s.Deactivate(context.Background(), "AAPL")
	assert.True(t, domain.IsTickerNotFound(err))
}

func TestRefreshDueRefreshesAndPublishes(t *testing.T) {
	repo := newFakeWatchlistRepo()
	port := newFakePort()
	pub := &recordingPublisher{}
	s := newTestWatchlistService(repo, port, pub)

	// Due: never refreshed.
	_, err := s.Add(context.Background(), "AAPL", 1, 10*time.Minute)
	require.NoError(t, err)
	// Not due: refreshed moments ago.
	_, err = s.Add(context.Background(), "MSFT", 1, 10*time.Minute)
	require.NoError(t, err)
	msft, err := repo.GetByTicker(context.Background(), domain.MustTicker("MSFT"))
	require.NoError(t, err)
	msft.MarkRefreshed(testNow.Add(-time.Minute))
	require.NoError(t, repo.Save(context.Background(), msft))

	money, _ := domain.USD(decimal.RequireFromString("178.70"))
	p, err := domain.NewPricePoint(domain.MustTicker("AAPL"), money, testNow.Add(-time.Minute), domain.SourceAPI, domain.IntervalRealTime)
	require.NoError(t, err)
	port.current[domain.MustTicker("AAPL")] = p

	refreshed, err := s.RefreshDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "marketdata.price.refreshed", pub.topics[0])
	assert.Equal(t, "AAPL", pub.keys[0])
	event, ok := pub.events[0].(PriceRefreshedEvent)
	require.True(t, ok)
	assert.Equal(t, "178.70", event.Price)

	entry, err := repo.GetByTicker(context.Background(), domain.MustTicker("AAPL"))
	require.NoError(t, err)
	assert.Equal(t, testNow, entry.LastRefreshedAt)
}

func TestRefreshDueSurvivesFailingTicker(t *testing.T) {
	repo := newFakeWatchlistRepo()
	port := newFakePort()
	pub := &recordingPublisher{}
	s := newTestWatchlistService(repo, port, pub)

	_, err := s.Add(context.Background(), "AAPL", 1, 10*time.Minute)
	require.NoError(t, err)
	_, err = s.Add(context.Background(), "MSFT", 1, 10*time.Minute)
	require.NoError(t, err)

	// Only MSFT is priceable; AAPL fails but must not abort the sweep.
	money, _ := domain.USD(decimal.RequireFromString("415.00"))
	p, err := domain.NewPricePoint(domain.MustTicker("MSFT"), money, testNow.Add(-time.Minute), domain.SourceAPI, domain.IntervalRealTime)
	require.NoError(t, err)
	port.current[domain.MustTicker("MSFT")] = p

	refreshed, err := s.RefreshDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)
	require.Len(t, pub.keys, 1)
	assert.Equal(t, "MSFT", pub.keys[0])
}

func TestListReturnsOnlyActive(t *testing.T) {
	repo := newFakeWatchlistRepo()
	s := newTestWatchlistService(repo, newFakePort(), &recordingPublisher{})

	_, err := s.Add(context.Background(), "AAPL", 1, 10*time.Minute)
	require.NoError(t, err)
	_, err = s.Add(context.Background(), "MSFT", 2, 10*time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Deactivate(context.Background(), "AAPL"))

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "MSFT", entries[0].Ticker)
}
