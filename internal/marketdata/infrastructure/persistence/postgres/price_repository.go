package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
)

type priceRepository struct {
	db *gorm.DB
}

// NewPriceRepository builds the durable price store.
func NewPriceRepository(db *gorm.DB) domain.PriceRepository {
	return &priceRepository{db: db}
}

// UpsertPrice inserts or overwrites the row keyed by (ticker, timestamp,
// source, interval). Replaying the same observation is a no-op row-wise.
func (r *priceRepository) UpsertPrice(ctx context.Context, point *domain.PricePoint) error {
	model := toPriceModel(point)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "ticker"}, {Name: "timestamp"}, {Name: "source"}, {Name: "interval"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"price", "currency", "open", "high", "low", "close", "updated_at",
		}),
	}).Create(model).Error
}

// GetLatestPrice returns the newest observation, optionally no older than
// maxAge. A miss is nil, not an error.
func (r *priceRepository) GetLatestPrice(ctx context.Context, ticker domain.Ticker, maxAge time.Duration) (*domain.PricePoint, error) {
	query := r.db.WithContext(ctx).Where("ticker = ?", ticker.Symbol())
	if maxAge > 0 {
		query = query.Where("timestamp >= ?", time.Now().UTC().Add(-maxAge))
	}
	var model PriceModel
	err := query.Order("timestamp desc").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toPricePoint(&model)
}

// GetPriceAt returns the observation nearest ts within the tolerance window.
// Two bounded lookups (newest at-or-before, oldest after) avoid an
// unindexable order-by-distance scan.
func (r *priceRepository) GetPriceAt(ctx context.Context, ticker domain.Ticker, ts time.Time, tolerance time.Duration) (*domain.PricePoint, error) {
	ts = ts.UTC()

	var before PriceModel
	errBefore := r.db.WithContext(ctx).
		Where("ticker = ? AND timestamp <= ? AND timestamp >= ?", ticker.Symbol(), ts, ts.Add(-tolerance)).
		Order("timestamp desc").
		First(&before).Error
	if errBefore != nil && !errors.Is(errBefore, gorm.ErrRecordNotFound) {
		return nil, errBefore
	}

	var after PriceModel
	errAfter := r.db.WithContext(ctx).
		Where("ticker = ? AND timestamp > ? AND timestamp <= ?", ticker.Symbol(), ts, ts.Add(tolerance)).
		Order("timestamp asc").
		First(&after).Error
	if errAfter != nil && !errors.Is(errAfter, gorm.ErrRecordNotFound) {
		return nil, errAfter
	}

	switch {
	case errBefore == nil && errAfter == nil:
		if ts.Sub(before.Timestamp) <= after.Timestamp.Sub(ts) {
			return toPricePoint(&before)
		}
		return toPricePoint(&after)
	case errBefore == nil:
		return toPricePoint(&before)
	case errAfter == nil:
		return toPricePoint(&after)
	default:
		return nil, nil
	}
}

// GetPriceHistory returns observations in [start, end] for the interval in
// chronological order.
func (r *priceRepository) GetPriceHistory(ctx context.Context, ticker domain.Ticker, start, end time.Time, interval domain.PriceInterval) ([]*domain.PricePoint, error) {
	var models []*PriceModel
	err := r.db.WithContext(ctx).
		Where("ticker = ? AND interval = ? AND timestamp >= ? AND timestamp <= ?",
			ticker.Symbol(), string(interval), start.UTC(), end.UTC()).
		Order("timestamp asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	points := make([]*domain.PricePoint, 0, len(models))
	for _, m := range models {
		point, err := toPricePoint(m)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	return points, nil
}

// GetAllTickers enumerates tickers with any stored observation.
func (r *priceRepository) GetAllTickers(ctx context.Context) ([]domain.Ticker, error) {
	var symbols []string
	err := r.db.WithContext(ctx).
		Model(&PriceModel{}).
		Distinct("ticker").
		Order("ticker").
		Pluck("ticker", &symbols).Error
	if err != nil {
		return nil, err
	}
	tickers := make([]domain.Ticker, 0, len(symbols))
	for _, s := range symbols {
		ticker, err := domain.NewTicker(s)
		if err != nil {
			continue
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}
