// Package postgres implements the durable tier on GORM.
package postgres

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
)

// PriceModel is one observation row. The composite unique index is the
// upsert key; the (ticker, timestamp) and (ticker, interval, timestamp)
// indexes back the point and range queries.
type PriceModel struct {
	ID        uint                `gorm:"primaryKey"`
	Ticker    string              `gorm:"column:ticker;type:varchar(12);not null;uniqueIndex:uq_price_obs,priority:1;index:idx_ticker_ts,priority:1;index:idx_ticker_interval_ts,priority:1"`
	Timestamp time.Time           `gorm:"column:timestamp;not null;uniqueIndex:uq_price_obs,priority:2;index:idx_ticker_ts,priority:2;index:idx_ticker_interval_ts,priority:3"`
	Source    string              `gorm:"column:source;type:varchar(16);not null;uniqueIndex:uq_price_obs,priority:3"`
	Interval  string              `gorm:"column:interval;type:varchar(16);not null;uniqueIndex:uq_price_obs,priority:4;index:idx_ticker_interval_ts,priority:2"`
	Price     decimal.Decimal     `gorm:"column:price;type:decimal(18,2);not null"`
	Currency  string              `gorm:"column:currency;type:varchar(3);not null"`
	Open      decimal.NullDecimal `gorm:"column:open;type:decimal(18,2)"`
	High      decimal.NullDecimal `gorm:"column:high;type:decimal(18,2)"`
	Low       decimal.NullDecimal `gorm:"column:low;type:decimal(18,2)"`
	Close     decimal.NullDecimal `gorm:"column:close;type:decimal(18,2)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the table name.
func (PriceModel) TableName() string { return "price_points" }

// WatchlistModel persists watchlist entries; deactivation flips is_active
// rather than deleting, so refresh analytics keep their history.
type WatchlistModel struct {
	gorm.Model
	Ticker          string    `gorm:"column:ticker;type:varchar(12);uniqueIndex;not null"`
	Priority        int       `gorm:"column:priority;not null;default:0"`
	RefreshInterval int64     `gorm:"column:refresh_interval_seconds;not null"`
	LastRefreshedAt time.Time `gorm:"column:last_refreshed_at"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true;index"`
}

// TableName pins the table name.
func (WatchlistModel) TableName() string { return "watchlist_entries" }

func toPriceModel(p *domain.PricePoint) *PriceModel {
	m := &PriceModel{
		Ticker:    p.Ticker.Symbol(),
		Timestamp: p.Timestamp.UTC(),
		Source:    string(p.Source),
		Interval:  string(p.Interval),
		Price:     p.Price.Amount,
		Currency:  p.Price.Currency,
	}
	if p.OHLC != nil {
		m.Open = decimal.NewNullDecimal(p.OHLC.Open.Amount)
		m.High = decimal.NewNullDecimal(p.OHLC.High.Amount)
		m.Low = decimal.NewNullDecimal(p.OHLC.Low.Amount)
		m.Close = decimal.NewNullDecimal(p.OHLC.Close.Amount)
	}
	return m
}

func toPricePoint(m *PriceModel) (*domain.PricePoint, error) {
	ticker, err := domain.NewTicker(m.Ticker)
	if err != nil {
		return nil, fmt.Errorf("stored ticker %q is invalid: %w", m.Ticker, err)
	}
	point := &domain.PricePoint{
		Ticker:    ticker,
		Price:     domain.Money{Amount: m.Price, Currency: m.Currency},
		Timestamp: m.Timestamp.UTC(),
		Source:    domain.PriceSource(m.Source),
		Interval:  domain.PriceInterval(m.Interval),
	}
	if m.Open.Valid && m.High.Valid && m.Low.Valid && m.Close.Valid {
		point.OHLC = &domain.OHLC{
			Open:  domain.Money{Amount: m.Open.Decimal, Currency: m.Currency},
			High:  domain.Money{Amount: m.High.Decimal, Currency: m.Currency},
			Low:   domain.Money{Amount: m.Low.Decimal, Currency: m.Currency},
			Close: domain.Money{Amount: m.Close.Decimal, Currency: m.Currency},
		}
	}
	return point, nil
}

func toWatchlistModel(e *domain.WatchlistEntry) *WatchlistModel {
	m := &WatchlistModel{
		Ticker:          e.Ticker.Symbol(),
		Priority:        e.Priority,
		RefreshInterval: int64(e.RefreshInterval / time.Second),
		LastRefreshedAt: e.LastRefreshedAt,
		IsActive:        e.IsActive,
	}
	m.ID = e.ID
	return m
}

func toWatchlistEntry(m *WatchlistModel) (*domain.WatchlistEntry, error) {
	ticker, err := domain.NewTicker(m.Ticker)
	if err != nil {
		return nil, fmt.Errorf("stored ticker %q is invalid: %w", m.Ticker, err)
	}
	return &domain.WatchlistEntry{
		ID:              m.ID,
		Ticker:          ticker,
		Priority:        m.Priority,
		RefreshInterval: time.Duration(m.RefreshInterval) * time.Second,
		LastRefreshedAt: m.LastRefreshedAt,
		IsActive:        m.IsActive,
	}, nil
}
