package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
)

type watchlistRepository struct {
	db *gorm.DB
}

// NewWatchlistRepository builds the watchlist store.
func NewWatchlistRepository(db *gorm.DB) domain.WatchlistRepository {
	return &watchlistRepository{db: db}
}

// Upsert inserts or reactivates the entry for the ticker.
func (r *watchlistRepository) Upsert(ctx context.Context, entry *domain.WatchlistEntry) error {
	model := toWatchlistModel(entry)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"priority", "refresh_interval_seconds", "is_active", "updated_at",
		}),
	}).Create(model).Error
}

// GetByTicker returns the entry, active or not, or nil.
func (r *watchlistRepository) GetByTicker(ctx context.Context, ticker domain.Ticker) (*domain.WatchlistEntry, error) {
	var model WatchlistModel
	err := r.db.WithContext(ctx).Where("ticker = ?", ticker.Symbol()).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toWatchlistEntry(&model)
}

// ListActive returns active entries, highest priority first.
func (r *watchlistRepository) ListActive(ctx context.Context) ([]*domain.WatchlistEntry, error) {
	var models []*WatchlistModel
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority desc, ticker asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entries := make([]*domain.WatchlistEntry, 0, len(models))
	for _, m := range models {
		entry, err := toWatchlistEntry(m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Save writes the entry's mutable state back to its row.
func (r *watchlistRepository) Save(ctx context.Context, entry *domain.WatchlistEntry) error {
	return r.db.WithContext(ctx).
		Model(&WatchlistModel{}).
		Where("ticker = ?", entry.Ticker.Symbol()).
		Updates(map[string]any{
			"priority":                 entry.Priority,
			"refresh_interval_seconds": int64(entry.RefreshInterval / time.Second),
			"is_active":                entry.IsActive,
			"last_refreshed_at":        entry.LastRefreshedAt.UTC(),
		}).Error
}
