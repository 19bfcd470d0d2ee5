package domain

import (
	"fmt"
	"time"
)

// WatchlistEntry drives the background refresher that keeps popular tickers
// warm in the cache independent of user requests. Entries are soft-deleted
// (IsActive=false) so refresh-history analytics survive removal.
type WatchlistEntry struct {
	ID              uint
	Ticker          Ticker
	Priority        int
	RefreshInterval time.Duration
	LastRefreshedAt time.Time
	IsActive        bool
}

// NewWatchlistEntry validates and builds an active entry.
func NewWatchlistEntry(ticker Ticker, priority int, refreshInterval time.Duration) (*WatchlistEntry, error) {
	if ticker.IsZero() {
		return nil, fmt.Errorf("watchlist entry requires a ticker")
	}
	if refreshInterval <= 0 {
		return nil, fmt.Errorf("watchlist entry for %s requires a positive refresh interval", ticker)
	}
	return &WatchlistEntry{
		Ticker:          ticker,
		Priority:        priority,
		RefreshInterval: refreshInterval,
		IsActive:        true,
	}, nil
}

// IsDue reports whether the entry should be refreshed at now. Entries that
// have never been refreshed are always due.
func (w *WatchlistEntry) IsDue(now time.Time) bool {
	if !w.IsActive {
		return false
	}
	if w.LastRefreshedAt.IsZero() {
		return true
	}
	return now.Sub(w.LastRefreshedAt) >= w.RefreshInterval
}

// MarkRefreshed records a successful refresh.
func (w *WatchlistEntry) MarkRefreshed(now time.Time) {
	w.LastRefreshedAt = now.UTC()
}

// Deactivate soft-deletes the entry.
func (w *WatchlistEntry) Deactivate() { w.IsActive = false }
