package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

type watchlistStorage struct {
	store  *Store
	logger *common.Logger
}

// NewWatchlistStorage creates a WatchlistStore backed by BadgerHold.
func NewWatchlistStorage(store *Store, logger *common.Logger) *watchlistStorage {
	return &watchlistStorage{store: store, logger: logger}
}

func (s *watchlistStorage) List(_ context.Context) ([]*models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	if err := s.store.db.Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })
	out := make([]*models.WatchlistEntry, len(entries))
	for i := range entries {
		out[i] = &entries[i]
	}
	return out, nil
}

func (s *watchlistStorage) Upsert(_ context.Context, entry *models.WatchlistEntry) error {
	if err := s.store.db.Upsert(entry.Symbol, entry); err != nil {
		return fmt.Errorf("failed to save watchlist entry '%s': %w", entry.Symbol, err)
	}
	s.logger.Debug().Str("symbol", entry.Symbol).Msg("Watchlist entry saved")
	return nil
}

func (s *watchlistStorage) Delete(_ context.Context, symbol string) error {
	err := s.store.db.Delete(symbol, models.WatchlistEntry{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete watchlist entry '%s': %w", symbol, err)
	}
	return nil
}
