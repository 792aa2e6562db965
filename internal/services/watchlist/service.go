// Package watchlist manages the persisted fallback scan universe.
package watchlist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

// Compile-time interface check
var _ interfaces.WatchlistService = (*Service)(nil)

// Service persists the watchlist and keeps symbols normalized to uppercase.
type Service struct {
	store  interfaces.WatchlistStore
	logger *common.Logger
}

// NewService creates the watchlist service and seeds any configured symbols
// not already present. Seeding is additive so API-managed entries survive
// restarts.
func NewService(store interfaces.WatchlistStore, config *common.Config, logger *common.Logger) (*Service, error) {
	s := &Service{store: store, logger: logger}

	if len(config.Scan.Watchlist) > 0 {
		ctx := context.Background()
		existing, err := store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read watchlist: %w", err)
		}
		present := make(map[string]struct{}, len(existing))
		for _, e := range existing {
			present[e.Symbol] = struct{}{}
		}

		seeded := 0
		for _, sym := range config.Scan.Watchlist {
			sym = normalize(sym)
			if sym == "" {
				continue
			}
			if _, ok := present[sym]; ok {
				continue
			}
			entry := &models.WatchlistEntry{Symbol: sym, Source: "config", AddedAt: time.Now()}
			if err := store.Upsert(ctx, entry); err != nil {
				return nil, fmt.Errorf("failed to seed watchlist symbol %s: %w", sym, err)
			}
			seeded++
		}
		if seeded > 0 {
			logger.Info().Int("seeded", seeded).Msg("Watchlist seeded from config")
		}
	}

	return s, nil
}

// List returns the watchlist symbols in sorted order.
func (s *Service) List(ctx context.Context) ([]string, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		symbols = append(symbols, e.Symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Add inserts or refreshes one symbol.
func (s *Service) Add(ctx context.Context, symbol, source string) error {
	sym := normalize(symbol)
	if sym == "" {
		return fmt.Errorf("empty symbol")
	}
	return s.store.Upsert(ctx, &models.WatchlistEntry{
		Symbol:  sym,
		Source:  source,
		AddedAt: time.Now(),
	})
}

// Remove deletes one symbol. Removing an absent symbol is not an error.
func (s *Service) Remove(ctx context.Context, symbol string) error {
	return s.store.Delete(ctx, normalize(symbol))
}

// Replace swaps the whole watchlist for the given symbols.
func (s *Service) Replace(ctx context.Context, symbols []string) error {
	existing, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = normalize(sym)
		if sym == "" {
			continue
		}
		keep[sym] = struct{}{}
		if err := s.store.Upsert(ctx, &models.WatchlistEntry{
			Symbol:  sym,
			Source:  "api",
			AddedAt: time.Now(),
		}); err != nil {
			return err
		}
	}

	for _, e := range existing {
		if _, ok := keep[e.Symbol]; !ok {
			if err := s.store.Delete(ctx, e.Symbol); err != nil {
				return err
			}
		}
	}
	return nil
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
