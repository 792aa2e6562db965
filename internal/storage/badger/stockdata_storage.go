package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/models"
)

// stockDataStorage implements interfaces.StockDataStore on BadgerHold.
// Layer upserts are read-merge-write; the mutex serialises them so a
// fundamentals upsert and a market upsert for the same symbol can never
// lose each other's fields.
type stockDataStorage struct {
	store  *Store
	logger *common.Logger
	mu     sync.Mutex
}

// NewStockDataStorage creates a StockDataStore backed by BadgerHold.
func NewStockDataStorage(store *Store, logger *common.Logger) *stockDataStorage {
	return &stockDataStorage{store: store, logger: logger}
}

func (s *stockDataStorage) GetBySymbol(_ context.Context, symbol string) (*models.StockData, error) {
	var data models.StockData
	err := s.store.db.Get(symbol, &data)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("stock data for '%s': %w", symbol, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get stock data for '%s': %w", symbol, err)
	}
	return &data, nil
}

func (s *stockDataStorage) GetAll(_ context.Context) ([]*models.StockData, error) {
	var rows []models.StockData
	if err := s.store.db.Find(&rows, nil); err != nil {
		return nil, fmt.Errorf("failed to list stock data: %w", err)
	}
	out := make([]*models.StockData, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *stockDataStorage) GetHealthySymbols(ctx context.Context, minFScore int) ([]*models.StockData, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var healthy []*models.StockData
	for _, row := range all {
		if row.HasFundamentals() && row.PiotroskiFScore >= minFScore {
			healthy = append(healthy, row)
		}
	}
	return healthy, nil
}

func (s *stockDataStorage) GetWithMarketData(ctx context.Context) ([]*models.StockData, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var rows []*models.StockData
	for _, row := range all {
		if row.HasMarketData() {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *stockDataStorage) UpsertFundamentalsLayer(_ context.Context, f *models.Fundamentals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertFundamentalsLocked(f, time.Now())
}

func (s *stockDataStorage) upsertFundamentalsLocked(f *models.Fundamentals, now time.Time) error {
	record := models.StockData{Symbol: f.Symbol}
	if err := s.store.db.Get(f.Symbol, &record); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to read stock data for '%s': %w", f.Symbol, err)
	}

	record.ApplyFundamentals(f, now)

	if err := s.store.db.Upsert(f.Symbol, &record); err != nil {
		return fmt.Errorf("failed to upsert fundamentals for '%s': %w", f.Symbol, err)
	}
	return nil
}

func (s *stockDataStorage) UpsertMarketLayer(_ context.Context, rec *models.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := models.StockData{Symbol: rec.Symbol}
	if err := s.store.db.Get(rec.Symbol, &record); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to read stock data for '%s': %w", rec.Symbol, err)
	}

	record.ApplyMarketLayer(rec, time.Now())

	if err := s.store.db.Upsert(rec.Symbol, &record); err != nil {
		return fmt.Errorf("failed to upsert market layer for '%s': %w", rec.Symbol, err)
	}

	s.logger.Debug().
		Str("symbol", rec.Symbol).
		Str("strategy", rec.StrategyName).
		Float64("strike", rec.StrikePrice).
		Msg("Market layer saved")
	return nil
}

// BulkUpsertFundamentals applies the whole batch in one transaction: a
// failure on any row rolls back every row, so the store never holds a
// partial bulk load.
func (s *stockDataStorage) BulkUpsertFundamentals(ctx context.Context, rows []models.Fundamentals) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	written := 0
	err := s.store.db.Badger().Update(func(tx *badger.Txn) error {
		for i := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			record := models.StockData{Symbol: rows[i].Symbol}
			if err := s.store.db.TxGet(tx, rows[i].Symbol, &record); err != nil && err != badgerhold.ErrNotFound {
				return fmt.Errorf("failed to read stock data for '%s': %w", rows[i].Symbol, err)
			}
			record.ApplyFundamentals(&rows[i], now)
			if err := s.store.db.TxUpsert(tx, rows[i].Symbol, &record); err != nil {
				return fmt.Errorf("failed to upsert fundamentals for '%s': %w", rows[i].Symbol, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bulk fundamentals upsert rolled back: %w", err)
	}

	s.logger.Info().Int("rows", written).Msg("Bulk fundamentals upsert complete")
	return written, nil
}

func (s *stockDataStorage) DeleteStaleRecords(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)

	var stale []models.StockData
	if err := s.store.db.Find(&stale, badgerhold.Where("ModificationTime").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find stale records: %w", err)
	}

	deleted := 0
	for i := range stale {
		if err := s.store.db.Delete(stale[i].Symbol, models.StockData{}); err != nil {
			return deleted, fmt.Errorf("failed to delete stale record '%s': %w", stale[i].Symbol, err)
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("Stale stock records removed")
	}
	return deleted, nil
}
