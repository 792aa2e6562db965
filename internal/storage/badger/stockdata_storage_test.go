package badger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fundamentalsRow(symbol string, fscore int) *models.Fundamentals {
	return &models.Fundamentals{
		Symbol:          symbol,
		ReportDate:      time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		PiotroskiFScore: fscore,
		AltmanZScore:    3.2,
		ROA:             0.08,
		CurrentRatio:    1.5,
	}
}

func marketRec(symbol string) *models.Recommendation {
	return &models.Recommendation{
		Symbol:       symbol,
		StrategyName: "ShortTermPut",
		CurrentPrice: 100,
		StrikePrice:  95,
		Premium:      1.25,
		Breakeven:    93.75,
		Confidence:   0.8,
		DaysToExpiry: 17,
	}
}

func TestUpsertLayersPreserveEachOther(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	require.NoError(t, s.UpsertFundamentalsLayer(ctx, fundamentalsRow("AAPL", 7)))
	require.NoError(t, s.UpsertMarketLayer(ctx, marketRec("AAPL")))

	got, err := s.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 7, got.PiotroskiFScore)
	assert.Equal(t, 95.0, got.StrikePrice)
	assert.True(t, got.HasFundamentals())
	assert.True(t, got.HasMarketData())

	// A second fundamentals write must not disturb the market layer.
	require.NoError(t, s.UpsertFundamentalsLayer(ctx, fundamentalsRow("AAPL", 8)))
	got, err = s.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 8, got.PiotroskiFScore)
	assert.Equal(t, 95.0, got.StrikePrice)
	assert.Equal(t, 0.8, got.Confidence)

	// And a market write must not disturb the fundamentals layer.
	rec := marketRec("AAPL")
	rec.StrikePrice = 90
	require.NoError(t, s.UpsertMarketLayer(ctx, rec))
	got, err = s.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 8, got.PiotroskiFScore)
	assert.Equal(t, 90.0, got.StrikePrice)
}

func TestModificationTimeIsMaxOfLayers(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	require.NoError(t, s.UpsertFundamentalsLayer(ctx, fundamentalsRow("AAPL", 7)))
	require.NoError(t, s.UpsertMarketLayer(ctx, marketRec("AAPL")))

	got, err := s.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, got.MarketUpdatedAt, got.ModificationTime)
	assert.True(t, got.MarketUpdatedAt.After(got.FundamentalsUpdatedAt) ||
		got.MarketUpdatedAt.Equal(got.FundamentalsUpdatedAt))
}

func TestConcurrentLayerUpserts(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = s.UpsertFundamentalsLayer(ctx, fundamentalsRow("AAPL", n%10))
		}(i)
		go func() {
			defer wg.Done()
			_ = s.UpsertMarketLayer(ctx, marketRec("AAPL"))
		}()
	}
	wg.Wait()

	got, err := s.GetBySymbol(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, got.HasFundamentals(), "fundamentals layer lost in concurrent upserts")
	assert.True(t, got.HasMarketData(), "market layer lost in concurrent upserts")
}

func TestGetBySymbolNotFound(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())

	_, err := s.GetBySymbol(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestGetHealthySymbolsFiltersByFScore(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	require.NoError(t, s.UpsertFundamentalsLayer(ctx, fundamentalsRow("LOW", 3)))
	require.NoError(t, s.UpsertFundamentalsLayer(ctx, fundamentalsRow("HIGH", 8)))
	// Market-only row has no fundamentals and never qualifies.
	require.NoError(t, s.UpsertMarketLayer(ctx, marketRec("MKT")))

	healthy, err := s.GetHealthySymbols(ctx, 6)
	require.NoError(t, err)
	require.Len(t, healthy, 1)
	assert.Equal(t, "HIGH", healthy[0].Symbol)
}

func TestGetWithMarketData(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	require.NoError(t, s.UpsertFundamentalsLayer(ctx, fundamentalsRow("FUND", 7)))
	require.NoError(t, s.UpsertMarketLayer(ctx, marketRec("MKT")))

	rows, err := s.GetWithMarketData(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "MKT", rows[0].Symbol)
}

func TestBulkUpsertFundamentals(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	rows := []models.Fundamentals{
		*fundamentalsRow("AAA", 5),
		*fundamentalsRow("BBB", 6),
		*fundamentalsRow("CCC", 7),
	}
	written, err := s.BulkUpsertFundamentals(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// cancelAfterCtx reports cancellation only from the nth Err check, so a bulk
// load can fail deterministically partway through its batch.
type cancelAfterCtx struct {
	context.Context
	allow int
	calls int
}

func (c *cancelAfterCtx) Err() error {
	c.calls++
	if c.calls > c.allow {
		return context.Canceled
	}
	return nil
}

func TestBulkUpsertFundamentalsRollsBackOnFailure(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())

	rows := []models.Fundamentals{
		*fundamentalsRow("AAA", 5),
		*fundamentalsRow("BBB", 6),
	}

	// The first row is written, then the batch fails before the second.
	ctx := &cancelAfterCtx{Context: context.Background(), allow: 1}

	written, err := s.BulkUpsertFundamentals(ctx, rows)
	require.Error(t, err)
	assert.Equal(t, 0, written)

	// The batch is one transaction: the row written before the failure is
	// rolled back with it.
	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBulkUpsertFundamentalsPreservesMarketLayer(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	require.NoError(t, s.UpsertMarketLayer(ctx, marketRec("AAA")))

	written, err := s.BulkUpsertFundamentals(ctx, []models.Fundamentals{*fundamentalsRow("AAA", 7)})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	got, err := s.GetBySymbol(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, 7, got.PiotroskiFScore)
	assert.Equal(t, 95.0, got.StrikePrice, "bulk load must not disturb the market layer")
}

func TestDeleteStaleRecords(t *testing.T) {
	store := newTestStore(t)
	s := NewStockDataStorage(store, common.NewSilentLogger())
	ctx := context.Background()

	// Fresh record through the normal path.
	require.NoError(t, s.UpsertFundamentalsLayer(ctx, fundamentalsRow("FRESH", 7)))

	// Stale record written directly with an old modification time.
	stale := models.StockData{
		Symbol:           "STALE",
		ModificationTime: time.Now().Add(-100 * 24 * time.Hour),
	}
	require.NoError(t, store.DB().Upsert("STALE", &stale))

	deleted, err := s.DeleteStaleRecords(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = s.GetBySymbol(ctx, "STALE")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	fresh, err := s.GetBySymbol(ctx, "FRESH")
	require.NoError(t, err)
	assert.Equal(t, "FRESH", fresh.Symbol)
}
