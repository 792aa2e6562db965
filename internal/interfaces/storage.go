// Package interfaces defines service contracts for Putscan
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/putscan/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	StockDataStore() StockDataStore
	ScanLogStore() ScanLogStore
	WatchlistStore() WatchlistStore
	KeyValueStore() KeyValueStore

	// Lifecycle
	Close() error
}

// StockDataStore is the unified per-symbol record store. The two upsert
// methods each write only their own field layer; concurrent upserts of
// different layers must not lose either side's fields.
type StockDataStore interface {
	GetBySymbol(ctx context.Context, symbol string) (*models.StockData, error)
	GetAll(ctx context.Context) ([]*models.StockData, error)

	// GetHealthySymbols returns rows whose fundamentals layer is present with
	// PiotroskiFScore >= minFScore.
	GetHealthySymbols(ctx context.Context, minFScore int) ([]*models.StockData, error)

	// GetWithMarketData returns rows whose market/options layer is present.
	GetWithMarketData(ctx context.Context) ([]*models.StockData, error)

	UpsertFundamentalsLayer(ctx context.Context, f *models.Fundamentals) error
	UpsertMarketLayer(ctx context.Context, rec *models.Recommendation) error

	// BulkUpsertFundamentals applies rows in batches; returns rows written.
	BulkUpsertFundamentals(ctx context.Context, rows []models.Fundamentals) (int, error)

	// DeleteStaleRecords removes records not modified within maxAge;
	// returns the number deleted.
	DeleteStaleRecords(ctx context.Context, maxAge time.Duration) (int, error)
}

// ScanLogStore persists the append-only scan attempt records.
type ScanLogStore interface {
	Create(ctx context.Context, log *models.ScanLog) error
	Update(ctx context.Context, log *models.ScanLog) error
	GetByID(ctx context.Context, id string) (*models.ScanLog, error)
	GetRecent(ctx context.Context, limit int) ([]*models.ScanLog, error)
}

// WatchlistStore persists the fallback scan universe, keyed by symbol.
type WatchlistStore interface {
	List(ctx context.Context) ([]*models.WatchlistEntry, error)
	Upsert(ctx context.Context, entry *models.WatchlistEntry) error
	Delete(ctx context.Context, symbol string) error
}

// KeyValueStore holds system-level bookkeeping (schema stamp, last scan).
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
