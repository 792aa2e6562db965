// Package storage provides the top-level StorageManager over the embedded
// BadgerHold database.
package storage

import (
	"fmt"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/storage/badger"
)

// Compile-time interface check
var _ interfaces.StorageManager = (*Manager)(nil)

// Manager implements interfaces.StorageManager on a single BadgerHold store.
type Manager struct {
	store     *badger.Store
	stockData interfaces.StockDataStore
	scanLogs  interfaces.ScanLogStore
	watchlist interfaces.WatchlistStore
	kv        interfaces.KeyValueStore
	logger    *common.Logger
}

// NewManager opens the BadgerHold store and wires the typed storages.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	store, err := badger.NewStore(logger, config.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	logger.Info().Str("path", config.Storage.Path).Msg("Storage manager initialized")

	return &Manager{
		store:     store,
		stockData: badger.NewStockDataStorage(store, logger),
		scanLogs:  badger.NewScanLogStorage(store, logger),
		watchlist: badger.NewWatchlistStorage(store, logger),
		kv:        badger.NewKVStorage(store, logger),
		logger:    logger,
	}, nil
}

func (m *Manager) StockDataStore() interfaces.StockDataStore { return m.stockData }
func (m *Manager) ScanLogStore() interfaces.ScanLogStore     { return m.scanLogs }
func (m *Manager) WatchlistStore() interfaces.WatchlistStore { return m.watchlist }
func (m *Manager) KeyValueStore() interfaces.KeyValueStore   { return m.kv }

// Close releases the underlying database.
func (m *Manager) Close() error {
	return m.store.Close()
}
