package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

type kvStorage struct {
	store  *Store
	logger *common.Logger
}

// NewKVStorage creates a KeyValueStore backed by BadgerHold.
func NewKVStorage(store *Store, logger *common.Logger) *kvStorage {
	return &kvStorage{store: store, logger: logger}
}

func (s *kvStorage) Get(_ context.Context, key string) (string, error) {
	var entry models.SystemKeyValue
	if err := s.store.db.Get(key, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return "", fmt.Errorf("system kv '%s': %w", key, models.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get system kv '%s': %w", key, err)
	}
	return entry.Value, nil
}

func (s *kvStorage) Set(_ context.Context, key, value string) error {
	entry := models.SystemKeyValue{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	if err := s.store.db.Upsert(key, &entry); err != nil {
		return fmt.Errorf("failed to set system kv '%s': %w", key, err)
	}
	return nil
}
