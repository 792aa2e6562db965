package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

type scanLogStorage struct {
	store  *Store
	logger *common.Logger
}

// NewScanLogStorage creates a ScanLogStore backed by BadgerHold.
func NewScanLogStorage(store *Store, logger *common.Logger) *scanLogStorage {
	return &scanLogStorage{store: store, logger: logger}
}

func (s *scanLogStorage) Create(_ context.Context, log *models.ScanLog) error {
	if err := s.store.db.Insert(log.ID, log); err != nil {
		return fmt.Errorf("failed to create scan log '%s': %w", log.ID, err)
	}
	s.logger.Debug().Str("scan_id", log.ID).Msg("Scan log created")
	return nil
}

func (s *scanLogStorage) Update(_ context.Context, log *models.ScanLog) error {
	if err := s.store.db.Update(log.ID, log); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("scan log '%s': %w", log.ID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to update scan log '%s': %w", log.ID, err)
	}
	return nil
}

func (s *scanLogStorage) GetByID(_ context.Context, id string) (*models.ScanLog, error) {
	var log models.ScanLog
	if err := s.store.db.Get(id, &log); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("scan log '%s': %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get scan log '%s': %w", id, err)
	}
	return &log, nil
}

func (s *scanLogStorage) GetRecent(_ context.Context, limit int) ([]*models.ScanLog, error) {
	var logs []models.ScanLog
	if err := s.store.db.Find(&logs, nil); err != nil {
		return nil, fmt.Errorf("failed to list scan logs: %w", err)
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].StartedAt.After(logs[j].StartedAt) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	out := make([]*models.ScanLog, len(logs))
	for i := range logs {
		out[i] = &logs[i]
	}
	return out, nil
}
