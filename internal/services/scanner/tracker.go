// Package scanner owns the scan lifecycle: the state tracker, the progress
// bus, and the orchestrator that drives the daily pipeline.
package scanner

import (
	"sync"
	"time"

	"github.com/bobmcallan/putscan/internal/models"
)

// Tracker is the in-memory scan state. Only the orchestrator writes; the bus
// reads it on subscribe and the status endpoint reads it on demand.
type Tracker struct {
	mu            sync.Mutex
	inProgress    bool
	scanID        string
	totalSymbols  int
	scannedCount  int
	currentSymbol string
	startedAt     time.Time
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// StartScan marks a scan in progress with zero symbols scanned.
func (t *Tracker) StartScan(scanID string, totalSymbols int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inProgress = true
	t.scanID = scanID
	t.totalSymbols = totalSymbols
	t.scannedCount = 0
	t.currentSymbol = ""
	t.startedAt = time.Now()
}

// UpdateProgress records the symbol currently being scanned. scannedCount is
// the number of symbols already finished, so it equals the current index.
func (t *Tracker) UpdateProgress(symbol string, index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentSymbol = symbol
	t.scannedCount = index
}

// CompleteScan clears the in-progress flag. scanned is the number of symbols
// actually finished; a cancelled or crashed scan leaves it short of the
// total, and a status query afterwards must show that shortfall.
func (t *Tracker) CompleteScan(scanned int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inProgress = false
	t.currentSymbol = ""
	t.scannedCount = scanned
}

// Snapshot returns a consistent point-in-time copy of the state.
func (t *Tracker) Snapshot() models.ScanSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.ScanSnapshot{
		InProgress:    t.inProgress,
		ScanID:        t.scanID,
		TotalSymbols:  t.totalSymbols,
		ScannedCount:  t.scannedCount,
		CurrentSymbol: t.currentSymbol,
		StartedAt:     t.startedAt,
	}
}
