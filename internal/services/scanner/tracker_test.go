package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker()

	snap := tracker.Snapshot()
	assert.False(t, snap.InProgress)
	assert.Equal(t, 0, snap.TotalSymbols)

	tracker.StartScan("scan-1", 10)
	snap = tracker.Snapshot()
	assert.True(t, snap.InProgress)
	assert.Equal(t, "scan-1", snap.ScanID)
	assert.Equal(t, 10, snap.TotalSymbols)
	assert.Equal(t, 0, snap.ScannedCount)
	assert.False(t, snap.StartedAt.IsZero())

	tracker.UpdateProgress("AAPL", 5)
	snap = tracker.Snapshot()
	assert.Equal(t, "AAPL", snap.CurrentSymbol)
	assert.Equal(t, 5, snap.ScannedCount)

	tracker.CompleteScan(10)
	snap = tracker.Snapshot()
	assert.False(t, snap.InProgress)
	assert.Empty(t, snap.CurrentSymbol)
	assert.Equal(t, 10, snap.ScannedCount)
}

func TestTrackerCompleteScanKeepsActualCount(t *testing.T) {
	tracker := NewTracker()
	tracker.StartScan("scan-1", 10)
	tracker.UpdateProgress("AAPL", 4)

	// A scan cut short reports how far it actually got, not the total.
	tracker.CompleteScan(4)
	snap := tracker.Snapshot()
	assert.False(t, snap.InProgress)
	assert.Equal(t, 4, snap.ScannedCount)
	assert.Equal(t, 10, snap.TotalSymbols)
}

func TestTrackerRestartResetsCounters(t *testing.T) {
	tracker := NewTracker()
	tracker.StartScan("scan-1", 10)
	tracker.UpdateProgress("MSFT", 7)
	tracker.CompleteScan(10)

	tracker.StartScan("scan-2", 3)
	snap := tracker.Snapshot()
	assert.Equal(t, "scan-2", snap.ScanID)
	assert.Equal(t, 3, snap.TotalSymbols)
	assert.Equal(t, 0, snap.ScannedCount)
	assert.Empty(t, snap.CurrentSymbol)
}
