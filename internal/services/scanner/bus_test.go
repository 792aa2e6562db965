package scanner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/models"
)

func newTestBus() (*Bus, *Tracker) {
	tracker := NewTracker()
	return NewBus(tracker, common.NewSilentLogger()), tracker
}

func symbolEvent(symbol string, index int) *models.SymbolEvent {
	return &models.SymbolEvent{
		Type:         models.EventSymbolScanning,
		Symbol:       symbol,
		CurrentIndex: index,
		Timestamp:    time.Now(),
	}
}

func TestBusDeliversInOrder(t *testing.T) {
	bus, _ := newTestBus()
	sub := bus.Subscribe()
	defer sub.Cancel()

	for i := 0; i < 5; i++ {
		bus.Publish(symbolEvent(fmt.Sprintf("S%d", i), i))
	}

	for i := 0; i < 5; i++ {
		select {
		case ev := <-sub.Events():
			se, ok := ev.(*models.SymbolEvent)
			require.True(t, ok)
			assert.Equal(t, i, se.CurrentIndex)
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestBusLateJoinGetsSyntheticScanStarted(t *testing.T) {
	bus, tracker := newTestBus()

	tracker.StartScan("scan-1", 10)
	tracker.UpdateProgress("F", 5)

	sub := bus.Subscribe()
	defer sub.Cancel()

	select {
	case ev := <-sub.Events():
		started, ok := ev.(*models.ScanStartedEvent)
		require.True(t, ok, "first event must be ScanStarted, got %T", ev)
		assert.Equal(t, "scan-1", started.ScanLogID)
		assert.Equal(t, 10, started.TotalSymbols)
		assert.Equal(t, 5, started.ScannedCount)
		assert.Equal(t, "F", started.CurrentSymbol)
	case <-time.After(time.Second):
		t.Fatal("synthetic ScanStarted not delivered")
	}
}

func TestBusNoReplayWhenIdle(t *testing.T) {
	bus, _ := newTestBus()
	sub := bus.Subscribe()
	defer sub.Cancel()

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event on idle subscribe: %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusEarlyAndLateSubscribersSeeSameTerminal(t *testing.T) {
	bus, tracker := newTestBus()

	early := bus.Subscribe()
	defer early.Cancel()

	tracker.StartScan("scan-1", 2)
	bus.Publish(&models.ScanStartedEvent{Type: models.EventScanStarted, ScanLogID: "scan-1", TotalSymbols: 2, Timestamp: time.Now()})
	bus.Publish(symbolEvent("AAA", 0))
	tracker.UpdateProgress("BBB", 1)

	late := bus.Subscribe()
	defer late.Cancel()

	completed := &models.ScanCompletedEvent{Type: models.EventScanCompleted, ID: "scan-1", Timestamp: time.Now()}
	bus.Publish(completed)

	drainUntilCompleted := func(sub *Subscription) *models.ScanCompletedEvent {
		deadline := time.After(time.Second)
		for {
			select {
			case ev := <-sub.Events():
				if done, ok := ev.(*models.ScanCompletedEvent); ok {
					return done
				}
			case <-deadline:
				t.Fatal("ScanCompleted not delivered")
				return nil
			}
		}
	}

	assert.Equal(t, "scan-1", drainUntilCompleted(early).ID)
	assert.Equal(t, "scan-1", drainUntilCompleted(late).ID)
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus, _ := newTestBus()
	sub := bus.Subscribe()
	defer sub.Cancel()

	// Never read: the queue fills, later events drop, publishing never blocks.
	published := subscriberQueueSize + 10
	done := make(chan struct{})
	go func() {
		for i := 0; i < published; i++ {
			bus.Publish(symbolEvent("X", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}

	assert.Len(t, sub.Events(), subscriberQueueSize)
}

func TestBusCancelIsIdempotent(t *testing.T) {
	bus, _ := newTestBus()
	sub := bus.Subscribe()

	sub.Cancel()
	sub.Cancel()

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusCloseClosesAllSubscribers(t *testing.T) {
	bus, _ := newTestBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Close()

	_, openA := <-a.Events()
	_, openB := <-b.Events()
	assert.False(t, openA)
	assert.False(t, openB)

	// Publishing after close is a no-op.
	bus.Publish(symbolEvent("X", 0))
}
