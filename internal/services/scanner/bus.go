package scanner

import (
	"sync"
	"time"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/models"
)

// subscriberQueueSize bounds each subscriber's event queue. A subscriber that
// cannot keep up loses events rather than stalling the scan.
const subscriberQueueSize = 64

// Subscription is one subscriber's handle on the bus.
type Subscription struct {
	bus    *Bus
	events chan models.ScanEvent
	once   sync.Once
}

// Events is the subscriber's event stream. Closed when the subscription is
// cancelled or the bus shuts down.
func (s *Subscription) Events() <-chan models.ScanEvent {
	return s.events
}

// Cancel removes the subscription. Idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
	})
}

// Bus fans scan events out to all current subscribers. Publishing never
// blocks: a full subscriber queue drops the event and bumps that
// subscriber's drop counter.
type Bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]int // value is the per-subscriber drop count
	tracker *Tracker
	closed  bool
	logger  *common.Logger
}

// NewBus creates a progress bus that replays current scan state to late
// subscribers from the tracker.
func NewBus(tracker *Tracker, logger *common.Logger) *Bus {
	return &Bus{
		subs:    make(map[*Subscription]int),
		tracker: tracker,
		logger:  logger,
	}
}

// Subscribe registers a new subscriber. When a scan is already in progress
// the first queued event is a synthetic ScanStarted carrying the current
// progress, so a late joiner renders the same view as an early one.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		events: make(chan models.ScanEvent, subscriberQueueSize),
	}
	sub.bus = b

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.events)
		return sub
	}

	if snap := b.tracker.Snapshot(); snap.InProgress {
		sub.events <- &models.ScanStartedEvent{
			Type:          models.EventScanStarted,
			ScanLogID:     snap.ScanID,
			TotalSymbols:  snap.TotalSymbols,
			ScannedCount:  snap.ScannedCount,
			CurrentSymbol: snap.CurrentSymbol,
			Timestamp:     time.Now(),
		}
	}

	b.subs[sub] = 0
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.events)
}

// Publish delivers the event to every subscriber queue, in subscription
// order per subscriber. Full queues drop.
func (b *Bus) Publish(event models.ScanEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for sub := range b.subs {
		select {
		case sub.events <- event:
		default:
			b.subs[sub]++
			b.logger.Warn().
				Str("event", event.EventType()).
				Int("dropped_total", b.subs[sub]).
				Msg("Subscriber queue full, dropping event")
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.events)
		delete(b.subs, sub)
	}
}
