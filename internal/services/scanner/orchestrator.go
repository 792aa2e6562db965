package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

// Compile-time interface check
var _ interfaces.ScanOrchestrator = (*Orchestrator)(nil)

// schedulerCrashBackoff is the delay before retrying a scheduled scan whose
// pipeline crashed.
const schedulerCrashBackoff = 5 * time.Minute

// Orchestrator schedules and drives scans. Exactly one scan runs at a time;
// scheduled and manual triggers share the same guard.
type Orchestrator struct {
	config     *common.Config
	scanLogs   interfaces.ScanLogStore
	stockData  interfaces.StockDataStore
	aggregator interfaces.Aggregator
	engine     interfaces.StrategyEngine
	discovery  interfaces.OptionsDiscovery
	watchlist  interfaces.WatchlistService
	tracker    *Tracker
	bus        *Bus
	logger     *common.Logger

	mu       sync.Mutex
	running  bool // a scan pipeline is in flight
	started  bool // Start has been called
	cron     *cron.Cron
	cancelFn context.CancelFunc
	scanDone chan struct{}

	// test seam: sleeps between crash retries
	backoff func(ctx context.Context, d time.Duration) bool
}

// NewOrchestrator wires the scan pipeline.
func NewOrchestrator(
	config *common.Config,
	storage interfaces.StorageManager,
	aggregator interfaces.Aggregator,
	engine interfaces.StrategyEngine,
	discovery interfaces.OptionsDiscovery,
	watchlist interfaces.WatchlistService,
	tracker *Tracker,
	bus *Bus,
	logger *common.Logger,
) *Orchestrator {
	return &Orchestrator{
		config:     config,
		scanLogs:   storage.ScanLogStore(),
		stockData:  storage.StockDataStore(),
		aggregator: aggregator,
		engine:     engine,
		discovery:  discovery,
		watchlist:  watchlist,
		tracker:    tracker,
		bus:        bus,
		logger:     logger,
		backoff:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// Start registers the daily cron trigger. Idempotent; returns immediately.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return nil
	}

	hour, minute, err := o.config.Scan.GetScanTime()
	if err != nil {
		return fmt.Errorf("invalid scan_time: %w", err)
	}

	c := cron.New()
	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	if _, err := c.AddFunc(spec, o.scheduledRun); err != nil {
		return fmt.Errorf("failed to schedule scan: %w", err)
	}
	c.Start()

	o.cron = c
	o.started = true
	o.logger.Info().Str("schedule", spec).Msg("Scan scheduler started")
	return nil
}

// Stop halts scheduling, cancels any in-flight scan, and waits for the
// pipeline to unwind or the context to expire.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if o.cron != nil {
		o.cron.Stop()
		o.cron = nil
	}
	o.started = false
	cancel := o.cancelFn
	done := o.scanDone
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("scan did not stop in time: %w", ctx.Err())
		}
	}
	return nil
}

// TriggerNow starts a scan immediately, or reports the one already running.
func (o *Orchestrator) TriggerNow() error {
	ctx, done, err := o.acquire()
	if err != nil {
		return err
	}
	go o.runGuarded(ctx, done)
	return nil
}

// Snapshot returns the current scan state.
func (o *Orchestrator) Snapshot() models.ScanSnapshot {
	return o.tracker.Snapshot()
}

// acquire takes the one-scan-at-a-time guard and hands back the scan context.
func (o *Orchestrator) acquire() (context.Context, chan struct{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil, nil, models.ErrScanInProgress
	}
	o.running = true
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.cancelFn = cancel
	o.scanDone = done
	return ctx, done, nil
}

func (o *Orchestrator) release(done chan struct{}) {
	o.mu.Lock()
	o.running = false
	o.cancelFn = nil
	o.scanDone = nil
	o.mu.Unlock()
	close(done)
}

// scheduledRun is the cron entry point. A crashed pipeline gets one retry
// after the backoff; a scan already running (manual trigger) is skipped.
func (o *Orchestrator) scheduledRun() {
	for attempt := 0; attempt < 2; attempt++ {
		ctx, done, err := o.acquire()
		if errors.Is(err, models.ErrScanInProgress) {
			o.logger.Warn().Msg("Scheduled scan skipped, scan already in progress")
			return
		}

		crashed := o.runGuarded(ctx, done)
		if !crashed {
			return
		}

		o.logger.Error().
			Dur("backoff", schedulerCrashBackoff).
			Msg("Scan pipeline crashed, backing off before retry")
		if !o.backoff(context.Background(), schedulerCrashBackoff) {
			return
		}
	}
}

// runGuarded executes one scan under the guard, converting panics into a
// failed scan log. Returns true when the pipeline panicked.
func (o *Orchestrator) runGuarded(ctx context.Context, done chan struct{}) (crashed bool) {
	defer o.release(done)

	// runScan registers the log here as soon as it exists, so a panic
	// anywhere in the pipeline still reaches closeScan: the log must not be
	// left Running and subscribers must still see ScanCompleted.
	var log *models.ScanLog
	defer func() {
		if rec := recover(); rec != nil {
			crashed = true
			o.logger.Error().Str("panic", fmt.Sprintf("%v", rec)).Msg("Panic recovered in scan pipeline")
			if log != nil && log.CompletedAt == nil {
				o.closeScan(log, models.ScanStatusFailed, fmt.Sprintf("panic: %v", rec))
			}
		}
	}()

	o.runScan(ctx, &log)
	return false
}

// runScan drives one scan through its phases. It always closes the scan log
// and always emits ScanCompleted, on success, failure, and cancellation.
// active is set as soon as the log is persisted so the caller's recover can
// close a scan whose pipeline panicked.
func (o *Orchestrator) runScan(ctx context.Context, active **models.ScanLog) {
	log := &models.ScanLog{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		Status:    models.ScanStatusRunning,
	}
	if err := o.scanLogs.Create(ctx, log); err != nil {
		o.logger.Error().Err(err).Msg("Failed to create scan log")
		return
	}
	*active = log

	o.logger.Info().Str("scan_id", log.ID).Msg("Scan started")

	universe, err := o.resolveUniverse(ctx)
	if err != nil {
		o.closeScan(log, models.ScanStatusFailed, err.Error())
		return
	}

	o.tracker.StartScan(log.ID, len(universe))
	o.bus.Publish(&models.ScanStartedEvent{
		Type:         models.EventScanStarted,
		ScanLogID:    log.ID,
		TotalSymbols: len(universe),
		Timestamp:    time.Now(),
	})

	for i, symbol := range universe {
		if ctx.Err() != nil {
			o.closeScan(log, models.ScanStatusFailed, "scan cancelled")
			return
		}

		recs, err := o.scanSymbol(ctx, symbol, i, len(universe))
		if err != nil {
			o.logger.Warn().Err(err).Str("symbol", symbol).Msg("Symbol scan failed")
		}
		// Counted on the log itself so a panic later in the loop still
		// closes with an accurate tally.
		log.SymbolsScanned++
		log.RecommendationsGenerated += recs
	}

	o.closeScan(log, models.ScanStatusSucceeded, "")

	o.sweepStale(ctx)
}

// scanSymbol aggregates, evaluates, and stores one symbol, returning the
// number of recommendations it produced. Errors are per-symbol and never
// fail the scan.
func (o *Orchestrator) scanSymbol(ctx context.Context, symbol string, index, total int) (int, error) {
	o.tracker.UpdateProgress(symbol, index)
	o.bus.Publish(&models.SymbolEvent{
		Type:            models.EventSymbolScanning,
		Symbol:          symbol,
		CurrentIndex:    index,
		TotalSymbols:    total,
		Status:          "scanning",
		ProgressPercent: progressPercent(index, total),
		Timestamp:       time.Now(),
	})

	data, err := o.aggregator.Aggregate(ctx, symbol)
	if err != nil {
		o.publishSymbolError(symbol, index, total, err)
		return 0, err
	}

	recs := o.engine.Evaluate(data)
	if len(recs) > 0 {
		if err := o.stockData.UpsertMarketLayer(ctx, &recs[0]); err != nil {
			o.publishSymbolError(symbol, index, total, fmt.Errorf("store write: %w", err))
			return 0, err
		}
	}

	o.bus.Publish(&models.SymbolEvent{
		Type:                 models.EventSymbolCompleted,
		Symbol:               symbol,
		CurrentIndex:         index,
		TotalSymbols:         total,
		Status:               "completed",
		RecommendationsCount: len(recs),
		ProgressPercent:      progressPercent(index+1, total),
		Metrics:              symbolMetrics(data),
		Timestamp:            time.Now(),
	})
	return len(recs), nil
}

func (o *Orchestrator) publishSymbolError(symbol string, index, total int, err error) {
	o.bus.Publish(&models.SymbolEvent{
		Type:            models.EventSymbolError,
		Symbol:          symbol,
		CurrentIndex:    index,
		TotalSymbols:    total,
		Status:          "error",
		ErrorMessage:    err.Error(),
		ProgressPercent: progressPercent(index+1, total),
		Timestamp:       time.Now(),
	})
}

// closeScan persists the terminal scan log state, then completes the tracker
// and emits ScanCompleted. Log closure strictly precedes the terminal event.
func (o *Orchestrator) closeScan(log *models.ScanLog, status models.ScanStatus, errMsg string) {
	now := time.Now()
	log.CompletedAt = &now
	log.Status = status
	log.ErrorMessage = errMsg

	// The scan context may already be cancelled; the terminal write must
	// still land.
	if err := o.scanLogs.Update(context.Background(), log); err != nil {
		o.logger.Error().Err(err).Str("scan_id", log.ID).Msg("Failed to close scan log")
	}

	o.tracker.CompleteScan(log.SymbolsScanned)
	o.bus.Publish(models.NewScanCompletedEvent(log, now))

	o.logger.Info().
		Str("scan_id", log.ID).
		Str("status", string(status)).
		Int("symbols", log.SymbolsScanned).
		Int("recommendations", log.RecommendationsGenerated).
		Msg("Scan completed")
}

// resolveUniverse builds the ordered, deduplicated symbol list: options
// discovery when enabled, falling back to the watchlist when configured.
func (o *Orchestrator) resolveUniverse(ctx context.Context) ([]string, error) {
	if o.config.Discovery.Enabled && o.discovery != nil {
		symbols, err := o.discovery.DiscoverUnderlyings(ctx)
		if err == nil && len(symbols) > 0 {
			return normalizeUniverse(symbols), nil
		}
		if err != nil {
			o.logger.Warn().Err(err).Msg("Options discovery failed")
		}
		if !o.config.Discovery.FallbackToWatchlist {
			if err != nil {
				return nil, fmt.Errorf("options discovery failed: %w", err)
			}
			return nil, errors.New("options discovery returned no symbols")
		}
	}

	symbols, err := o.watchlist.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("watchlist unavailable: %w", err)
	}
	if len(symbols) == 0 {
		return nil, errors.New("scan universe is empty")
	}
	return normalizeUniverse(symbols), nil
}

// sweepStale applies the retention rule after a successful scan.
func (o *Orchestrator) sweepStale(ctx context.Context) {
	deleted, err := o.stockData.DeleteStaleRecords(ctx, o.config.Scan.GetRetention())
	if err != nil {
		o.logger.Warn().Err(err).Msg("Retention sweep failed")
		return
	}
	if deleted > 0 {
		o.logger.Info().Int("deleted", deleted).Msg("Retention sweep removed stale records")
	}
}

func normalizeUniverse(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func progressPercent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

func symbolMetrics(data *models.AggregatedMarketData) *models.SymbolMetrics {
	if data == nil || data.Health == nil {
		return nil
	}
	fscore := data.Health.PiotroskiFScore
	zscore := data.Health.AltmanZScore
	return &models.SymbolMetrics{
		PiotroskiFScore: &fscore,
		AltmanZScore:    &zscore,
	}
}
