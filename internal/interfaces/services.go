// Package interfaces defines service contracts for Putscan
package interfaces

import (
	"context"

	"github.com/bobmcallan/putscan/internal/models"
)

// Aggregator composes the provider clients into one per-symbol snapshot.
type Aggregator interface {
	// Aggregate fans out to the providers concurrently and merges results.
	// A provider failure yields a nil field; Aggregate errors only when all
	// providers fail.
	Aggregate(ctx context.Context, symbol string) (*models.AggregatedMarketData, error)
}

// Strategy is one pluggable PUT-selling evaluation. Implementations must be
// pure functions of the aggregated snapshot: no I/O, no hidden state, and
// byte-identical output for identical input.
type Strategy interface {
	Name() string
	Description() string

	// TargetExpiryDays bounds the expiry window this strategy trades.
	TargetExpiryDays() (min, max int)

	Evaluate(data *models.AggregatedMarketData) []models.Recommendation
}

// StrategyEngine applies every registered strategy to a snapshot and returns
// the filtered, deterministically ranked recommendations.
type StrategyEngine interface {
	Evaluate(data *models.AggregatedMarketData) []models.Recommendation

	// ExpiryWindow is the union of all registered strategies' windows,
	// clamped to the configured bounds. The aggregator uses it to fetch the
	// option chain once per symbol.
	ExpiryWindow() (min, max int)
}

// WatchlistService manages the persisted fallback universe.
type WatchlistService interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, symbol, source string) error
	Remove(ctx context.Context, symbol string) error
	Replace(ctx context.Context, symbols []string) error
}

// ScanOrchestrator owns the one-scan-at-a-time invariant and the daily
// schedule.
type ScanOrchestrator interface {
	// Start begins background scheduling. Idempotent; returns immediately.
	Start() error

	// Stop cancels any in-flight scan cooperatively and waits until the
	// context deadline for the pipeline to unwind.
	Stop(ctx context.Context) error

	// TriggerNow starts a scan immediately, or returns
	// models.ErrScanInProgress when one is already running.
	TriggerNow() error

	// Snapshot returns the current scan state.
	Snapshot() models.ScanSnapshot
}
