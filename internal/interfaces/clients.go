// Package interfaces defines service contracts for Putscan
package interfaces

import (
	"context"
	"io"

	"github.com/bobmcallan/putscan/internal/models"
)

// MarketDataClient provides price snapshots, trend analysis, and dividend
// data for an underlying.
type MarketDataClient interface {
	// GetMarketData returns the current price snapshot for a symbol.
	GetMarketData(ctx context.Context, symbol string) (*models.MarketData, error)

	// AnalyzeTrend computes direction, confidence, and strength over the
	// trailing lookback window.
	AnalyzeTrend(ctx context.Context, symbol string, days int) (*models.TrendAnalysis, error)

	// GetDividendInfo returns upcoming dividend data, or ErrNotFound when the
	// symbol pays none.
	GetDividendInfo(ctx context.Context, symbol string) (*models.DividendInfo, error)
}

// OptionsClient provides PUT option chains from the options exchange.
type OptionsClient interface {
	// GetShortTermPutOptions returns PUT contracts expiring within
	// [minDays, maxDays] from today.
	GetShortTermPutOptions(ctx context.Context, symbol string, minDays, maxDays int) ([]models.OptionContract, error)
}

// OptionsDiscovery finds the candidate ticker universe from the options
// exchange, honouring the configured liquidity filters.
type OptionsDiscovery interface {
	DiscoverUnderlyings(ctx context.Context) ([]string, error)
}

// FundamentalsClient provides per-symbol fundamentals and the bulk CSV
// ingest path.
type FundamentalsClient interface {
	// GetBySymbol returns fundamentals for one symbol, or ErrNotFound.
	GetBySymbol(ctx context.Context, symbol string) (*models.Fundamentals, error)

	// ParseBulkCSV parses a SimFin bulk export into validated rows.
	ParseBulkCSV(r io.Reader) ([]models.Fundamentals, error)
}
