// Package aggregator composes the provider clients into one
// AggregatedMarketData snapshot per symbol.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

// Compile-time interface check
var _ interfaces.Aggregator = (*Service)(nil)

const trendLookbackDays = 30

// Service fans one symbol out to the market, options, and fundamentals
// providers concurrently and merges whatever succeeded.
type Service struct {
	market        interfaces.MarketDataClient
	options       interfaces.OptionsClient
	fundamentals  interfaces.FundamentalsClient
	stockData     interfaces.StockDataStore
	engine        interfaces.StrategyEngine
	symbolTimeout time.Duration
	logger        *common.Logger
}

// NewService wires the aggregator from the provider clients and the store.
func NewService(
	market interfaces.MarketDataClient,
	options interfaces.OptionsClient,
	fundamentals interfaces.FundamentalsClient,
	stockData interfaces.StockDataStore,
	engine interfaces.StrategyEngine,
	config *common.Config,
	logger *common.Logger,
) *Service {
	return &Service{
		market:        market,
		options:       options,
		fundamentals:  fundamentals,
		stockData:     stockData,
		engine:        engine,
		symbolTimeout: config.Scan.GetSymbolTimeout(),
		logger:        logger,
	}
}

// Aggregate gathers the per-symbol snapshot within the symbol budget. Each
// provider failure is logged and leaves its field nil; the call errors only
// when every provider failed.
func (s *Service) Aggregate(ctx context.Context, symbol string) (*models.AggregatedMarketData, error) {
	ctx, cancel := context.WithTimeout(ctx, s.symbolTimeout)
	defer cancel()

	result := &models.AggregatedMarketData{Symbol: symbol}
	errs := make([]error, 4)

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		md, err := s.market.GetMarketData(ctx, symbol)
		if err != nil {
			errs[0] = fmt.Errorf("market data: %w", err)
			return
		}
		result.MarketData = md
	}()

	go func() {
		defer wg.Done()
		trend, err := s.market.AnalyzeTrend(ctx, symbol, trendLookbackDays)
		if err != nil {
			errs[1] = fmt.Errorf("trend: %w", err)
			return
		}
		result.Trend = trend
	}()

	go func() {
		defer wg.Done()
		minDays, maxDays := s.engine.ExpiryWindow()
		opts, err := s.options.GetShortTermPutOptions(ctx, symbol, minDays, maxDays)
		if err != nil {
			errs[2] = fmt.Errorf("options chain: %w", err)
			return
		}
		result.PutOptions = opts
	}()

	go func() {
		defer wg.Done()
		health, err := s.healthMetrics(ctx, symbol)
		if err != nil {
			errs[3] = fmt.Errorf("fundamentals: %w", err)
			return
		}
		result.Health = health
	}()

	wg.Wait()

	// Dividend lookup only matters once a trend exists, and it shares the
	// market client's rate budget; fetch it after the fan-out.
	if result.Trend != nil && result.Trend.Direction == models.TrendUp {
		div, err := s.market.GetDividendInfo(ctx, symbol)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Dividend lookup failed")
		} else if err == nil {
			result.Dividend = div
		}
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Provider failed during aggregation")
		}
	}
	if failed == len(errs) {
		return nil, fmt.Errorf("all providers failed for %s: %w", symbol, errors.Join(errs...))
	}

	s.logger.Debug().
		Str("symbol", symbol).
		Int("put_options", len(result.PutOptions)).
		Bool("has_trend", result.Trend != nil).
		Bool("has_health", result.Health != nil).
		Msg("Aggregated symbol snapshot")

	return result, nil
}

// healthMetrics serves fundamentals from the store when fresh, falling back
// to the SimFin client and caching the result.
func (s *Service) healthMetrics(ctx context.Context, symbol string) (*models.FinancialHealthMetrics, error) {
	stock, err := s.stockData.GetBySymbol(ctx, symbol)
	if err == nil && stock.HasFundamentals() && common.IsFresh(stock.FundamentalsUpdatedAt, common.FreshnessFundamentals) {
		return &models.FinancialHealthMetrics{
			PiotroskiFScore: stock.PiotroskiFScore,
			AltmanZScore:    stock.AltmanZScore,
			ROA:             stock.ROA,
			DebtToEquity:    stock.DebtToEquity,
			CurrentRatio:    stock.CurrentRatio,
		}, nil
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	f, err := s.fundamentals.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if err := s.stockData.UpsertFundamentalsLayer(ctx, f); err != nil {
		s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache fundamentals")
	}

	return &models.FinancialHealthMetrics{
		PiotroskiFScore: f.PiotroskiFScore,
		AltmanZScore:    f.AltmanZScore,
		ROA:             f.ROA,
		DebtToEquity:    f.DebtToEquity,
		CurrentRatio:    f.CurrentRatio,
	}, nil
}
