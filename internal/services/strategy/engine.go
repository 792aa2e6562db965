// Package strategy holds the PUT-selling evaluation engine and its pluggable
// strategies. Strategies are pure functions of one aggregated snapshot; the
// engine filters, ranks, and truncates their combined output.
package strategy

import (
	"math"
	"sort"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

// Compile-time interface check
var _ interfaces.StrategyEngine = (*Engine)(nil)

// maxRecommendationsPerSymbol caps the engine's ranked output.
const maxRecommendationsPerSymbol = 3

// Engine applies every registered strategy and ranks the combined output.
type Engine struct {
	strategies    []interfaces.Strategy
	minConfidence float64
	minExpiryDays int
	maxExpiryDays int
	logger        *common.Logger
}

// NewEngine builds the engine with the default strategy set.
func NewEngine(config *common.Config, logger *common.Logger) *Engine {
	return NewEngineWithStrategies(config, logger,
		NewShortTermPut(),
		NewVolatilityCrush(),
		NewDividendMomentum(),
	)
}

// NewEngineWithStrategies builds the engine with an explicit strategy set.
func NewEngineWithStrategies(config *common.Config, logger *common.Logger, strategies ...interfaces.Strategy) *Engine {
	return &Engine{
		strategies:    strategies,
		minConfidence: config.Strategy.MinConfidence,
		minExpiryDays: config.Strategy.MinExpiryDays,
		maxExpiryDays: config.Strategy.MaxExpiryDays,
		logger:        logger,
	}
}

// ExpiryWindow returns the union of every registered strategy's expiry
// window, clamped to the configured bounds. The aggregator fetches the option
// chain once per symbol over this window.
func (e *Engine) ExpiryWindow() (int, int) {
	min, max := math.MaxInt32, 0
	for _, s := range e.strategies {
		lo, hi := s.TargetExpiryDays()
		if lo < min {
			min = lo
		}
		if hi > max {
			max = hi
		}
	}
	if len(e.strategies) == 0 {
		min, max = e.minExpiryDays, e.maxExpiryDays
	}
	if e.minExpiryDays > 0 && min < e.minExpiryDays {
		min = e.minExpiryDays
	}
	if e.maxExpiryDays > 0 && max > e.maxExpiryDays {
		max = e.maxExpiryDays
	}
	return min, max
}

// Evaluate runs every strategy against the snapshot, drops recommendations
// below the confidence floor, and returns the top candidates in
// deterministic order.
func (e *Engine) Evaluate(data *models.AggregatedMarketData) []models.Recommendation {
	if data == nil {
		return nil
	}

	var all []models.Recommendation
	for _, s := range e.strategies {
		recs := s.Evaluate(data)
		e.logger.Debug().
			Str("symbol", data.Symbol).
			Str("strategy", s.Name()).
			Int("recommendations", len(recs)).
			Msg("Strategy evaluated")
		all = append(all, recs...)
	}

	filtered := all[:0]
	for _, rec := range all {
		if rec.Confidence >= e.minConfidence {
			filtered = append(filtered, rec)
		}
	}

	sortRecommendations(filtered)

	if len(filtered) > maxRecommendationsPerSymbol {
		filtered = filtered[:maxRecommendationsPerSymbol]
	}
	return filtered
}

// sortRecommendations orders by confidence descending, then expected growth
// descending, then days-to-expiry ascending, then strategy name. The full
// chain makes the ranking total, so output order never depends on input
// order.
func sortRecommendations(recs []models.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.ExpectedGrowthPercent != b.ExpectedGrowthPercent {
			return a.ExpectedGrowthPercent > b.ExpectedGrowthPercent
		}
		if a.DaysToExpiry != b.DaysToExpiry {
			return a.DaysToExpiry < b.DaysToExpiry
		}
		return a.StrategyName < b.StrategyName
	})
}

// roundCents rounds to cent precision. Breakeven must equal strike minus
// premium exactly at two decimal places.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// clamp01 bounds a score into the valid confidence range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// newRecommendation assembles a recommendation from one contract, enforcing
// the cent-precision breakeven identity.
func newRecommendation(name string, data *models.AggregatedMarketData, opt models.OptionContract, confidence, expectedGrowth float64) models.Recommendation {
	premium := roundCents(opt.MidPrice())
	return models.Recommendation{
		Symbol:                data.Symbol,
		StrategyName:          name,
		CurrentPrice:          data.MarketData.CurrentPrice,
		StrikePrice:           opt.Strike,
		Expiry:                opt.Expiry,
		DaysToExpiry:          opt.DaysToExpiry,
		Premium:               premium,
		Breakeven:             roundCents(opt.Strike - premium),
		Confidence:            clamp01(confidence),
		ExpectedGrowthPercent: expectedGrowth,
		ExchangeSymbol:        opt.ExchangeSymbol,
		OptionPrice:           premium,
		Volume:                opt.Volume,
		OpenInterest:          opt.OpenInterest,
	}
}
