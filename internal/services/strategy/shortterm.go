package strategy

import (
	"math"
	"sort"

	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

// Compile-time interface check
var _ interfaces.Strategy = (*ShortTermPut)(nil)

const (
	shortTermMinExpiryDays = 14
	shortTermMaxExpiryDays = 21
	shortTermMinPremium    = 0.10
	shortTermMaxPerSymbol  = 3
)

// ShortTermPut sells 14-21 day OTM PUTs on underlyings in a confirmed
// non-down trend, scoring each contract on trend quality, OTM cushion, and
// liquidity.
type ShortTermPut struct{}

func NewShortTermPut() *ShortTermPut { return &ShortTermPut{} }

func (s *ShortTermPut) Name() string { return "ShortTermPut" }

func (s *ShortTermPut) Description() string {
	return "Sells short-dated out-of-the-money PUTs on underlyings trending up or sideways"
}

func (s *ShortTermPut) TargetExpiryDays() (int, int) {
	return shortTermMinExpiryDays, shortTermMaxExpiryDays
}

func (s *ShortTermPut) Evaluate(data *models.AggregatedMarketData) []models.Recommendation {
	if data.MarketData == nil || data.Trend == nil || len(data.PutOptions) == 0 {
		return nil
	}
	if data.Trend.Direction == models.TrendDown {
		return nil
	}

	price := data.MarketData.CurrentPrice
	if price <= 0 {
		return nil
	}

	var recs []models.Recommendation
	for _, opt := range data.PutOptions {
		if opt.DaysToExpiry < shortTermMinExpiryDays || opt.DaysToExpiry > shortTermMaxExpiryDays {
			continue
		}
		if opt.Strike <= 0 || opt.Strike >= price {
			continue
		}
		premium := roundCents(opt.MidPrice())
		if premium < shortTermMinPremium {
			continue
		}

		score := s.score(data.Trend, opt, price)
		recs = append(recs, newRecommendation(s.Name(), data, opt, score, data.Trend.ExpectedGrowthPercent))
	}

	sortRecommendations(recs)
	if len(recs) > shortTermMaxPerSymbol {
		recs = recs[:shortTermMaxPerSymbol]
	}
	return recs
}

// score blends trend quality with the contract's OTM cushion and liquidity.
// Trend carries half the weight; a 10% cushion or better scores full marks
// on the distance term.
func (s *ShortTermPut) score(trend *models.TrendAnalysis, opt models.OptionContract, price float64) float64 {
	trendScore := trend.Confidence*0.3 + trend.TrendStrength*0.2

	otmDistance := (price - opt.Strike) / price
	distanceScore := clamp01(otmDistance/0.10) * 0.3

	liquidityScore := clamp01(math.Log1p(float64(opt.OpenInterest))/math.Log1p(10000)) * 0.2

	return clamp01(trendScore + distanceScore + liquidityScore)
}

// sortContractsByStrike keeps chain iteration deterministic when callers
// pre-filter contracts.
func sortContractsByStrike(opts []models.OptionContract) {
	sort.SliceStable(opts, func(i, j int) bool {
		if !opts[i].Expiry.Equal(opts[j].Expiry) {
			return opts[i].Expiry.Before(opts[j].Expiry)
		}
		return opts[i].Strike < opts[j].Strike
	})
}
