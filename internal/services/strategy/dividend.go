package strategy

import (
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

// Compile-time interface check
var _ interfaces.Strategy = (*DividendMomentum)(nil)

const (
	dividendMinExpiryDays = 14
	dividendMaxExpiryDays = 45
	dividendMinPremium    = 0.10
	dividendMaxPerSymbol  = 2
)

// DividendMomentum sells PUTs on uptrending dividend payers, preferring
// expiries that straddle the next ex-dividend date so the short PUT benefits
// from pre-dividend support in the underlying.
type DividendMomentum struct{}

func NewDividendMomentum() *DividendMomentum { return &DividendMomentum{} }

func (s *DividendMomentum) Name() string { return "DividendMomentum" }

func (s *DividendMomentum) Description() string {
	return "Sells PUTs on uptrending dividend payers around the ex-dividend date"
}

func (s *DividendMomentum) TargetExpiryDays() (int, int) {
	return dividendMinExpiryDays, dividendMaxExpiryDays
}

func (s *DividendMomentum) Evaluate(data *models.AggregatedMarketData) []models.Recommendation {
	if data.MarketData == nil || data.Trend == nil || data.Dividend == nil || len(data.PutOptions) == 0 {
		return nil
	}
	if data.Trend.Direction != models.TrendUp {
		return nil
	}

	price := data.MarketData.CurrentPrice
	if price <= 0 {
		return nil
	}
	exDate := data.Dividend.ExDividendDate

	var recs []models.Recommendation
	for _, opt := range data.PutOptions {
		if opt.DaysToExpiry < dividendMinExpiryDays || opt.DaysToExpiry > dividendMaxExpiryDays {
			continue
		}
		if opt.Strike <= 0 || opt.Strike >= price {
			continue
		}
		if roundCents(opt.MidPrice()) < dividendMinPremium {
			continue
		}

		score := data.Trend.Confidence * 0.5
		if !exDate.IsZero() && opt.Expiry.After(exDate) {
			score += 0.3
		}
		otm := (price - opt.Strike) / price
		score += clamp01(otm/0.10) * 0.2

		recs = append(recs, newRecommendation(s.Name(), data, opt, score, data.Trend.ExpectedGrowthPercent))
	}

	sortRecommendations(recs)
	if len(recs) > dividendMaxPerSymbol {
		recs = recs[:dividendMaxPerSymbol]
	}
	return recs
}
