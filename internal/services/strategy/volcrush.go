package strategy

import (
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

// Compile-time interface check
var _ interfaces.Strategy = (*VolatilityCrush)(nil)

const (
	volCrushMinExpiryDays = 14
	volCrushMaxExpiryDays = 30
	volCrushFloorIV       = 0.25 // all-below means nothing worth selling
	volCrushCeilingIV     = 0.60 // above this the premium prices in real risk
	volCrushPreferLowIV   = 0.30
	volCrushPreferHighIV  = 0.50
	volCrushMinOTM        = 0.05
	volCrushMaxOTM        = 0.12
	volCrushMinPremium    = 1.0
	volCrushMaxPerSymbol  = 2
)

// VolatilityCrush sells elevated-IV PUTs in the 5-12% OTM band, expecting
// implied volatility to revert after the premium is collected.
type VolatilityCrush struct{}

func NewVolatilityCrush() *VolatilityCrush { return &VolatilityCrush{} }

func (s *VolatilityCrush) Name() string { return "VolatilityCrush" }

func (s *VolatilityCrush) Description() string {
	return "Sells rich-premium PUTs when implied volatility is elevated but not extreme"
}

func (s *VolatilityCrush) TargetExpiryDays() (int, int) {
	return volCrushMinExpiryDays, volCrushMaxExpiryDays
}

func (s *VolatilityCrush) Evaluate(data *models.AggregatedMarketData) []models.Recommendation {
	if data.MarketData == nil || data.Trend == nil || len(data.PutOptions) == 0 {
		return nil
	}
	if data.Trend.Direction == models.TrendDown && data.Trend.TrendStrength >= 0.75 {
		return nil
	}

	price := data.MarketData.CurrentPrice
	if price <= 0 {
		return nil
	}

	anyElevated := false
	for _, opt := range data.PutOptions {
		if opt.ImpliedVolatility >= volCrushFloorIV {
			anyElevated = true
			break
		}
	}
	if !anyElevated {
		return nil
	}

	candidates := make([]models.OptionContract, 0, len(data.PutOptions))
	for _, opt := range data.PutOptions {
		if opt.DaysToExpiry < volCrushMinExpiryDays || opt.DaysToExpiry > volCrushMaxExpiryDays {
			continue
		}
		if opt.Strike <= 0 || opt.Strike >= price {
			continue
		}
		if opt.ImpliedVolatility > volCrushCeilingIV || opt.ImpliedVolatility < volCrushFloorIV {
			continue
		}
		if roundCents(opt.MidPrice()) <= volCrushMinPremium {
			continue
		}
		candidates = append(candidates, opt)
	}
	sortContractsByStrike(candidates)

	var recs []models.Recommendation
	for _, opt := range candidates {
		otm := (price - opt.Strike) / price
		recs = append(recs, newRecommendation(s.Name(), data, opt, s.score(opt, otm), data.Trend.ExpectedGrowthPercent))
	}

	sortRecommendations(recs)
	if len(recs) > volCrushMaxPerSymbol {
		recs = recs[:volCrushMaxPerSymbol]
	}
	return recs
}

// score favours the preferred IV band and the 5-12% OTM cushion; contracts
// outside either band still qualify but rank behind those inside.
func (s *VolatilityCrush) score(opt models.OptionContract, otm float64) float64 {
	score := 0.4

	if opt.ImpliedVolatility >= volCrushPreferLowIV && opt.ImpliedVolatility <= volCrushPreferHighIV {
		score += 0.3
	} else {
		score += 0.1
	}

	if otm >= volCrushMinOTM && otm <= volCrushMaxOTM {
		score += 0.3
	} else if otm > 0 {
		score += 0.1
	}

	return clamp01(score)
}
