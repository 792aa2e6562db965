package models

import "time"

// TrendDirection classifies the recent price trend of an underlying.
type TrendDirection string

const (
	TrendUp       TrendDirection = "up"
	TrendDown     TrendDirection = "down"
	TrendSideways TrendDirection = "sideways"
)

// MarketData is the current price snapshot for one symbol.
type MarketData struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"current_price"`
	PreviousClose float64   `json:"previous_close"`
	DayHigh       float64   `json:"day_high"`
	DayLow        float64   `json:"day_low"`
	Volume        int64     `json:"volume"`
	AsOf          time.Time `json:"as_of"`
}

// EODBar is one end-of-day price bar.
type EODBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// TrendAnalysis summarises price direction over a lookback window.
type TrendAnalysis struct {
	Symbol                string         `json:"symbol"`
	Direction             TrendDirection `json:"direction"`
	Confidence            float64        `json:"confidence"`     // [0,1]
	TrendStrength         float64        `json:"trend_strength"` // [0,1]
	ExpectedGrowthPercent float64        `json:"expected_growth_percent"`
	LookbackDays          int            `json:"lookback_days"`
}

// OptionContract is one exchange-listed PUT contract candidate.
type OptionContract struct {
	Symbol            string    `json:"symbol"`          // underlying, e.g. "AAPL"
	ExchangeSymbol    string    `json:"exchange_symbol"` // OCC contract symbol
	Strike            float64   `json:"strike"`
	Expiry            time.Time `json:"expiry"`
	DaysToExpiry      int       `json:"days_to_expiry"`
	Bid               float64   `json:"bid"`
	Ask               float64   `json:"ask"`
	Last              float64   `json:"last"`
	ImpliedVolatility float64   `json:"implied_volatility"` // annualised, e.g. 0.35
	Volume            int64     `json:"volume"`
	OpenInterest      int64     `json:"open_interest"`
}

// MidPrice returns the bid/ask midpoint, falling back to the last trade.
func (o *OptionContract) MidPrice() float64 {
	if o.Bid > 0 && o.Ask > 0 {
		return (o.Bid + o.Ask) / 2
	}
	return o.Last
}

// DividendInfo carries upcoming dividend data for an underlying.
type DividendInfo struct {
	Symbol        string    `json:"symbol"`
	ExDividendDate time.Time `json:"ex_dividend_date"`
	PayDate       time.Time `json:"pay_date"`
	Amount        float64   `json:"amount"`
	YieldPercent  float64   `json:"yield_percent"`
}

// FinancialHealthMetrics is the fundamentals subset strategies care about.
type FinancialHealthMetrics struct {
	PiotroskiFScore int     `json:"piotroski_f_score"`
	AltmanZScore    float64 `json:"altman_z_score"`
	ROA             float64 `json:"roa"`
	DebtToEquity    float64 `json:"debt_to_equity"`
	CurrentRatio    float64 `json:"current_ratio"`
}

// AggregatedMarketData bundles everything the strategies see for one symbol
// during one scan. Any field other than Symbol may be absent when its
// provider failed.
type AggregatedMarketData struct {
	Symbol     string                  `json:"symbol"`
	MarketData *MarketData             `json:"market_data,omitempty"`
	Trend      *TrendAnalysis          `json:"trend,omitempty"`
	PutOptions []OptionContract        `json:"put_options,omitempty"`
	Dividend   *DividendInfo           `json:"dividend,omitempty"`
	Health     *FinancialHealthMetrics `json:"health,omitempty"`
}

// Recommendation is one PUT-selling candidate produced by a strategy.
type Recommendation struct {
	Symbol                string    `json:"symbol"`
	StrategyName          string    `json:"strategy_name"`
	CurrentPrice          float64   `json:"current_price"`
	StrikePrice           float64   `json:"strike_price"`
	Expiry                time.Time `json:"expiry"`
	DaysToExpiry          int       `json:"days_to_expiry"`
	Premium               float64   `json:"premium"`
	Breakeven             float64   `json:"breakeven"`
	Confidence            float64   `json:"confidence"`
	ExpectedGrowthPercent float64   `json:"expected_growth_percent"`
	ExchangeSymbol        string    `json:"exchange_symbol"`
	OptionPrice           float64   `json:"option_price"`
	Volume                int64     `json:"volume"`
	OpenInterest          int64     `json:"open_interest"`
}
