// Package models defines data structures for Putscan
package models

import "time"

// StockData is the unified per-symbol record. Two independent feeds write
// into it: the SimFin fundamentals feed and the options-exchange market feed.
// Each feed owns its own field group and timestamp, and an upsert from one
// feed must never disturb the other feed's fields.
type StockData struct {
	Symbol           string    `json:"symbol" badgerhold:"key"`
	ModificationTime time.Time `json:"modification_time"`

	// Fundamentals layer — written by the SimFin feed.
	ReportDate         time.Time `json:"report_date,omitempty"`
	PiotroskiFScore    int       `json:"piotroski_f_score,omitempty"`
	AltmanZScore       float64   `json:"altman_z_score,omitempty"`
	ROA                float64   `json:"roa,omitempty"`
	DebtToEquity       float64   `json:"debt_to_equity,omitempty"`
	CurrentRatio       float64   `json:"current_ratio,omitempty"`
	MarketCapBillions  float64   `json:"market_cap_billions,omitempty"`
	TotalAssets        float64   `json:"total_assets,omitempty"`
	TotalLiabilities   float64   `json:"total_liabilities,omitempty"`
	TotalEquity        float64   `json:"total_equity,omitempty"`
	Revenue            float64   `json:"revenue,omitempty"`
	NetIncome          float64   `json:"net_income,omitempty"`
	OperatingCashFlow  float64   `json:"operating_cash_flow,omitempty"`
	SharesOutstanding  int64     `json:"shares_outstanding,omitempty"`
	FundamentalsUpdatedAt time.Time `json:"fundamentals_updated_at,omitempty"`

	// Market/options layer — written by the exchange feed.
	CurrentPrice          float64   `json:"current_price,omitempty"`
	StrikePrice           float64   `json:"strike_price,omitempty"`
	Expiry                time.Time `json:"expiry,omitempty"`
	DaysToExpiry          int       `json:"days_to_expiry,omitempty"`
	Premium               float64   `json:"premium,omitempty"`
	Breakeven             float64   `json:"breakeven,omitempty"`
	Confidence            float64   `json:"confidence,omitempty"`
	ExpectedGrowthPercent float64   `json:"expected_growth_percent,omitempty"`
	StrategyName          string    `json:"strategy_name,omitempty"`
	ExchangeSymbol        string    `json:"exchange_symbol,omitempty"`
	OptionPrice           float64   `json:"option_price,omitempty"`
	Volume                int64     `json:"volume,omitempty"`
	OpenInterest          int64     `json:"open_interest,omitempty"`
	MarketUpdatedAt       time.Time `json:"market_updated_at,omitempty"`
}

// HasFundamentals reports whether the fundamentals layer has ever been written.
func (s *StockData) HasFundamentals() bool {
	return !s.FundamentalsUpdatedAt.IsZero()
}

// HasMarketData reports whether the market/options layer has ever been written.
func (s *StockData) HasMarketData() bool {
	return !s.MarketUpdatedAt.IsZero()
}

// Fundamentals is one row from the SimFin feed: the computed health scores
// plus the raw statement figures they derive from.
type Fundamentals struct {
	Symbol            string    `json:"symbol"`
	ReportDate        time.Time `json:"report_date"`
	PiotroskiFScore   int       `json:"piotroski_f_score"`
	AltmanZScore      float64   `json:"altman_z_score"`
	ROA               float64   `json:"roa"`
	DebtToEquity      float64   `json:"debt_to_equity"`
	CurrentRatio      float64   `json:"current_ratio"`
	MarketCapBillions float64   `json:"market_cap_billions"`
	TotalAssets       float64   `json:"total_assets"`
	TotalLiabilities  float64   `json:"total_liabilities"`
	TotalEquity       float64   `json:"total_equity"`
	Revenue           float64   `json:"revenue"`
	NetIncome         float64   `json:"net_income"`
	OperatingCashFlow float64   `json:"operating_cash_flow"`
	SharesOutstanding int64     `json:"shares_outstanding"`
}

// ApplyFundamentals writes the fundamentals layer onto the record, leaving
// the market layer untouched.
func (s *StockData) ApplyFundamentals(f *Fundamentals, now time.Time) {
	s.ReportDate = f.ReportDate
	s.PiotroskiFScore = f.PiotroskiFScore
	s.AltmanZScore = f.AltmanZScore
	s.ROA = f.ROA
	s.DebtToEquity = f.DebtToEquity
	s.CurrentRatio = f.CurrentRatio
	s.MarketCapBillions = f.MarketCapBillions
	s.TotalAssets = f.TotalAssets
	s.TotalLiabilities = f.TotalLiabilities
	s.TotalEquity = f.TotalEquity
	s.Revenue = f.Revenue
	s.NetIncome = f.NetIncome
	s.OperatingCashFlow = f.OperatingCashFlow
	s.SharesOutstanding = f.SharesOutstanding
	s.FundamentalsUpdatedAt = now
	s.touch()
}

// ApplyMarketLayer writes the market/options layer from a recommendation,
// leaving the fundamentals layer untouched.
func (s *StockData) ApplyMarketLayer(rec *Recommendation, now time.Time) {
	s.CurrentPrice = rec.CurrentPrice
	s.StrikePrice = rec.StrikePrice
	s.Expiry = rec.Expiry
	s.DaysToExpiry = rec.DaysToExpiry
	s.Premium = rec.Premium
	s.Breakeven = rec.Breakeven
	s.Confidence = rec.Confidence
	s.ExpectedGrowthPercent = rec.ExpectedGrowthPercent
	s.StrategyName = rec.StrategyName
	s.ExchangeSymbol = rec.ExchangeSymbol
	s.OptionPrice = rec.OptionPrice
	s.Volume = rec.Volume
	s.OpenInterest = rec.OpenInterest
	s.MarketUpdatedAt = now
	s.touch()
}

// touch maintains ModificationTime = max(FundamentalsUpdatedAt, MarketUpdatedAt).
func (s *StockData) touch() {
	s.ModificationTime = s.FundamentalsUpdatedAt
	if s.MarketUpdatedAt.After(s.ModificationTime) {
		s.ModificationTime = s.MarketUpdatedAt
	}
}
