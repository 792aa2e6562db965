// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

// Compile-time interface check
var _ interfaces.MarketDataClient = (*Client)(nil)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	retry      common.RetryPolicy
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetryPolicy sets the transient-failure retry policy
func WithRetryPolicy(policy common.RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		retry:   common.RetryPolicy{MaxRetries: 1},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// HTTPStatus returns the HTTP status code for retry classification.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// RetryAfterHint returns the server-supplied Retry-After delay, if any.
func (e *APIError) RetryAfterHint() time.Duration { return e.RetryAfter }

// get performs a rate-limited GET request with retries per the policy.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	return c.retry.Do(ctx, "eodhd "+path, c.logger, func(ctx context.Context) error {
		return c.getOnce(ctx, path, params, result)
	})
}

func (c *Client) getOnce(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// Add API key
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// quoteResponse represents the real-time quote API response
type quoteResponse struct {
	Code          string      `json:"code"`
	Close         flexFloat64 `json:"close"`
	PreviousClose flexFloat64 `json:"previousClose"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Volume        int64       `json:"volume"`
	Timestamp     int64       `json:"timestamp"`
}

// GetMarketData retrieves the current price snapshot for a symbol.
func (c *Client) GetMarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	path := fmt.Sprintf("/real-time/%s", symbol)

	var resp quoteResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Close <= 0 {
		return nil, fmt.Errorf("invalid quote for %s: close price %.2f", symbol, float64(resp.Close))
	}

	asOf := time.Now()
	if resp.Timestamp > 0 {
		asOf = time.Unix(resp.Timestamp, 0)
	}

	return &models.MarketData{
		Symbol:        symbol,
		CurrentPrice:  float64(resp.Close),
		PreviousClose: float64(resp.PreviousClose),
		DayHigh:       float64(resp.High),
		DayLow:        float64(resp.Low),
		Volume:        resp.Volume,
		AsOf:          asOf,
	}, nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// getEOD retrieves end-of-day bars for the trailing window, oldest first.
func (c *Client) getEOD(ctx context.Context, symbol string, days int) ([]models.EODBar, error) {
	now := time.Now()
	urlParams := url.Values{}
	urlParams.Set("period", "d")
	urlParams.Set("order", "a")
	urlParams.Set("from", now.AddDate(0, 0, -days).Format("2006-01-02"))
	urlParams.Set("to", now.Format("2006-01-02"))

	path := fmt.Sprintf("/eod/%s", symbol)

	var bars []eodBarResponse
	if err := c.get(ctx, path, urlParams, &bars); err != nil {
		return nil, err
	}

	out := make([]models.EODBar, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid bar date %q for %s: %w", bar.Date, symbol, err)
		}
		out = append(out, models.EODBar{
			Date:   date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		})
	}
	return out, nil
}

// AnalyzeTrend computes trend direction and strength from the trailing EOD
// bars. The math is a least-squares fit over closes, so identical bars
// always produce identical output.
func (c *Client) AnalyzeTrend(ctx context.Context, symbol string, days int) (*models.TrendAnalysis, error) {
	if days <= 0 {
		days = 30
	}

	bars, err := c.getEOD(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if len(bars) < 5 {
		return nil, fmt.Errorf("insufficient history for %s: %d bars", symbol, len(bars))
	}

	return ComputeTrend(symbol, bars, days), nil
}

// ComputeTrend fits a least-squares line over the closes and classifies the
// slope. Exported so tests can drive it with fixed bars.
func ComputeTrend(symbol string, bars []models.EODBar, lookbackDays int) *models.TrendAnalysis {
	n := float64(len(bars))
	var sumX, sumY, sumXY, sumXX float64
	for i, bar := range bars {
		x := float64(i)
		sumX += x
		sumY += bar.Close
		sumXY += x * bar.Close
		sumXX += x * x
	}

	meanY := sumY / n
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)

	// Normalise slope to percent-per-day of the mean price.
	slopePct := 0.0
	if meanY > 0 {
		slopePct = slope / meanY * 100
	}

	// R² measures how well the line explains the closes.
	meanX := sumX / n
	var ssTot, ssRes float64
	intercept := meanY - slope*meanX
	for i, bar := range bars {
		fit := intercept + slope*float64(i)
		ssRes += (bar.Close - fit) * (bar.Close - fit)
		ssTot += (bar.Close - meanY) * (bar.Close - meanY)
	}
	rSquared := 0.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}
	if rSquared < 0 {
		rSquared = 0
	}

	direction := models.TrendSideways
	switch {
	case slopePct > 0.05:
		direction = models.TrendUp
	case slopePct < -0.05:
		direction = models.TrendDown
	}

	strength := math.Min(math.Abs(slopePct)/0.5, 1.0)
	growth := slopePct * float64(len(bars))

	return &models.TrendAnalysis{
		Symbol:                symbol,
		Direction:             direction,
		Confidence:            rSquared,
		TrendStrength:         strength,
		ExpectedGrowthPercent: growth,
		LookbackDays:          lookbackDays,
	}
}

// dividendResponse represents one row of the dividends API response
type dividendResponse struct {
	Date          string      `json:"date"` // ex-dividend date
	PaymentDate   string      `json:"paymentDate"`
	Value         flexFloat64 `json:"value"`
	UnadjustedVal flexFloat64 `json:"unadjustedValue"`
	Yield         flexFloat64 `json:"yield"`
}

// GetDividendInfo returns the next upcoming dividend for the symbol, or
// models.ErrNotFound when none is scheduled.
func (c *Client) GetDividendInfo(ctx context.Context, symbol string) (*models.DividendInfo, error) {
	now := time.Now()
	urlParams := url.Values{}
	urlParams.Set("from", now.Format("2006-01-02"))

	path := fmt.Sprintf("/div/%s", symbol)

	var rows []dividendResponse
	if err := c.get(ctx, path, urlParams, &rows); err != nil {
		return nil, err
	}

	for _, row := range rows {
		exDate, err := time.Parse("2006-01-02", row.Date)
		if err != nil || exDate.Before(now) {
			continue
		}
		payDate, _ := time.Parse("2006-01-02", row.PaymentDate)
		return &models.DividendInfo{
			Symbol:         symbol,
			ExDividendDate: exDate,
			PayDate:        payDate,
			Amount:         float64(row.Value),
			YieldPercent:   float64(row.Yield) * 100,
		}, nil
	}

	return nil, fmt.Errorf("upcoming dividend for %s: %w", symbol, models.ErrNotFound)
}
