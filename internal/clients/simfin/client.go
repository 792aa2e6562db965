// Package simfin provides a client for the SimFin fundamentals feed: a
// per-symbol API lookup and the bulk CSV ingest path.
package simfin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
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
var _ interfaces.FundamentalsClient = (*Client)(nil)

const (
	DefaultBaseURL   = "https://backend.simfin.com/api/v3"
	DefaultTimeout   = 60 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// Client implements the FundamentalsClient interface
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

// NewClient creates a new SimFin client
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
	return fmt.Sprintf("SimFin API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// HTTPStatus returns the HTTP status code for retry classification.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// RetryAfterHint returns the server-supplied Retry-After delay, if any.
func (e *APIError) RetryAfterHint() time.Duration { return e.RetryAfter }

// get performs an authenticated, rate-limited GET with retries.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	return c.retry.Do(ctx, "simfin "+path, c.logger, func(ctx context.Context) error {
		return c.getOnce(ctx, path, params, result)
	})
}

func (c *Client) getOnce(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("SimFin API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("simfin %s: %w", path, models.ErrNotFound)
	}
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

// derivedResponse is the per-symbol derived metrics API response.
type derivedResponse struct {
	Ticker            string  `json:"ticker"`
	ReportDate        string  `json:"reportDate"`
	PiotroskiFScore   int     `json:"piotroskiFScore"`
	AltmanZScore      float64 `json:"altmanZScore"`
	ROA               float64 `json:"roa"`
	DebtToEquity      float64 `json:"debtToEquity"`
	CurrentRatio      float64 `json:"currentRatio"`
	MarketCap         float64 `json:"marketCap"`
	TotalAssets       float64 `json:"totalAssets"`
	TotalLiabilities  float64 `json:"totalLiabilities"`
	TotalEquity       float64 `json:"totalEquity"`
	Revenue           float64 `json:"revenue"`
	NetIncome         float64 `json:"netIncome"`
	OperatingCashFlow float64 `json:"operatingCashFlow"`
	SharesOutstanding int64   `json:"sharesOutstanding"`
}

// GetBySymbol retrieves the latest derived fundamentals for one symbol.
func (c *Client) GetBySymbol(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	params := url.Values{}
	params.Set("ticker", symbol)

	var rows []derivedResponse
	if err := c.get(ctx, "/companies/statements/derived", params, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fundamentals for %s: %w", symbol, models.ErrNotFound)
	}

	row := rows[0]
	reportDate, err := time.Parse("2006-01-02", row.ReportDate)
	if err != nil {
		return nil, fmt.Errorf("invalid report date %q for %s: %w", row.ReportDate, symbol, err)
	}
	if row.PiotroskiFScore < 0 || row.PiotroskiFScore > 9 {
		return nil, fmt.Errorf("invalid F-Score %d for %s", row.PiotroskiFScore, symbol)
	}

	return &models.Fundamentals{
		Symbol:            symbol,
		ReportDate:        reportDate,
		PiotroskiFScore:   row.PiotroskiFScore,
		AltmanZScore:      row.AltmanZScore,
		ROA:               row.ROA,
		DebtToEquity:      row.DebtToEquity,
		CurrentRatio:      row.CurrentRatio,
		MarketCapBillions: row.MarketCap / 1e9,
		TotalAssets:       row.TotalAssets,
		TotalLiabilities:  row.TotalLiabilities,
		TotalEquity:       row.TotalEquity,
		Revenue:           row.Revenue,
		NetIncome:         row.NetIncome,
		OperatingCashFlow: row.OperatingCashFlow,
		SharesOutstanding: row.SharesOutstanding,
	}, nil
}
