// Package tradier provides a client for the Tradier options exchange API.
// It serves both the option-chain feed and the underlying discovery used to
// build the scan universe.
package tradier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

// Compile-time interface checks
var (
	_ interfaces.OptionsClient    = (*Client)(nil)
	_ interfaces.OptionsDiscovery = (*Client)(nil)
)

const (
	DefaultBaseURL   = "https://api.tradier.com/v1"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// DiscoveryFilters bound the universe returned by DiscoverUnderlyings.
type DiscoveryFilters struct {
	MinOpenInterest            int
	MinVolume                  int
	SampleOptionsPerUnderlying int
	MaxExpiryDays              int
}

// Client implements the OptionsClient and OptionsDiscovery interfaces
type Client struct {
	baseURL    string
	apiKey     string // long-lived credential exchanged for bearer tokens
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	retry      common.RetryPolicy
	filters    DiscoveryFilters

	tokenMu     sync.Mutex
	bearerToken string
	tokenExpiry time.Time
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

// WithDiscoveryFilters sets the universe liquidity filters
func WithDiscoveryFilters(filters DiscoveryFilters) ClientOption {
	return func(c *Client) {
		c.filters = filters
	}
}

// NewClient creates a new Tradier client
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
		filters: DiscoveryFilters{
			MinOpenInterest:            100,
			MinVolume:                  10,
			SampleOptionsPerUnderlying: 4,
			MaxExpiryDays:              45,
		},
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
	return fmt.Sprintf("Tradier API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// HTTPStatus returns the HTTP status code for retry classification.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// RetryAfterHint returns the server-supplied Retry-After delay, if any.
func (e *APIError) RetryAfterHint() time.Duration { return e.RetryAfter }

// tokenResponse is the bearer token exchange response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ensureToken returns a bearer token, exchanging the API key for a fresh one
// when none is held or the held one has expired.
func (c *Client) ensureToken(ctx context.Context, force bool) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if !force && c.bearerToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.bearerToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/oauth/accesstoken", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   "/oauth/accesstoken",
		}
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned empty access token")
	}

	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 1200
	}
	c.bearerToken = token.AccessToken
	// Refresh one minute early so in-flight requests don't race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)

	c.logger.Debug().Time("expiry", c.tokenExpiry).Msg("Tradier bearer token refreshed")
	return c.bearerToken, nil
}

// get performs an authenticated, rate-limited GET with retries per the
// policy. An expired bearer token is refreshed transparently at most once
// per call.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	return c.retry.Do(ctx, "tradier "+path, c.logger, func(ctx context.Context) error {
		err := c.getOnce(ctx, path, params, result, false)

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			// Credential expired mid-flight: re-authenticate once and retry.
			return c.getOnce(ctx, path, params, result, true)
		}
		return err
	})
}

func (c *Client) getOnce(ctx context.Context, path string, params url.Values, result interface{}, forceAuth bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	token, err := c.ensureToken(ctx, forceAuth)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Tradier API request")

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

// expirationsResponse represents the option expirations API response
type expirationsResponse struct {
	Expirations struct {
		Date []string `json:"date"`
	} `json:"expirations"`
}

// chainResponse represents the option chain API response
type chainResponse struct {
	Options struct {
		Option []chainOption `json:"option"`
	} `json:"options"`
}

type chainOption struct {
	Symbol         string  `json:"symbol"`
	Underlying     string  `json:"underlying"`
	Strike         float64 `json:"strike"`
	OptionType     string  `json:"option_type"` // "put" or "call"
	ExpirationDate string  `json:"expiration_date"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Last           float64 `json:"last"`
	Volume         int64   `json:"volume"`
	OpenInterest   int64   `json:"open_interest"`
	Greeks         *struct {
		MidIV float64 `json:"mid_iv"`
	} `json:"greeks"`
}

// daysUntil computes whole days from today until the date, rounding up.
func daysUntil(date time.Time, now time.Time) int {
	return int(math.Ceil(date.Sub(now).Hours() / 24))
}

// GetShortTermPutOptions returns PUT contracts for the symbol expiring
// within [minDays, maxDays] from today.
func (c *Client) GetShortTermPutOptions(ctx context.Context, symbol string, minDays, maxDays int) ([]models.OptionContract, error) {
	now := time.Now()

	params := url.Values{}
	params.Set("symbol", symbol)

	var expiries expirationsResponse
	if err := c.get(ctx, "/markets/options/expirations", params, &expiries); err != nil {
		return nil, err
	}

	var contracts []models.OptionContract
	for _, dateStr := range expiries.Expirations.Date {
		expiry, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration date %q for %s: %w", dateStr, symbol, err)
		}

		days := daysUntil(expiry, now)
		if days < minDays || days > maxDays {
			continue
		}

		chain, err := c.getChain(ctx, symbol, dateStr)
		if err != nil {
			return nil, err
		}

		for _, opt := range chain {
			if opt.OptionType != "put" {
				continue
			}
			iv := 0.0
			if opt.Greeks != nil {
				iv = opt.Greeks.MidIV
			}
			contracts = append(contracts, models.OptionContract{
				Symbol:            symbol,
				ExchangeSymbol:    opt.Symbol,
				Strike:            opt.Strike,
				Expiry:            expiry,
				DaysToExpiry:      days,
				Bid:               opt.Bid,
				Ask:               opt.Ask,
				Last:              opt.Last,
				ImpliedVolatility: iv,
				Volume:            opt.Volume,
				OpenInterest:      opt.OpenInterest,
			})
		}
	}

	sort.Slice(contracts, func(i, j int) bool {
		if !contracts[i].Expiry.Equal(contracts[j].Expiry) {
			return contracts[i].Expiry.Before(contracts[j].Expiry)
		}
		return contracts[i].Strike < contracts[j].Strike
	})

	return contracts, nil
}

func (c *Client) getChain(ctx context.Context, symbol, expiration string) ([]chainOption, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", expiration)
	params.Set("greeks", "true")

	var chain chainResponse
	if err := c.get(ctx, "/markets/options/chains", params, &chain); err != nil {
		return nil, err
	}
	return chain.Options.Option, nil
}

// underlyingsResponse represents the optionable-symbols lookup response
type underlyingsResponse struct {
	Symbols []struct {
		Symbol string `json:"symbol"`
	} `json:"symbols"`
}

// DiscoverUnderlyings returns the optionable symbols whose near-term PUT
// sample passes the configured liquidity filters, deduplicated and sorted.
func (c *Client) DiscoverUnderlyings(ctx context.Context) ([]string, error) {
	var lookup underlyingsResponse
	if err := c.get(ctx, "/markets/options/lookup", nil, &lookup); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var universe []string
	for _, entry := range lookup.Symbols {
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true

		liquid, err := c.hasLiquidOptions(ctx, symbol)
		if err != nil {
			// One bad underlying must not sink discovery.
			c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Discovery liquidity check failed")
			continue
		}
		if liquid {
			universe = append(universe, symbol)
		}
	}

	sort.Strings(universe)
	c.logger.Info().Int("candidates", len(lookup.Symbols)).Int("universe", len(universe)).Msg("Universe discovery complete")
	return universe, nil
}

// hasLiquidOptions samples up to SampleOptionsPerUnderlying near-term puts
// and requires each sampled contract to pass the liquidity floors.
func (c *Client) hasLiquidOptions(ctx context.Context, symbol string) (bool, error) {
	contracts, err := c.GetShortTermPutOptions(ctx, symbol, 0, c.filters.MaxExpiryDays)
	if err != nil {
		return false, err
	}
	if len(contracts) == 0 {
		return false, nil
	}

	sample := c.filters.SampleOptionsPerUnderlying
	if sample <= 0 || sample > len(contracts) {
		sample = len(contracts)
	}

	passed := 0
	for _, contract := range contracts[:sample] {
		if contract.OpenInterest >= int64(c.filters.MinOpenInterest) &&
			contract.Volume >= int64(c.filters.MinVolume) {
			passed++
		}
	}
	return passed > 0, nil
}
