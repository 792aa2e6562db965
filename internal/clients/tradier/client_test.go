package tradier

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/putscan/internal/common"
)

// fakeExchange serves the token endpoint and dispatches market requests to fn.
type fakeExchange struct {
	tokenExchanges atomic.Int64
	handler        http.HandlerFunc
}

func (f *fakeExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth/accesstoken" {
		n := f.tokenExchanges.Add(1)
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":1200}`, n)
		return
	}
	f.handler(w, r)
}

func newTestClient(t *testing.T, exchange *fakeExchange, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(exchange)
	t.Cleanup(server.Close)

	base := []ClientOption{
		WithBaseURL(server.URL),
		WithLogger(common.NewSilentLogger()),
		WithRateLimit(1000),
	}
	return NewClient("refresh-key", append(base, opts...)...)
}

func expiryJSON(dates ...string) string {
	out := `{"expirations":{"date":[`
	for i, d := range dates {
		if i > 0 {
			out += ","
		}
		out += `"` + d + `"`
	}
	return out + `]}}`
}

func TestReauthenticatesOnceOn401(t *testing.T) {
	marketRequests := 0
	exchange := &fakeExchange{}
	exchange.handler = func(w http.ResponseWriter, r *http.Request) {
		marketRequests++
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			// First credential is stale by the time it is used.
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		fmt.Fprint(w, expiryJSON())
	}

	client := newTestClient(t, exchange)

	contracts, err := client.GetShortTermPutOptions(context.Background(), "AAPL", 14, 21)
	require.NoError(t, err)
	assert.Empty(t, contracts)
	assert.Equal(t, int64(2), exchange.tokenExchanges.Load(), "exactly one re-auth")
	assert.Equal(t, 2, marketRequests, "the failed request is retried once")
}

func TestBearerTokenIsReused(t *testing.T) {
	exchange := &fakeExchange{}
	exchange.handler = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, expiryJSON())
	}

	client := newTestClient(t, exchange)

	for i := 0; i < 3; i++ {
		_, err := client.GetShortTermPutOptions(context.Background(), "AAPL", 14, 21)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), exchange.tokenExchanges.Load())
}

func TestGetShortTermPutOptionsFiltersWindowAndType(t *testing.T) {
	now := time.Now()
	near := now.AddDate(0, 0, 5).Format("2006-01-02")
	inside := now.AddDate(0, 0, 17).Format("2006-01-02")
	far := now.AddDate(0, 0, 60).Format("2006-01-02")

	chainsFetched := []string{}
	exchange := &fakeExchange{}
	exchange.handler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets/options/expirations":
			fmt.Fprint(w, expiryJSON(near, inside, far))
		case "/markets/options/chains":
			chainsFetched = append(chainsFetched, r.URL.Query().Get("expiration"))
			fmt.Fprintf(w, `{"options":{"option":[
				{"symbol":"AAPL260918P00180000","strike":180,"option_type":"put","expiration_date":"%s","bid":1.20,"ask":1.30,"volume":50,"open_interest":800,"greeks":{"mid_iv":0.34}},
				{"symbol":"AAPL260918C00190000","strike":190,"option_type":"call","expiration_date":"%s","bid":2.00,"ask":2.10,"volume":40,"open_interest":600}
			]}}`, inside, inside)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}

	client := newTestClient(t, exchange)

	contracts, err := client.GetShortTermPutOptions(context.Background(), "AAPL", 14, 21)
	require.NoError(t, err)

	assert.Equal(t, []string{inside}, chainsFetched, "only the in-window expiry is fetched")
	require.Len(t, contracts, 1, "calls are dropped")
	assert.Equal(t, 180.0, contracts[0].Strike)
	assert.Equal(t, 17, contracts[0].DaysToExpiry)
	assert.Equal(t, 0.34, contracts[0].ImpliedVolatility)
	assert.Equal(t, int64(800), contracts[0].OpenInterest)
}

func TestGetShortTermPutOptionsRejectsBadDate(t *testing.T) {
	exchange := &fakeExchange{}
	exchange.handler = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, expiryJSON("not-a-date"))
	}

	client := newTestClient(t, exchange)

	_, err := client.GetShortTermPutOptions(context.Background(), "AAPL", 14, 21)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid expiration date")
}

func TestDiscoverUnderlyingsDedupesAndFiltersLiquidity(t *testing.T) {
	inside := time.Now().AddDate(0, 0, 17).Format("2006-01-02")

	chainFor := func(symbol string) string {
		switch symbol {
		case "AAPL":
			return fmt.Sprintf(`{"options":{"option":[{"symbol":"p1","strike":180,"option_type":"put","expiration_date":"%s","bid":1.2,"ask":1.3,"volume":50,"open_interest":800}]}}`, inside)
		case "MSFT":
			// A chain exists but nothing passes the liquidity floors.
			return fmt.Sprintf(`{"options":{"option":[{"symbol":"p2","strike":400,"option_type":"put","expiration_date":"%s","bid":0.5,"ask":0.6,"volume":1,"open_interest":2}]}}`, inside)
		default:
			return `{"options":{"option":[]}}`
		}
	}

	exchange := &fakeExchange{}
	exchange.handler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets/options/lookup":
			fmt.Fprint(w, `{"symbols":[{"symbol":"aapl"},{"symbol":"AAPL"},{"symbol":"msft"},{"symbol":"xxx"},{"symbol":" "}]}`)
		case "/markets/options/expirations":
			if r.URL.Query().Get("symbol") == "XXX" {
				fmt.Fprint(w, expiryJSON())
				return
			}
			fmt.Fprint(w, expiryJSON(inside))
		case "/markets/options/chains":
			fmt.Fprint(w, chainFor(r.URL.Query().Get("symbol")))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}

	client := newTestClient(t, exchange, WithDiscoveryFilters(DiscoveryFilters{
		MinOpenInterest:            100,
		MinVolume:                  10,
		SampleOptionsPerUnderlying: 4,
		MaxExpiryDays:              45,
	}))

	universe, err := client.DiscoverUnderlyings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, universe)
}
