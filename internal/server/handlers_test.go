package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/putscan/internal/app"
	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/models"
)

type mockOrchestrator struct {
	triggerErr error
	triggered  int
	snapshot   models.ScanSnapshot
}

func (m *mockOrchestrator) Start() error             { return nil }
func (m *mockOrchestrator) Stop(context.Context) error { return nil }

func (m *mockOrchestrator) TriggerNow() error {
	m.triggered++
	return m.triggerErr
}

func (m *mockOrchestrator) Snapshot() models.ScanSnapshot { return m.snapshot }

type mockStockDataStore struct {
	stocks map[string]*models.StockData
}

func (m *mockStockDataStore) GetBySymbol(_ context.Context, symbol string) (*models.StockData, error) {
	if stock, ok := m.stocks[symbol]; ok {
		return stock, nil
	}
	return nil, models.ErrNotFound
}

func (m *mockStockDataStore) GetAll(context.Context) ([]*models.StockData, error) { return nil, nil }
func (m *mockStockDataStore) GetHealthySymbols(context.Context, int) ([]*models.StockData, error) {
	return nil, nil
}

func (m *mockStockDataStore) GetWithMarketData(context.Context) ([]*models.StockData, error) {
	var out []*models.StockData
	for _, stock := range m.stocks {
		if stock.HasMarketData() {
			out = append(out, stock)
		}
	}
	return out, nil
}

func (m *mockStockDataStore) UpsertFundamentalsLayer(context.Context, *models.Fundamentals) error {
	return nil
}
func (m *mockStockDataStore) UpsertMarketLayer(context.Context, *models.Recommendation) error {
	return nil
}
func (m *mockStockDataStore) BulkUpsertFundamentals(context.Context, []models.Fundamentals) (int, error) {
	return 0, nil
}
func (m *mockStockDataStore) DeleteStaleRecords(context.Context, time.Duration) (int, error) {
	return 0, nil
}

type mockScanLogStore struct {
	logs []*models.ScanLog
}

func (m *mockScanLogStore) Create(context.Context, *models.ScanLog) error { return nil }
func (m *mockScanLogStore) Update(context.Context, *models.ScanLog) error { return nil }
func (m *mockScanLogStore) GetByID(context.Context, string) (*models.ScanLog, error) {
	return nil, models.ErrNotFound
}

func (m *mockScanLogStore) GetRecent(_ context.Context, limit int) ([]*models.ScanLog, error) {
	if limit > len(m.logs) {
		limit = len(m.logs)
	}
	return m.logs[:limit], nil
}

type mockStorageManager struct {
	stockData *mockStockDataStore
	scanLogs  *mockScanLogStore
}

func (m *mockStorageManager) StockDataStore() interfaces.StockDataStore { return m.stockData }
func (m *mockStorageManager) ScanLogStore() interfaces.ScanLogStore     { return m.scanLogs }
func (m *mockStorageManager) WatchlistStore() interfaces.WatchlistStore { return nil }
func (m *mockStorageManager) KeyValueStore() interfaces.KeyValueStore   { return nil }
func (m *mockStorageManager) Close() error                              { return nil }

type mockWatchlist struct {
	symbols  []string
	added    []string
	removed  []string
	replaced [][]string
}

func (m *mockWatchlist) List(context.Context) ([]string, error) { return m.symbols, nil }

func (m *mockWatchlist) Add(_ context.Context, symbol, _ string) error {
	m.added = append(m.added, symbol)
	return nil
}

func (m *mockWatchlist) Remove(_ context.Context, symbol string) error {
	m.removed = append(m.removed, symbol)
	return nil
}

func (m *mockWatchlist) Replace(_ context.Context, symbols []string) error {
	m.replaced = append(m.replaced, symbols)
	return nil
}

type serverFixture struct {
	orchestrator *mockOrchestrator
	storage      *mockStorageManager
	watchlist    *mockWatchlist
	handler      http.Handler
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	fx := &serverFixture{
		orchestrator: &mockOrchestrator{},
		storage: &mockStorageManager{
			stockData: &mockStockDataStore{stocks: map[string]*models.StockData{}},
			scanLogs:  &mockScanLogStore{},
		},
		watchlist: &mockWatchlist{},
	}

	a := &app.App{
		Config:           common.DefaultConfig(),
		Logger:           common.NewSilentLogger(),
		Storage:          fx.storage,
		Orchestrator:     fx.orchestrator,
		WatchlistService: fx.watchlist,
		StartupTime:      time.Now(),
	}
	fx.handler = NewServer(a).Handler()
	return fx
}

func (fx *serverFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleHealth(t *testing.T) {
	fx := newServerFixture(t)

	rec := fx.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestHandleVersionRejectsPost(t *testing.T) {
	fx := newServerFixture(t)

	assert.Equal(t, http.StatusOK, fx.do(http.MethodGet, "/api/version", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, fx.do(http.MethodPost, "/api/version", "").Code)
}

func TestHandleScanTrigger(t *testing.T) {
	fx := newServerFixture(t)

	rec := fx.do(http.MethodPost, "/api/scan/trigger", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "scan started", decodeBody(t, rec)["status"])
	assert.Equal(t, 1, fx.orchestrator.triggered)
}

func TestHandleScanTriggerConflict(t *testing.T) {
	fx := newServerFixture(t)
	fx.orchestrator.triggerErr = models.ErrScanInProgress
	fx.orchestrator.snapshot = models.ScanSnapshot{
		InProgress:   true,
		ScanID:       "scan-7",
		TotalSymbols: 10,
		ScannedCount: 4,
	}

	rec := fx.do(http.MethodPost, "/api/scan/trigger", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "scan already in progress", body["error"])
	state := body["state"].(map[string]interface{})
	assert.Equal(t, "scan-7", state["scan_id"])
}

func TestHandleScanStatus(t *testing.T) {
	fx := newServerFixture(t)
	fx.orchestrator.snapshot = models.ScanSnapshot{InProgress: true, ScanID: "scan-1"}

	rec := fx.do(http.MethodGet, "/api/scan/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "scan-1", decodeBody(t, rec)["scan_id"])
}

func TestHandleScanLogsLimitValidation(t *testing.T) {
	fx := newServerFixture(t)
	for i := 0; i < 3; i++ {
		fx.storage.scanLogs.logs = append(fx.storage.scanLogs.logs, &models.ScanLog{ID: "scan"})
	}

	rec := fx.do(http.MethodGet, "/api/scan/logs?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])

	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodGet, "/api/scan/logs?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodGet, "/api/scan/logs?limit=501", "").Code)
	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodGet, "/api/scan/logs?limit=abc", "").Code)
}

func TestHandleRecommendationsFilter(t *testing.T) {
	fx := newServerFixture(t)
	now := time.Now()
	fx.storage.stockData.stocks["STRONG"] = &models.StockData{
		Symbol: "STRONG", PiotroskiFScore: 8,
		FundamentalsUpdatedAt: now, MarketUpdatedAt: now,
	}
	fx.storage.stockData.stocks["WEAK"] = &models.StockData{
		Symbol: "WEAK", PiotroskiFScore: 2,
		FundamentalsUpdatedAt: now, MarketUpdatedAt: now,
	}
	fx.storage.stockData.stocks["NOMARKET"] = &models.StockData{
		Symbol: "NOMARKET", PiotroskiFScore: 9,
		FundamentalsUpdatedAt: now,
	}

	rec := fx.do(http.MethodGet, "/api/recommendations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"], "rows without a market layer are excluded")

	rec = fx.do(http.MethodGet, "/api/recommendations?min_fscore=6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodGet, "/api/recommendations?min_fscore=10", "").Code)
	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodGet, "/api/recommendations?min_fscore=-1", "").Code)
}

func TestHandleStockBySymbol(t *testing.T) {
	fx := newServerFixture(t)
	fx.storage.stockData.stocks["AAPL"] = &models.StockData{Symbol: "AAPL", PiotroskiFScore: 7}

	rec := fx.do(http.MethodGet, "/api/stocks/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AAPL", decodeBody(t, rec)["symbol"])

	assert.Equal(t, http.StatusNotFound, fx.do(http.MethodGet, "/api/stocks/GHOST", "").Code)
	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodGet, "/api/stocks/", "").Code)
}

func TestHandleWatchlistCRUD(t *testing.T) {
	fx := newServerFixture(t)
	fx.watchlist.symbols = []string{"AAPL", "MSFT"}

	rec := fx.do(http.MethodGet, "/api/watchlist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])

	rec = fx.do(http.MethodPost, "/api/watchlist", `{"symbol":"nvda"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"nvda"}, fx.watchlist.added)

	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodPost, "/api/watchlist", `{}`).Code)

	rec = fx.do(http.MethodPut, "/api/watchlist", `{"symbols":["tsla","amd"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fx.watchlist.replaced, 1)
	assert.Equal(t, []string{"tsla", "amd"}, fx.watchlist.replaced[0])

	rec = fx.do(http.MethodDelete, "/api/watchlist?symbol=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"AAPL"}, fx.watchlist.removed)

	assert.Equal(t, http.StatusBadRequest, fx.do(http.MethodDelete, "/api/watchlist", "").Code)
}

func TestHandleShutdownForbiddenInProduction(t *testing.T) {
	fx := newServerFixture(t)

	config := common.DefaultConfig()
	config.Environment = "production"
	a := &app.App{
		Config:       config,
		Logger:       common.NewSilentLogger(),
		Storage:      fx.storage,
		Orchestrator: fx.orchestrator,
		StartupTime:  time.Now(),
	}
	handler := NewServer(a).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/shutdown", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
