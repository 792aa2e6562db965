package watchlist

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/models"
)

type mockStore struct {
	entries map[string]*models.WatchlistEntry
}

func newMockStore(symbols ...string) *mockStore {
	m := &mockStore{entries: make(map[string]*models.WatchlistEntry)}
	for _, s := range symbols {
		m.entries[s] = &models.WatchlistEntry{Symbol: s, Source: "manual"}
	}
	return m
}

func (m *mockStore) List(_ context.Context) ([]*models.WatchlistEntry, error) {
	out := make([]*models.WatchlistEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *mockStore) Upsert(_ context.Context, entry *models.WatchlistEntry) error {
	m.entries[entry.Symbol] = entry
	return nil
}

func (m *mockStore) Delete(_ context.Context, symbol string) error {
	delete(m.entries, symbol)
	return nil
}

func (m *mockStore) symbols() []string {
	out := make([]string, 0, len(m.entries))
	for s := range m.entries {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func TestSeedingIsAdditive(t *testing.T) {
	store := newMockStore("TSLA")
	config := common.DefaultConfig()
	config.Scan.Watchlist = []string{"aapl", " msft ", "TSLA", ""}

	_, err := NewService(store, config, common.NewSilentLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT", "TSLA"}, store.symbols())
	// The pre-existing entry keeps its original source.
	assert.Equal(t, "manual", store.entries["TSLA"].Source)
	assert.Equal(t, "config", store.entries["AAPL"].Source)
}

func TestListSortsSymbols(t *testing.T) {
	store := newMockStore("MSFT", "AAPL", "NVDA")
	svc := &Service{store: store, logger: common.NewSilentLogger()}

	symbols, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, symbols)
}

func TestAddNormalizes(t *testing.T) {
	store := newMockStore()
	svc := &Service{store: store, logger: common.NewSilentLogger()}
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, " aapl ", "api"))
	assert.Equal(t, []string{"AAPL"}, store.symbols())

	assert.Error(t, svc.Add(ctx, "  ", "api"))
}

func TestRemoveAbsentSymbolIsNotAnError(t *testing.T) {
	store := newMockStore("AAPL")
	svc := &Service{store: store, logger: common.NewSilentLogger()}
	ctx := context.Background()

	require.NoError(t, svc.Remove(ctx, "aapl"))
	require.NoError(t, svc.Remove(ctx, "GHOST"))
	assert.Empty(t, store.symbols())
}

func TestReplaceSwapsWholeList(t *testing.T) {
	store := newMockStore("AAPL", "MSFT")
	svc := &Service{store: store, logger: common.NewSilentLogger()}

	require.NoError(t, svc.Replace(context.Background(), []string{"msft", "nvda", " "}))

	assert.Equal(t, []string{"MSFT", "NVDA"}, store.symbols())
	assert.Equal(t, "api", store.entries["NVDA"].Source)
}
