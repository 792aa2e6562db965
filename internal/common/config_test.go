package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetScanTimeParsing(t *testing.T) {
	tests := []struct {
		in      string
		hour    int
		minute  int
		wantErr bool
	}{
		{"", 4, 0, false}, // default 04:00
		{"04:00", 4, 0, false},
		{"23:59", 23, 59, false},
		{"0:5", 0, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
	}

	for _, tt := range tests {
		c := ScanConfig{ScanTime: tt.in}
		hour, minute, err := c.GetScanTime()
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.hour, hour)
		assert.Equal(t, tt.minute, minute)
	}
}

func TestRetentionDefaultsTo90Days(t *testing.T) {
	assert.Equal(t, 90*24*time.Hour, (&ScanConfig{}).GetRetention())
	assert.Equal(t, 30*24*time.Hour, (&ScanConfig{RetentionDays: 30}).GetRetention())
}

func TestSymbolTimeoutDefault(t *testing.T) {
	assert.Equal(t, 60*time.Second, (&ScanConfig{}).GetSymbolTimeout())
	assert.Equal(t, 2*time.Minute, (&ScanConfig{SymbolTimeout: "2m"}).GetSymbolTimeout())
}

func TestValidateRejectsBadStrategyWindow(t *testing.T) {
	config := DefaultConfig()
	config.Strategy.MinExpiryDays = 30
	config.Strategy.MaxExpiryDays = 14

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fatal configuration error")
}

func TestValidateRejectsConfidenceOutOfRange(t *testing.T) {
	config := DefaultConfig()
	config.Strategy.MinConfidence = 1.5

	assert.Error(t, config.Validate())
}

func TestValidateRequiresUniverseSource(t *testing.T) {
	config := DefaultConfig()
	config.Discovery.Enabled = false
	config.Scan.Watchlist = nil

	require.Error(t, config.Validate())

	config.Scan.Watchlist = []string{"AAPL"}
	assert.NoError(t, config.Validate())
}

func TestLoadConfigAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "putscan.toml")
	data := `
environment = "production"

[server]
port = 9000

[scan]
scan_time = "06:30"
watchlist = ["aapl", "msft"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	t.Setenv("PUTSCAN_PORT", "9100")
	t.Setenv("PUTSCAN_SCAN_TIME", "07:15")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, config.IsProduction())
	assert.Equal(t, 9100, config.Server.Port, "env overrides file")
	hour, minute, err := config.Scan.GetScanTime()
	require.NoError(t, err)
	assert.Equal(t, 7, hour)
	assert.Equal(t, 15, minute)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8290, config.Server.Port)
	assert.Equal(t, "04:00", config.Scan.ScanTime)
}
