// Package app wires configuration, storage, clients, and services into one
// shared core used by cmd/putscan-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/putscan/internal/clients/eodhd"
	"github.com/bobmcallan/putscan/internal/clients/simfin"
	"github.com/bobmcallan/putscan/internal/clients/tradier"
	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/interfaces"
	"github.com/bobmcallan/putscan/internal/services/aggregator"
	"github.com/bobmcallan/putscan/internal/services/scanner"
	"github.com/bobmcallan/putscan/internal/services/strategy"
	"github.com/bobmcallan/putscan/internal/services/watchlist"
	"github.com/bobmcallan/putscan/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	MarketClient     interfaces.MarketDataClient
	OptionsClient    interfaces.OptionsClient
	Fundamentals     interfaces.FundamentalsClient
	Engine           interfaces.StrategyEngine
	Aggregator       interfaces.Aggregator
	WatchlistService interfaces.WatchlistService
	Tracker          *scanner.Tracker
	Bus              *scanner.Bus
	Orchestrator     interfaces.ScanOrchestrator
	StartupTime      time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Load configuration - check provided path, PUTSCAN_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("PUTSCAN_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "putscan.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/putscan.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()
	checkSchemaVersion(ctx, storageManager, logger)

	retryPolicy := common.RetryPolicyFromConfig(config.RateLimit)

	marketClient := eodhd.NewClient(config.Clients.EODHD.APIKey,
		eodhd.WithLogger(logger),
		eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
		eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
		eodhd.WithRetryPolicy(retryPolicy),
	)
	if config.Clients.EODHD.BaseURL != "" {
		eodhd.WithBaseURL(config.Clients.EODHD.BaseURL)(marketClient)
	}

	optionsClient := tradier.NewClient(config.Clients.Tradier.APIKey,
		tradier.WithLogger(logger),
		tradier.WithRateLimit(config.Clients.Tradier.RateLimit),
		tradier.WithTimeout(config.Clients.Tradier.GetTimeout()),
		tradier.WithRetryPolicy(retryPolicy),
		tradier.WithDiscoveryFilters(tradier.DiscoveryFilters{
			MinOpenInterest:            config.Discovery.MinOpenInterest,
			MinVolume:                  config.Discovery.MinVolume,
			SampleOptionsPerUnderlying: config.Discovery.SampleOptionsPerUnderlying,
			MaxExpiryDays:              config.Discovery.MaxExpiryDays,
		}),
	)
	if config.Clients.Tradier.BaseURL != "" {
		tradier.WithBaseURL(config.Clients.Tradier.BaseURL)(optionsClient)
	}

	fundamentalsClient := simfin.NewClient(config.Clients.SimFin.APIKey,
		simfin.WithLogger(logger),
		simfin.WithRateLimit(config.Clients.SimFin.RateLimit),
		simfin.WithTimeout(config.Clients.SimFin.GetTimeout()),
		simfin.WithRetryPolicy(retryPolicy),
	)
	if config.Clients.SimFin.BaseURL != "" {
		simfin.WithBaseURL(config.Clients.SimFin.BaseURL)(fundamentalsClient)
	}

	engine := strategy.NewEngine(config, logger)
	agg := aggregator.NewService(marketClient, optionsClient, fundamentalsClient,
		storageManager.StockDataStore(), engine, config, logger)

	watchlistService, err := watchlist.NewService(storageManager.WatchlistStore(), config, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize watchlist: %w", err)
	}

	tracker := scanner.NewTracker()
	bus := scanner.NewBus(tracker, logger)
	orchestrator := scanner.NewOrchestrator(config, storageManager, agg, engine,
		optionsClient, watchlistService, tracker, bus, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		MarketClient:     marketClient,
		OptionsClient:    optionsClient,
		Fundamentals:     fundamentalsClient,
		Engine:           engine,
		Aggregator:       agg,
		WatchlistService: watchlistService,
		Tracker:          tracker,
		Bus:              bus,
		Orchestrator:     orchestrator,
		StartupTime:      startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: stop the orchestrator, close the bus, close storage.
func (a *App) Close() {
	if a.Orchestrator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := a.Orchestrator.Stop(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Orchestrator did not stop cleanly")
		}
		cancel()
		a.Orchestrator = nil
	}
	if a.Bus != nil {
		a.Bus.Close()
		a.Bus = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
