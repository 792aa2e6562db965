package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/putscan/internal/app"
	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to putscan.toml")
	scanNow := flag.Bool("scan-now", false, "trigger a scan immediately on startup")
	flag.Parse()

	a, err := app.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	// Process any pending bulk fundamentals exports before scanning starts.
	if err := a.IngestBulkCSVDir(context.Background()); err != nil {
		a.Logger.Warn().Err(err).Msg("Bulk CSV ingest incomplete")
	}

	if err := a.Orchestrator.Start(); err != nil {
		a.Logger.Fatal().Err(err).Msg("Failed to start scan scheduler")
	}

	if *scanNow {
		if err := a.Orchestrator.TriggerNow(); err != nil {
			a.Logger.Warn().Err(err).Msg("Startup scan not triggered")
		}
	}

	srv := server.NewServer(a)

	shutdownChan := make(chan struct{}, 1)
	srv.SetShutdownChannel(shutdownChan)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	a.Logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)).
		Msg("Server ready")

	// Wait for interrupt signal or shutdown endpoint
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		a.Logger.Info().Msg("Shutdown signal received")
	case <-shutdownChan:
		a.Logger.Info().Msg("Shutdown requested via HTTP")
	}

	// Graceful shutdown: stop accepting requests, then unwind the scan
	// pipeline and close storage.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Close()
	common.PrintShutdownBanner(a.Logger)
}
