package server

import "net/http"

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Scanning
	mux.HandleFunc("/api/scan/trigger", s.handleScanTrigger)
	mux.HandleFunc("/api/scan/status", s.handleScanStatus)
	mux.HandleFunc("/api/scan/logs", s.handleScanLogs)

	// Recommendations and stock data
	mux.HandleFunc("/api/recommendations", s.handleRecommendations)
	mux.HandleFunc("/api/stocks/", s.handleStockBySymbol)

	// Watchlist
	mux.HandleFunc("/api/watchlist", s.handleWatchlist)

	// Live scan progress
	mux.HandleFunc("/ws/scan", s.handleScanWS)
}
