package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/putscan/internal/common"
	"github.com/bobmcallan/putscan/internal/models"
)

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": common.GetVersion(),
		"uptime":  time.Since(s.app.StartupTime).String(),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// handleScanTrigger handles POST /api/scan/trigger.
// Returns 202 when a scan starts, 409 when one is already running.
func (s *Server) handleScanTrigger(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.app.Orchestrator.TriggerNow(); err != nil {
		if errors.Is(err, models.ErrScanInProgress) {
			WriteJSON(w, http.StatusConflict, map[string]interface{}{
				"error": "scan already in progress",
				"state": s.app.Orchestrator.Snapshot(),
			})
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "scan started"})
}

// handleScanStatus handles GET /api/scan/status.
func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, s.app.Orchestrator.Snapshot())
}

// handleScanLogs handles GET /api/scan/logs?limit=N.
func (s *Server) handleScanLogs(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer up to 500")
			return
		}
		limit = n
	}

	logs, err := s.app.Storage.ScanLogStore().GetRecent(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to read scan logs: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// handleRecommendations handles GET /api/recommendations?min_fscore=N.
// Returns stocks whose market layer holds a current PUT recommendation.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	minFScore := 0
	if v := r.URL.Query().Get("min_fscore"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 9 {
			WriteError(w, http.StatusBadRequest, "min_fscore must be an integer in [0,9]")
			return
		}
		minFScore = n
	}

	stocks, err := s.app.Storage.StockDataStore().GetWithMarketData(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to read recommendations: "+err.Error())
		return
	}

	if minFScore > 0 {
		filtered := stocks[:0]
		for _, stock := range stocks {
			if stock.HasFundamentals() && stock.PiotroskiFScore >= minFScore {
				filtered = append(filtered, stock)
			}
		}
		stocks = filtered
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": stocks,
		"count":           len(stocks),
	})
}

// handleStockBySymbol handles GET /api/stocks/{symbol}.
func (s *Server) handleStockBySymbol(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := strings.ToUpper(PathParam(r, "/api/stocks/", ""))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	stock, err := s.app.Storage.StockDataStore().GetBySymbol(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Stock not found: "+symbol)
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to read stock: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, stock)
}

// watchlistRequest is the PUT/POST body for /api/watchlist.
type watchlistRequest struct {
	Symbol  string   `json:"symbol,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

// handleWatchlist handles /api/watchlist:
// GET lists symbols, POST adds one, PUT replaces the list, DELETE removes one.
func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		symbols, err := s.app.WatchlistService.List(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to read watchlist: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"symbols": symbols,
			"count":   len(symbols),
		})

	case http.MethodPost:
		var req watchlistRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		if req.Symbol == "" {
			WriteError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		if err := s.app.WatchlistService.Add(r.Context(), req.Symbol, "api"); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to add symbol: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "added"})

	case http.MethodPut:
		var req watchlistRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		if err := s.app.WatchlistService.Replace(r.Context(), req.Symbols); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to replace watchlist: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "replaced",
			"count":  len(req.Symbols),
		})

	case http.MethodDelete:
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			WriteError(w, http.StatusBadRequest, "symbol query parameter is required")
			return
		}
		if err := s.app.WatchlistService.Remove(r.Context(), symbol); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to remove symbol: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "removed"})

	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE")
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
