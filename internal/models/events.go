package models

import "time"

// Scan event type tags. The JSON shapes below are consumed by the dashboard
// and must stay wire-compatible.
const (
	EventScanStarted     = "scan_started"
	EventSymbolScanning  = "symbol_scanning"
	EventSymbolCompleted = "symbol_completed"
	EventSymbolError     = "symbol_error"
	EventScanCompleted   = "scan_completed"
)

// ScanEvent is the tagged union carried on the progress bus. Each concrete
// event type serialises flat with its own field set.
type ScanEvent interface {
	EventType() string
}

// ScanStartedEvent announces a new scan, or — on late subscription — the
// current state of a scan already in progress.
type ScanStartedEvent struct {
	Type          string    `json:"type"`
	ScanLogID     string    `json:"scanLogId"`
	TotalSymbols  int       `json:"totalSymbols"`
	ScannedCount  int       `json:"scannedCount,omitempty"`
	CurrentSymbol string    `json:"currentSymbol,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e *ScanStartedEvent) EventType() string { return EventScanStarted }

// SymbolMetrics carries the two headline fundamentals scores when present.
type SymbolMetrics struct {
	PiotroskiFScore *int     `json:"piotroskiFScore,omitempty"`
	AltmanZScore    *float64 `json:"altmanZScore,omitempty"`
}

// SymbolEvent reports per-symbol progress: scanning, completed, or error.
type SymbolEvent struct {
	Type                 string         `json:"type"`
	Symbol               string         `json:"symbol"`
	CurrentIndex         int            `json:"currentIndex"`
	TotalSymbols         int            `json:"totalSymbols"`
	Status               string         `json:"status"`
	Timestamp            time.Time      `json:"timestamp"`
	ErrorMessage         string         `json:"errorMessage,omitempty"`
	RecommendationsCount int            `json:"recommendationsCount"`
	ProgressPercent      float64        `json:"progressPercent"`
	Metrics              *SymbolMetrics `json:"metrics,omitempty"`
}

func (e *SymbolEvent) EventType() string { return e.Type }

// ScanCompletedEvent closes the stream for one scan, successful or not.
type ScanCompletedEvent struct {
	Type                     string     `json:"type"`
	ID                       string     `json:"id"`
	StartedAt                time.Time  `json:"startedAt"`
	CompletedAt              *time.Time `json:"completedAt,omitempty"`
	SymbolsScanned           int        `json:"symbolsScanned"`
	RecommendationsGenerated int        `json:"recommendationsGenerated"`
	Status                   ScanStatus `json:"status"`
	ErrorMessage             string     `json:"errorMessage,omitempty"`
	Duration                 string     `json:"duration"`
	Timestamp                time.Time  `json:"timestamp"`
}

func (e *ScanCompletedEvent) EventType() string { return EventScanCompleted }

// NewScanCompletedEvent builds the terminal event from a closed scan log.
func NewScanCompletedEvent(log *ScanLog, now time.Time) *ScanCompletedEvent {
	return &ScanCompletedEvent{
		Type:                     EventScanCompleted,
		ID:                       log.ID,
		StartedAt:                log.StartedAt,
		CompletedAt:              log.CompletedAt,
		SymbolsScanned:           log.SymbolsScanned,
		RecommendationsGenerated: log.RecommendationsGenerated,
		Status:                   log.Status,
		ErrorMessage:             log.ErrorMessage,
		Duration:                 log.Duration(now).String(),
		Timestamp:                now,
	}
}
