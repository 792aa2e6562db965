package models

import "time"

// ScanSnapshot is a point-in-time copy of the scan state tracker, read by
// the progress bus on subscribe and by the status endpoint.
type ScanSnapshot struct {
	InProgress    bool      `json:"in_progress"`
	ScanID        string    `json:"scan_id,omitempty"`
	TotalSymbols  int       `json:"total_symbols"`
	ScannedCount  int       `json:"scanned_count"`
	CurrentSymbol string    `json:"current_symbol,omitempty"`
	StartedAt     time.Time `json:"started_at,omitempty"`
}
