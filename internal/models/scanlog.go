package models

import "time"

// ScanStatus is the lifecycle state of one scan attempt.
type ScanStatus string

const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusSucceeded ScanStatus = "succeeded"
	ScanStatusFailed    ScanStatus = "failed"
)

// ScanLog is the append-only record bracketing one scan attempt.
// It is created with StatusRunning before any progress event is emitted,
// and closed exactly once before ScanCompleted goes out.
type ScanLog struct {
	ID                       string     `json:"id" badgerhold:"key"`
	StartedAt                time.Time  `json:"started_at"`
	CompletedAt              *time.Time `json:"completed_at,omitempty"`
	SymbolsScanned           int        `json:"symbols_scanned"`
	RecommendationsGenerated int        `json:"recommendations_generated"`
	Status                   ScanStatus `json:"status"`
	ErrorMessage             string     `json:"error_message,omitempty"`
}

// Duration returns the wall-clock span of the scan, using now for a scan
// that has not completed yet.
func (l *ScanLog) Duration(now time.Time) time.Duration {
	end := now
	if l.CompletedAt != nil {
		end = *l.CompletedAt
	}
	return end.Sub(l.StartedAt)
}
