package models

import "errors"

// Sentinel errors shared across services and the HTTP surface.
var (
	// ErrNotFound is returned by storage lookups for missing keys.
	ErrNotFound = errors.New("not found")

	// ErrScanInProgress is returned by TriggerNow while a scan is running.
	ErrScanInProgress = errors.New("scan already in progress")
)
