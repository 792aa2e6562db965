package models

import "time"

// WatchlistEntry is one symbol on the fallback scan universe, keyed by symbol.
type WatchlistEntry struct {
	Symbol  string    `json:"symbol" badgerhold:"key"`
	Source  string    `json:"source"` // "config", "api", "manual"
	AddedAt time.Time `json:"added_at"`
}
