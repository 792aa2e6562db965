package models

import "time"

// SystemKeyValue is one system-level bookkeeping entry, keyed by name.
type SystemKeyValue struct {
	Key       string    `json:"key" badgerhold:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
