package common

import "time"

// Freshness TTLs for stored data components
const (
	FreshnessFundamentals = 7 * 24 * time.Hour // fundamentals move on reporting cadence
	FreshnessMarketLayer  = 1 * time.Hour      // intraday option snapshots
)

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
