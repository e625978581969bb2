// Package cache stores LLM responses keyed by prompt text.
//
// Entries expire after a fixed TTL and the number of entries is bounded; when
// the bound is reached the oldest inserted entry is evicted. Reads do not
// refresh an entry's position. Two implementations share the Store contract:
// Memory lives for the process, SQLite persists across CLI invocations.
package cache

import (
	"time"
)

// Store is a bounded, time-expiring prompt to response cache
type Store interface {
	// Get returns the response for key if present and not expired
	Get(key string) (string, bool, error)

	// Insert stores value under key, evicting the oldest entry when full.
	// Overwriting a key updates its value and insertion time.
	Insert(key, value string) error

	// Clear removes all entries
	Clear() error

	// ClearExpired removes expired entries and returns how many were dropped
	ClearExpired() (int64, error)

	// Len returns the number of live entries
	Len() (int, error)

	// IsEmpty reports whether Len is zero
	IsEmpty() (bool, error)

	// Stats returns size and hit counters
	Stats() (Stats, error)

	// Close releases resources held by the store
	Close() error
}

// Stats holds cache size and effectiveness counters
type Stats struct {
	Backend  string        `json:"backend"`
	Entries  int           `json:"entries"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
	Hits     int64         `json:"hits"`
	Misses   int64         `json:"misses"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// expired reports whether an entry inserted at insertedAt is older than ttl.
// A non-positive ttl disables expiry.
func expired(insertedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(insertedAt) > ttl
}
