package models

import (
	"time"
)

// DataType is the coarse classification a cache entry is filed under. TTL
// policy is keyed by it: volatile follower lists age out faster than stable
// profile snapshots.
type DataType string

const (
	DataTypeProfileSnapshot DataType = "profile_snapshot"
	DataTypeFollowerList    DataType = "follower_list"
	DataTypeDefault         DataType = "default"
)

// CacheEntry records one successful actor run keyed by its fingerprint.
//
// Entries are immutable once written: re-execution writes a new entry with a
// later ExecutedAt rather than mutating an existing one. Lookups return the
// most recently written entry for a fingerprint. Nothing in this subsystem
// deletes entries; the TTL only governs logical staleness.
type CacheEntry struct {
	ID          string    `json:"id" badgerhold:"key"` // fingerprint + executed-at, unique per write
	Fingerprint string    `json:"fingerprint" badgerhold:"index"`
	DatasetID   string    `json:"dataset_id"`
	RecordCount int       `json:"record_count"`
	DataType    DataType  `json:"data_type"`
	ExecutedAt  time.Time `json:"executed_at"`
	TTLHours    int       `json:"ttl_hours"` // policy value stamped at write time
}

// Age returns how old the entry is at the given time.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.ExecutedAt)
}

// IsFresh reports whether the entry is within its TTL at the given time.
func (e *CacheEntry) IsFresh(now time.Time) bool {
	return e.Age(now) < time.Duration(e.TTLHours)*time.Hour
}

// LegacyCacheEntry is the pre-fingerprint cache record format, kept readable
// as a secondary fallback lookup. Legacy entries were keyed by task id and a
// joined target list instead of a canonical fingerprint.
type LegacyCacheEntry struct {
	Key       string    `json:"key" badgerhold:"key"` // "<taskID>|<sorted targets>"
	DatasetID string    `json:"dataset_id"`
	ScrapedAt time.Time `json:"scraped_at"`
}
