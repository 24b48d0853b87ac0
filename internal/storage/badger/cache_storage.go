package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// CacheStorage implements the fingerprint cache store for Badger.
// Entries are append-only: every successful run writes a new record keyed by
// fingerprint plus execution timestamp, so concurrent writers to the same
// fingerprint race safely to last-write-wins on lookup.
type CacheStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *DB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CacheStorage) PutEntry(ctx context.Context, entry *models.CacheEntry) error {
	if entry.Fingerprint == "" {
		return fmt.Errorf("cache entry fingerprint is required")
	}
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("%s@%d", entry.Fingerprint, entry.ExecutedAt.UnixNano())
	}

	// Insert, never Upsert: entries are immutable once written.
	if err := s.db.Store().Insert(entry.ID, entry); err != nil {
		if err == badgerhold.ErrKeyExists {
			return nil
		}
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *CacheStorage) GetLatestEntry(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	var entries []models.CacheEntry
	query := badgerhold.Where("Fingerprint").Eq(fingerprint).SortBy("ExecutedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *CacheStorage) GetLegacyEntry(ctx context.Context, key string) (*models.LegacyCacheEntry, error) {
	var entry models.LegacyCacheEntry
	if err := s.db.Store().Get(key, &entry); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read legacy cache entry: %w", err)
	}
	return &entry, nil
}
