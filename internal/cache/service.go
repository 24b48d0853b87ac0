// Package cache implements the fingerprint cache read/write service used by
// the task runner. A hit requires a fresh entry whose dataset is still
// retrievable from the provider; every failure mode on the read path degrades
// to a miss so a broken cache can slow the system down but never stop it.
package cache

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/credentials"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// TTLPolicy maps a data type to its freshness window in hours.
type TTLPolicy map[string]int

// TTLFor returns the policy hours for a data type, falling back to the
// default row, then to 24 hours when the policy table is incomplete.
func (p TTLPolicy) TTLFor(dataType models.DataType) int {
	if hours, ok := p[string(dataType)]; ok && hours > 0 {
		return hours
	}
	if hours, ok := p[string(models.DataTypeDefault)]; ok && hours > 0 {
		return hours
	}
	return 24
}

// Hit describes a served cache entry.
type Hit struct {
	DatasetID  string
	ExecutedAt time.Time
	// Legacy marks a hit served from the pre-fingerprint record format.
	Legacy bool
}

// Service is the cache read/write front. Reads consult the fingerprint index
// first and the legacy key format second; writes stamp the current TTL policy
// value into the entry so later policy changes never retroactively extend or
// shorten the freshness of data already scraped.
type Service struct {
	store    interfaces.CacheStorage
	provider interfaces.TaskProvider
	pool     *credentials.Pool
	policy   TTLPolicy
	logger   arbor.ILogger
	now      func() time.Time
}

// NewService creates the cache service.
func NewService(store interfaces.CacheStorage, provider interfaces.TaskProvider, pool *credentials.Pool, policy TTLPolicy, logger arbor.ILogger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		pool:     pool,
		policy:   policy,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Lookup returns a hit when a fresh, retrievable entry exists for the
// fingerprint, trying the legacy key when the fingerprint index has nothing.
// Store and provider errors on this path are logged and reported as a miss.
func (s *Service) Lookup(ctx context.Context, fp string, legacyKey string, dataType models.DataType) *Hit {
	now := s.now()

	entry, err := s.store.GetLatestEntry(ctx, fp)
	if err != nil {
		s.logger.Warn().Err(err).Str("fingerprint", fp).Msg("Cache read failed, treating as miss")
		return nil
	}
	if entry != nil {
		if !entry.IsFresh(now) {
			s.logger.Debug().
				Str("fingerprint", fp).
				Str("age", entry.Age(now).String()).
				Int("ttl_hours", entry.TTLHours).
				Msg("Cache entry stale")
			return nil
		}
		if !s.retrievable(ctx, entry.DatasetID) {
			return nil
		}
		return &Hit{DatasetID: entry.DatasetID, ExecutedAt: entry.ExecutedAt}
	}

	if legacyKey == "" {
		return nil
	}
	legacy, err := s.store.GetLegacyEntry(ctx, legacyKey)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", legacyKey).Msg("Legacy cache read failed, treating as miss")
		return nil
	}
	if legacy == nil {
		return nil
	}

	// Legacy entries predate stamped TTLs, so freshness uses the current
	// policy value for the data type.
	ttl := time.Duration(s.policy.TTLFor(dataType)) * time.Hour
	if now.Sub(legacy.ScrapedAt) >= ttl {
		return nil
	}
	if !s.retrievable(ctx, legacy.DatasetID) {
		return nil
	}
	return &Hit{DatasetID: legacy.DatasetID, ExecutedAt: legacy.ScrapedAt, Legacy: true}
}

// Write records a successful run under its fingerprint. The caller treats a
// returned error as log-only: the run already succeeded and its result is in
// hand, a failed cache write just forfeits future reuse.
func (s *Service) Write(ctx context.Context, fp string, datasetID string, recordCount int, dataType models.DataType) error {
	entry := &models.CacheEntry{
		Fingerprint: fp,
		DatasetID:   datasetID,
		RecordCount: recordCount,
		DataType:    dataType,
		ExecutedAt:  s.now(),
		TTLHours:    s.policy.TTLFor(dataType),
	}
	return s.store.PutEntry(ctx, entry)
}

// retrievable verifies the cached dataset still exists at the provider. A
// check failure counts as not retrievable: serving a dead dataset id would
// fail the job, re-scraping merely costs time.
func (s *Service) retrievable(ctx context.Context, datasetID string) bool {
	if datasetID == "" {
		return false
	}
	exists, err := s.provider.DatasetExists(ctx, datasetID, s.pool.Primary())
	if err != nil {
		s.logger.Warn().Err(err).Str("dataset_id", datasetID).Msg("Dataset existence check failed, treating as miss")
		return false
	}
	if !exists {
		s.logger.Debug().Str("dataset_id", datasetID).Msg("Cached dataset no longer retrievable")
	}
	return exists
}
