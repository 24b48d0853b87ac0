package interfaces

import (
	"context"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// JobStorage is the durable job store contract.
//
// ClaimNextQueued is the only operation that needs true atomicity: it is a
// compare-and-set on status=queued->running over the oldest queued job, safe
// under concurrent claimers. Every other mutation is applied by the single
// process that owns the job's running lifetime.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	// ClaimNextQueued atomically claims the oldest queued job, returning nil
	// when the queue is empty.
	ClaimNextQueued(ctx context.Context) (*models.Job, error)
	GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	// ResetStrandedJobs moves jobs left running by a crashed process back to
	// queued, returning how many were reset.
	ResetStrandedJobs(ctx context.Context) (int, error)
}

// CacheStorage is the fingerprint cache store contract. Entries are
// append-only and immutable; GetLatestEntry returns the most recently written
// entry for a fingerprint.
type CacheStorage interface {
	PutEntry(ctx context.Context, entry *models.CacheEntry) error
	GetLatestEntry(ctx context.Context, fingerprint string) (*models.CacheEntry, error)
	// GetLegacyEntry reads the pre-fingerprint cache format used as a
	// secondary fallback lookup.
	GetLegacyEntry(ctx context.Context, key string) (*models.LegacyCacheEntry, error)
}

// LedgerStorage persists cost ledger usage records.
type LedgerStorage interface {
	SaveUsage(ctx context.Context, record *models.UsageRecord) error
	ListUsageByOwner(ctx context.Context, owner string) ([]*models.UsageRecord, error)
}

// StorageManager bundles the storage interfaces behind one lifecycle.
type StorageManager interface {
	JobStorage() JobStorage
	CacheStorage() CacheStorage
	LedgerStorage() LedgerStorage
	Close() error
}
