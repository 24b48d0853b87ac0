package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *DB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return classifyStoreError(fmt.Errorf("failed to save job: %w", err))
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", jobID)
		}
		return nil, classifyStoreError(fmt.Errorf("failed to get job: %w", err))
	}
	return &job, nil
}

func (s *JobStorage) UpdateJob(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = time.Now().UTC()
	return s.SaveJob(ctx, job)
}

// ClaimNextQueued atomically claims the oldest queued job.
//
// The read-check-write runs inside one Badger transaction. Badger uses
// serializable snapshot isolation, so when two claimers race for the same
// job exactly one commit succeeds and the loser sees ErrConflict, which is
// reported as "no job claimed" and retried on its next tick.
func (s *JobStorage) ClaimNextQueued(ctx context.Context) (*models.Job, error) {
	var claimed *models.Job

	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		var jobs []models.Job
		query := badgerhold.Where("Status").Eq(models.JobStatusQueued).SortBy("CreatedAt").Limit(1)
		if err := s.db.Store().TxFind(txn, &jobs, query); err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		job := jobs[0]
		if job.Status != models.JobStatusQueued {
			return nil
		}
		job.Status = models.JobStatusRunning
		job.UpdatedAt = time.Now().UTC()

		if err := s.db.Store().TxUpdate(txn, job.ID, &job); err != nil {
			return err
		}
		claimed = &job
		return nil
	})
	if err != nil {
		if errors.Is(err, badgerdb.ErrConflict) {
			// Lost the race to another claimer.
			return nil, nil
		}
		return nil, classifyStoreError(fmt.Errorf("failed to claim queued job: %w", err))
	}

	return claimed, nil
}

func (s *JobStorage) GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(status).SortBy("CreatedAt")); err != nil {
		return nil, classifyStoreError(fmt.Errorf("failed to get jobs by status: %w", err))
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// ResetStrandedJobs moves jobs left running by a crashed process back to
// queued. Called once at scheduler startup, before the first poll.
func (s *JobStorage) ResetStrandedJobs(ctx context.Context) (int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("Status").Eq(models.JobStatusRunning)); err != nil {
		return 0, classifyStoreError(err)
	}

	count := 0
	for i := range jobs {
		job := jobs[i]
		job.Status = models.JobStatusQueued
		job.UpdatedAt = time.Now().UTC()
		if err := s.db.Store().Upsert(job.ID, &job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to reset stranded job")
			continue
		}
		count++
	}
	return count, nil
}

// classifyStoreError maps store resource exhaustion onto the quota error the
// scheduler's circuit breaker watches for.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badgerdb.ErrTxnTooBig) ||
		strings.Contains(err.Error(), "no space left") ||
		strings.Contains(err.Error(), "quota") {
		return &models.QuotaExceededError{Err: err}
	}
	return err
}
