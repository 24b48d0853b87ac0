// Package scheduler owns the claim-and-dispatch loop over the durable job
// queue, plus cron-driven recurring job submission.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// Scheduler polls the job store on a fixed interval, atomically claims the
// oldest queued job, and runs it through the executor. Claim and execution
// share one single-flight guard, so a process works at most one job at a time
// and jobs within a process are strictly sequential.
type Scheduler struct {
	jobs     interfaces.JobStorage
	executor interfaces.JobExecutor
	config   *common.Config
	logger   arbor.ILogger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cron    *cron.Cron

	// pollMu enforces single-flight polling; TryLock losers skip the tick.
	pollMu sync.Mutex

	// cooldownUntil pauses claiming after a store quota error.
	cooldownMu    sync.Mutex
	cooldownUntil time.Time
}

// NewScheduler creates the scheduler.
func NewScheduler(jobs interfaces.JobStorage, executor interfaces.JobExecutor, config *common.Config, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		executor: executor,
		config:   config,
		logger:   logger,
	}
}

// StartPolling begins the claim loop and cron recurrences. It is idempotent;
// a second call while running is a no-op. Stranded running jobs are reset to
// queued exactly once, before the first poll.
func (s *Scheduler) StartPolling(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.logger.Debug().Msg("Scheduler already started")
		return nil
	}

	if count, err := s.jobs.ResetStrandedJobs(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Stranded job recovery failed, continuing")
	} else if count > 0 {
		s.logger.Info().Int("count", count).Msg("Reset stranded jobs to queued")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	if err := s.startRecurrences(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to register recurrences")
	}

	interval := s.config.SchedulerPollInterval()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Info().Str("interval", interval.String()).Msg("Scheduler polling started")
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.PollOnce(runCtx)
			}
		}
	}()

	return nil
}

// StopPolling stops the claim loop and waits for in-flight job executions to
// finish. Idempotent.
func (s *Scheduler) StopPolling() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	cronRunner := s.cron
	s.cron = nil
	s.mu.Unlock()

	if cronRunner != nil {
		<-cronRunner.Stop().Done()
	}
	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// PollOnce performs one claim attempt and, when a job is claimed, executes it
// to completion before returning. The single-flight guard covers the whole
// claim-and-execute span: one process works at most one job at a time, and
// ticks that fire mid-execution are skipped. A store quota error arms the
// cooldown window; an unreachable store is a logged no-op.
func (s *Scheduler) PollOnce(ctx context.Context) {
	if !s.pollMu.TryLock() {
		return
	}
	defer s.pollMu.Unlock()

	if s.inCooldown() {
		return
	}

	job, err := s.jobs.ClaimNextQueued(ctx)
	if err != nil {
		if models.IsQuotaExceeded(err) {
			cooldown := s.config.SchedulerQuotaCooldown()
			s.armCooldown(cooldown)
			s.logger.Warn().Err(err).Str("cooldown", cooldown.String()).Msg("Store quota exceeded, pausing claims")
			return
		}
		s.logger.Warn().Err(err).Msg("Job claim failed")
		return
	}
	if job == nil {
		return
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Str("owner", job.Owner).
		Msg("Claimed job")

	if err := s.executor.Execute(ctx, job); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Job execution reported error")
	}
}

// Submit enqueues a new job after validation.
func (s *Scheduler) Submit(ctx context.Context, job *models.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return err
	}
	s.logger.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Job queued")
	return nil
}

// startRecurrences registers configured cron schedules, each enqueueing one
// job per firing.
func (s *Scheduler) startRecurrences() error {
	if len(s.config.Scheduler.Recurrences) == 0 {
		return nil
	}

	c := cron.New()
	for _, rec := range s.config.Scheduler.Recurrences {
		rec := rec
		jobType := models.JobType(rec.JobType)
		if !models.IsValidJobType(jobType) {
			s.logger.Warn().Str("job_type", rec.JobType).Msg("Skipping recurrence with unknown job type")
			continue
		}

		_, err := c.AddFunc(rec.Schedule, func() {
			job := models.NewJob(rec.Owner, jobType, metadataFor(jobType, rec.Usernames))
			if err := s.Submit(context.Background(), job); err != nil {
				s.logger.Warn().Err(err).Str("schedule", rec.Schedule).Msg("Recurring job submission failed")
			}
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("schedule", rec.Schedule).Msg("Invalid recurrence schedule")
			continue
		}
		s.logger.Info().
			Str("schedule", rec.Schedule).
			Str("job_type", rec.JobType).
			Str("owner", rec.Owner).
			Msg("Registered recurring job")
	}

	c.Start()
	s.cron = c
	return nil
}

func metadataFor(jobType models.JobType, usernames []string) models.JobMetadata {
	switch jobType {
	case models.JobTypeAudienceSnapshot:
		return models.JobMetadata{AudienceSnapshot: &models.AudienceSnapshotSpec{Usernames: usernames}}
	case models.JobTypeFollowerGraph:
		return models.JobMetadata{FollowerGraph: &models.FollowerGraphSpec{Usernames: usernames}}
	case models.JobTypeRecheck:
		return models.JobMetadata{Recheck: &models.RecheckSpec{Usernames: usernames}}
	}
	return models.JobMetadata{}
}

func (s *Scheduler) inCooldown() bool {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()
	return time.Now().Before(s.cooldownUntil)
}

func (s *Scheduler) armCooldown(d time.Duration) {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()
	s.cooldownUntil = time.Now().Add(d)
}
