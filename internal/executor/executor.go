// Package executor runs claimed jobs through their type-specific handlers,
// enforcing the job state machine and centralizing failure capture.
package executor

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
	"github.com/vanillabrand/fandom-velocity/internal/resolver"
)

// Executor dispatches a running job to its handler and records the terminal
// outcome. All failure paths converge here: handler errors, panics, and
// unknown job types all end as a recorded failed status, never a crashed
// worker.
type Executor struct {
	runner   interfaces.TaskRunner
	jobs     interfaces.JobStorage
	resolver *resolver.Resolver
	analysis interfaces.AnalysisService
	graph    interfaces.GraphBuilder
	notifier interfaces.Notifier
	ledger   interfaces.CostLedger
	costs    common.CostsConfig
	logger   arbor.ILogger
}

// NewExecutor creates the job executor.
func NewExecutor(
	runner interfaces.TaskRunner,
	jobs interfaces.JobStorage,
	res *resolver.Resolver,
	analysis interfaces.AnalysisService,
	graph interfaces.GraphBuilder,
	notifier interfaces.Notifier,
	ledger interfaces.CostLedger,
	costs common.CostsConfig,
	logger arbor.ILogger,
) *Executor {
	return &Executor{
		runner:   runner,
		jobs:     jobs,
		resolver: res,
		analysis: analysis,
		graph:    graph,
		notifier: notifier,
		ledger:   ledger,
		costs:    costs,
		logger:   logger,
	}
}

var _ interfaces.JobExecutor = (*Executor)(nil)

// Execute runs the claimed job to a terminal state. The returned error is
// informational; the durable outcome is always recorded on the job itself.
func (e *Executor) Execute(ctx context.Context, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			// Panics may carry any value, not just errors.
			msg := fmt.Sprintf("handler panic: %v", r)
			e.logger.Error().Str("job_id", job.ID).Str("panic", fmt.Sprintf("%v", r)).Msg("Job handler panicked")
			e.recordFailure(ctx, job, msg)
			err = fmt.Errorf("%s", msg)
		}
	}()

	e.logger.Info().Str("job_id", job.ID).Str("type", string(job.Type)).Msg("Executing job")

	var result *models.JobResult
	switch job.Type {
	case models.JobTypeAudienceSnapshot:
		result, err = e.runAudienceSnapshot(ctx, job)
	case models.JobTypeFollowerGraph:
		result, err = e.runFollowerGraph(ctx, job)
	case models.JobTypeRecheck:
		result, err = e.runRecheck(ctx, job)
	default:
		err = fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		if models.IsAbortRequested(err) {
			e.logger.Info().Str("job_id", job.ID).Msg("Job aborted by request")
			job.MarkAborted()
			if uerr := e.jobs.UpdateJob(ctx, job); uerr != nil {
				e.logger.Warn().Err(uerr).Str("job_id", job.ID).Msg("Failed to record aborted status")
			}
			return nil
		}
		e.recordFailure(ctx, job, err.Error())
		return err
	}

	job.MarkCompleted(result)
	if uerr := e.jobs.UpdateJob(ctx, job); uerr != nil {
		e.logger.Error().Err(uerr).Str("job_id", job.ID).Msg("Failed to record completed status")
		return uerr
	}

	e.chargeUsage(ctx, job, result)
	e.notify(job.Owner, fmt.Sprintf("Job %s completed", job.ID),
		fmt.Sprintf("Your %s job finished with %d records.", job.Type, result.RecordCount))

	e.logger.Info().
		Str("job_id", job.ID).
		Int("records", result.RecordCount).
		Bool("from_cache", result.FromCache).
		Msg("Job completed")
	return nil
}

// recordFailure marks the job failed and notifies the owner out of band.
func (e *Executor) recordFailure(ctx context.Context, job *models.Job, msg string) {
	job.MarkFailed(msg)
	if err := e.jobs.UpdateJob(ctx, job); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record failed status")
	}
	e.notify(job.Owner, fmt.Sprintf("Job %s failed", job.ID),
		fmt.Sprintf("Your %s job failed: %s", job.Type, msg))
}

// notify delivers a fire-and-forget owner notification. Delivery failure is
// logged and never affects the job outcome.
func (e *Executor) notify(owner, subject, body string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(owner, subject, body); err != nil {
		e.logger.Warn().Err(err).Str("owner", owner).Str("subject", subject).Msg("Notification failed")
	}
}

// chargeUsage records billed usage for a completed job. Ledger failure is
// logged; the completed job stands.
func (e *Executor) chargeUsage(ctx context.Context, job *models.Job, result *models.JobResult) {
	if e.ledger == nil || result.FromCache {
		// Cache hits cost the platform nothing and are not billed.
		return
	}

	charges := map[string]float64{}
	switch job.Type {
	case models.JobTypeAudienceSnapshot, models.JobTypeRecheck:
		charges["profile_enrich"] = e.costs.ProfileEnrich
	case models.JobTypeFollowerGraph:
		charges["profile_enrich"] = e.costs.ProfileEnrich
		charges["follower_list"] = e.costs.FollowerList
		if result.Analysis != nil {
			charges["analysis"] = e.costs.Analysis
		}
	}

	for action, cost := range charges {
		if cost <= 0 {
			continue
		}
		if err := e.ledger.ChargeUsage(ctx, job.Owner, job.ID, action, cost); err != nil {
			e.logger.Warn().Err(err).Str("job_id", job.ID).Str("action", action).Msg("Usage charge failed")
		}
	}
}
