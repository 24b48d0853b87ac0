// Package runner executes one idempotent remote task invocation end to end:
// normalize, fingerprint, cache check, submit with credential rotation, poll
// with retry and backoff, fetch, cache write, and one-shot fallback.
package runner

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/cache"
	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/credentials"
	"github.com/vanillabrand/fandom-velocity/internal/fingerprint"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// progressCeiling caps the cosmetic progress the runner reports while a run
// is in flight; the executor owns the jump to 100 on completion.
const progressCeiling = 90

// Runner implements interfaces.TaskRunner against the actor platform.
type Runner struct {
	provider interfaces.TaskProvider
	fallback interfaces.FallbackProvider
	cache    *cache.Service
	pool     *credentials.Pool
	jobs     interfaces.JobStorage
	logger   arbor.ILogger

	pollInterval time.Duration
	maxWait      time.Duration
	maxRetries   int
	retryBackoff time.Duration

	// sleep is swapped in tests to avoid real waiting.
	sleep func(context.Context, time.Duration) error
}

// NewRunner creates the task runner.
func NewRunner(
	provider interfaces.TaskProvider,
	fallback interfaces.FallbackProvider,
	cacheService *cache.Service,
	pool *credentials.Pool,
	jobs interfaces.JobStorage,
	config *common.Config,
	logger arbor.ILogger,
) *Runner {
	return &Runner{
		provider:     provider,
		fallback:     fallback,
		cache:        cacheService,
		pool:         pool,
		jobs:         jobs,
		logger:       logger,
		pollInterval: config.ActorPollInterval(),
		maxWait:      config.ActorMaxWait(),
		maxRetries:   config.Actor.MaxRetries,
		retryBackoff: config.ActorRetryBackoff(),
		sleep:        sleepCtx,
	}
}

var _ interfaces.TaskRunner = (*Runner)(nil)

// Run executes one task invocation. Zero valid targets is an empty success
// with no remote call. A cache hit serves the stored dataset. Otherwise the
// run is submitted, polled to a terminal state, fetched, and cached; when
// the primary pipeline fails for anything but a timeout or an abort, the
// fallback provider gets exactly one attempt.
func (r *Runner) Run(ctx context.Context, taskID string, input map[string]interface{}, jobID string, opts interfaces.RunOptions) (*models.RunResult, error) {
	canonical := CanonicalTaskID(taskID)

	normalized, targets, err := normalizeInput(taskID, input)
	if err != nil {
		if err == models.ErrNoTargets {
			r.logger.Info().Str("task_id", taskID).Str("job_id", jobID).Msg("No valid targets after normalization, skipping remote call")
			return &models.RunResult{Items: []map[string]interface{}{}}, nil
		}
		return nil, err
	}

	fp := fingerprint.Compute(canonical, normalized, opts.Depth)
	dataType := dataTypeFor(canonical)

	if !opts.ForceFresh {
		legacyKey := fingerprint.LegacyKey(canonical, targets)
		if hit := r.cache.Lookup(ctx, fp, legacyKey, dataType); hit != nil {
			if result, ok := r.serveHit(ctx, hit, fp, jobID); ok {
				return result, nil
			}
		}
	}

	result, err := r.runPrimary(ctx, canonical, normalized, fp, dataType, jobID)
	if err == nil {
		return result, nil
	}

	// Cooperative cancellation and timeout never divert to the fallback: an
	// abort is a user decision, and a timed-out run may still be burning the
	// same upstream resources a fallback would contend for.
	if models.IsAbortRequested(err) || isTimeout(err) || ctx.Err() != nil {
		return nil, err
	}

	if r.fallback == nil || !r.fallback.Available() {
		return nil, err
	}

	r.logger.Warn().Err(err).Str("task_id", canonical).Str("job_id", jobID).Msg("Primary execution failed, attempting fallback")
	items, ferr := r.fallback.Execute(ctx, canonical, normalized)
	if ferr != nil {
		return nil, &models.CompositeFailure{Primary: err, Fallback: ferr}
	}

	// Fallback results have no dataset id to cache against.
	return &models.RunResult{Items: items}, nil
}

// serveHit fetches items from a cached dataset. A fetch failure degrades to a
// miss rather than failing the invocation.
func (r *Runner) serveHit(ctx context.Context, hit *cache.Hit, fp string, jobID string) (*models.RunResult, bool) {
	var items []map[string]interface{}
	err := withRetry(ctx, r.maxRetries, r.retryBackoff, r.sleep, func() error {
		var fetchErr error
		items, fetchErr = r.provider.FetchItems(ctx, hit.DatasetID, r.pool.Primary())
		return fetchErr
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("dataset_id", hit.DatasetID).Str("job_id", jobID).Msg("Cached dataset fetch failed, re-executing")
		return nil, false
	}

	r.logger.Info().
		Str("fingerprint", fp).
		Str("dataset_id", hit.DatasetID).
		Bool("legacy", hit.Legacy).
		Int("items", len(items)).
		Str("job_id", jobID).
		Msg("Serving cached result")
	return &models.RunResult{Items: items, DatasetID: hit.DatasetID, FromCache: true}, true
}

// runPrimary drives the submit, poll, fetch, cache-write pipeline. The
// invocation record lives only for this call; its cache entry is the sole
// durable artifact.
func (r *Runner) runPrimary(ctx context.Context, canonical string, input map[string]interface{}, fp string, dataType models.DataType, jobID string) (*models.RunResult, error) {
	submitted, token, err := r.submitWithRotation(ctx, canonical, input)
	if err != nil {
		return nil, err
	}

	inv := &models.TaskInvocation{
		TaskID:     canonical,
		Input:      input,
		Credential: token,
		RunID:      submitted.RunID,
		DatasetID:  submitted.DatasetID,
		Status:     models.InvocationPending,
	}

	if err := r.pollUntilDone(ctx, inv, jobID); err != nil {
		return nil, err
	}

	var items []map[string]interface{}
	err = withRetry(ctx, r.maxRetries, r.retryBackoff, r.sleep, func() error {
		var fetchErr error
		items, fetchErr = r.provider.FetchItems(ctx, inv.DatasetID, inv.Credential)
		return fetchErr
	})
	if err != nil {
		return nil, &models.ProviderError{Stage: "fetch", Err: err}
	}

	if werr := r.cache.Write(ctx, fp, inv.DatasetID, len(items), dataType); werr != nil {
		// The result is in hand; a failed write only forfeits reuse.
		r.logger.Warn().Err(werr).Str("fingerprint", fp).Msg("Cache write failed")
	}

	return &models.RunResult{Items: items, DatasetID: inv.DatasetID}, nil
}

// submitWithRotation walks the credential pool in order. A rejected
// credential rotates to the next; transient errors retry in place with
// backoff. When every credential is rejected the pool is exhausted.
func (r *Runner) submitWithRotation(ctx context.Context, canonical string, input map[string]interface{}) (*interfaces.SubmitResponse, string, error) {
	var lastRejection error
	rejected := 0

	for _, token := range r.pool.Tokens() {
		var resp *interfaces.SubmitResponse
		err := withRetry(ctx, r.maxRetries, r.retryBackoff, r.sleep, func() error {
			var submitErr error
			resp, submitErr = r.provider.Submit(ctx, canonical, input, token)
			return submitErr
		})
		if err == nil {
			return resp, token, nil
		}
		if models.IsAuthRejected(err) {
			rejected++
			lastRejection = err
			r.logger.Warn().Err(err).Str("task_id", canonical).Msg("Credential rejected, rotating")
			continue
		}
		return nil, "", &models.ProviderError{Stage: "submit", Err: err}
	}

	r.logger.Error().
		Str("task_id", canonical).
		Int("rejected", rejected).
		Int("pool_size", r.pool.Size()).
		Msg("Every credential in the pool was rejected")
	return nil, "", &models.AuthorizationExhaustedError{Rejected: rejected, Last: lastRejection}
}

// pollUntilDone polls the invocation to a terminal state, bounded by the
// configured ceiling. Each tick re-reads the owning job so an external abort
// is observed within one poll interval, and nudges cosmetic progress forward.
func (r *Runner) pollUntilDone(ctx context.Context, inv *models.TaskInvocation, jobID string) error {
	maxPolls := int(r.maxWait / r.pollInterval)
	if maxPolls < 1 {
		maxPolls = 1
	}

	for i := 0; i < maxPolls; i++ {
		if err := r.sleep(ctx, r.pollInterval); err != nil {
			return err
		}

		if aborted, err := r.jobAborted(ctx, jobID); err == nil && aborted {
			return &models.AbortRequested{JobID: jobID}
		}

		var status models.InvocationStatus
		err := withRetry(ctx, r.maxRetries, r.retryBackoff, r.sleep, func() error {
			var pollErr error
			status, pollErr = r.provider.RunStatus(ctx, inv.RunID, inv.Credential)
			return pollErr
		})
		if err != nil {
			return &models.ProviderError{Stage: "poll", Err: err}
		}

		inv.Status = status
		if status.IsTerminal() {
			if status == models.InvocationSucceeded {
				return nil
			}
			return &models.ProviderError{Stage: "poll", Err: &runEndedError{runID: inv.RunID, status: status}}
		}

		r.bumpProgress(ctx, jobID)
	}

	return &models.TimeoutError{RunID: inv.RunID, Waited: time.Duration(maxPolls) * r.pollInterval}
}

// jobAborted re-reads the owning job's status. Read failures are swallowed:
// a flaky store must not look like an abort.
func (r *Runner) jobAborted(ctx context.Context, jobID string) (bool, error) {
	if jobID == "" || r.jobs == nil {
		return false, nil
	}
	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.Status == models.JobStatusAborted, nil
}

// bumpProgress nudges the job's cosmetic progress while polling, capped below
// the ceiling so completion is always a visible jump. Failures are ignored.
func (r *Runner) bumpProgress(ctx context.Context, jobID string) {
	if jobID == "" || r.jobs == nil {
		return
	}
	job, err := r.jobs.GetJob(ctx, jobID)
	if err != nil || job.Status != models.JobStatusRunning {
		return
	}
	if job.Progress >= progressCeiling {
		return
	}
	job.Progress += 5
	if job.Progress > progressCeiling {
		job.Progress = progressCeiling
	}
	if err := r.jobs.UpdateJob(ctx, job); err != nil {
		r.logger.Debug().Err(err).Str("job_id", jobID).Msg("Progress update failed")
	}
}

// runEndedError reports a run that reached a terminal state other than
// success.
type runEndedError struct {
	runID  string
	status models.InvocationStatus
}

func (e *runEndedError) Error() string {
	return "run " + e.runID + " ended with status " + string(e.status)
}

func isTimeout(err error) bool {
	var te *models.TimeoutError
	return errors.As(err, &te)
}
