package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
	"github.com/vanillabrand/fandom-velocity/internal/runner"
)

// maxRecheckPasses is the hard ceiling on recheck iterations regardless of
// what the job requests.
const maxRecheckPasses = 5

// runAudienceSnapshot enriches the requested profiles in one scrape pass.
func (e *Executor) runAudienceSnapshot(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	spec := job.Metadata.AudienceSnapshot
	if spec == nil {
		return nil, fmt.Errorf("audience_snapshot job %s is missing its metadata", job.ID)
	}

	res, err := e.runner.Run(ctx, runner.TaskProfileEnrich,
		map[string]interface{}{"usernames": spec.Usernames},
		job.ID,
		interfaces.RunOptions{ForceFresh: spec.ForceFresh})
	if err != nil {
		return nil, err
	}

	return &models.JobResult{
		Items:       res.Items,
		DatasetID:   res.DatasetID,
		FromCache:   res.FromCache,
		RecordCount: len(res.Items),
	}, nil
}

// runFollowerGraph enriches the requested profiles, scrapes the follower
// lists of the profiles that actually resolved, then analyzes and builds the
// audience graph.
func (e *Executor) runFollowerGraph(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	spec := job.Metadata.FollowerGraph
	if spec == nil {
		return nil, fmt.Errorf("follower_graph job %s is missing its metadata", job.ID)
	}

	enrich := e.runStep(ctx, job, runner.TaskProfileEnrich,
		map[string]interface{}{"usernames": spec.Usernames},
		interfaces.RunOptions{ForceFresh: spec.ForceFresh})
	if enrich.outcome.Kind == models.StepFailed {
		return nil, enrich.outcome.Err
	}

	// Follower targets come from the enrichment results, not the raw request:
	// handles that failed to resolve upstream are not scraped downstream.
	steps := map[string][]map[string]interface{}{
		"enrich": enrich.outcome.Items,
	}
	targets, err := e.resolver.Resolve("{{enrich.username}}", steps)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve follower targets: %w", err)
	}

	followerInput := map[string]interface{}{"usernames": targets}
	if spec.MaxFollowers > 0 {
		followerInput["maxFollowers"] = spec.MaxFollowers
	}
	followers := e.runStep(ctx, job, runner.TaskFollowerList, followerInput,
		interfaces.RunOptions{ForceFresh: spec.ForceFresh, Depth: 1})
	if followers.outcome.Kind == models.StepFailed {
		return nil, followers.outcome.Err
	}

	result := &models.JobResult{
		Items:       enrich.outcome.Items,
		DatasetID:   enrich.datasetID,
		FromCache:   enrich.fromCache && followers.fromCache,
		RecordCount: len(enrich.outcome.Items) + len(followers.outcome.Items),
	}

	if e.analysis != nil && len(enrich.outcome.Items) > 0 {
		analysisCtx := &models.AnalysisContext{
			Owner:     job.Owner,
			JobID:     job.ID,
			Profiles:  enrich.outcome.Items,
			Followers: groupFollowers(followers.outcome.Items),
		}
		analysis, aerr := e.analysis.Analyze(ctx, analysisCtx)
		if aerr != nil {
			// Analysis enriches the result; its failure does not discard the
			// scraped data.
			e.logger.Warn().Err(aerr).Str("job_id", job.ID).Msg("Audience analysis failed")
		} else {
			result.Analysis = analysis
		}
	}

	if e.graph != nil {
		graph, gerr := e.graph.BuildGraph(enrich.outcome.Items, result.Analysis)
		if gerr != nil {
			e.logger.Warn().Err(gerr).Str("job_id", job.ID).Msg("Graph build failed")
		} else {
			result.Graph = graph
		}
	}

	return result, nil
}

// runRecheck re-enriches profiles that came back incomplete, bounded by the
// requested pass count. Rechecks always bypass the cache: re-serving the
// cached incomplete snapshot would make every pass a no-op.
func (e *Executor) runRecheck(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	spec := job.Metadata.Recheck
	if spec == nil {
		return nil, fmt.Errorf("recheck job %s is missing its metadata", job.ID)
	}

	passes := spec.MaxPasses
	if passes <= 0 {
		passes = 2
	}
	if passes > maxRecheckPasses {
		passes = maxRecheckPasses
	}

	byUsername := map[string]map[string]interface{}{}
	remaining := spec.Usernames

	for pass := 0; pass < passes && len(remaining) > 0; pass++ {
		res, err := e.runner.Run(ctx, runner.TaskProfileEnrich,
			map[string]interface{}{"usernames": remaining},
			job.ID,
			interfaces.RunOptions{ForceFresh: true})
		if err != nil {
			return nil, err
		}

		for _, item := range res.Items {
			if username, ok := item["username"].(string); ok && username != "" {
				byUsername[strings.ToLower(username)] = item
			}
		}

		remaining = incompleteTargets(remaining, byUsername)
		e.logger.Info().
			Str("job_id", job.ID).
			Int("pass", pass+1).
			Int("remaining", len(remaining)).
			Msg("Recheck pass finished")
	}

	items := make([]map[string]interface{}, 0, len(byUsername))
	for _, item := range byUsername {
		items = append(items, item)
	}

	return &models.JobResult{
		Items:       items,
		RecordCount: len(items),
	}, nil
}

// stepResult pairs a step outcome with the run provenance handlers fold into
// the job result.
type stepResult struct {
	outcome   models.StepOutcome
	datasetID string
	fromCache bool
}

// runStep executes one runner call as an explicit step outcome. A run whose
// input normalizes to nothing is a skipped step, not a failed one.
func (e *Executor) runStep(ctx context.Context, job *models.Job, taskID string, input map[string]interface{}, opts interfaces.RunOptions) stepResult {
	res, err := e.runner.Run(ctx, taskID, input, job.ID, opts)
	if err != nil {
		return stepResult{outcome: models.Fail(err)}
	}
	if len(res.Items) == 0 && !res.FromCache && res.DatasetID == "" {
		return stepResult{outcome: models.Skip("no valid targets"), fromCache: false}
	}
	return stepResult{outcome: models.Success(res.Items), datasetID: res.DatasetID, fromCache: res.FromCache}
}

// incompleteTargets returns the usernames still missing a complete profile
// snapshot. A profile is complete when it resolved at all and carries a
// follower count, the field the upstream scraper omits on partial reads.
func incompleteTargets(targets []string, byUsername map[string]map[string]interface{}) []string {
	var out []string
	for _, t := range targets {
		key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "@"))
		item, ok := byUsername[key]
		if !ok {
			out = append(out, t)
			continue
		}
		if _, hasCount := item["followersCount"]; !hasCount {
			out = append(out, t)
		}
	}
	return out
}

// groupFollowers buckets follower items by the profile they belong to.
func groupFollowers(items []map[string]interface{}) map[string][]map[string]interface{} {
	if len(items) == 0 {
		return nil
	}
	grouped := map[string][]map[string]interface{}{}
	for _, item := range items {
		owner, _ := item["ownerUsername"].(string)
		grouped[owner] = append(grouped[owner], item)
	}
	return grouped
}
