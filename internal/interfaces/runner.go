package interfaces

import (
	"context"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// RunOptions tunes one task runner call.
type RunOptions struct {
	// ForceFresh bypasses the fingerprint cache lookup (the result is still
	// written back on success).
	ForceFresh bool
	// Depth is the shape discriminator mixed into the fingerprint, so the
	// same targets scraped at different depths never collide.
	Depth int
}

// TaskRunner executes one idempotent remote task invocation end to end:
// normalize, fingerprint, cache check, submit with credential rotation, poll
// with retry and backoff, fetch, cache write, and one-shot fallback.
type TaskRunner interface {
	Run(ctx context.Context, taskID string, input map[string]interface{}, jobID string, opts RunOptions) (*models.RunResult, error)
}

// JobExecutor runs a claimed job's type-specific handler, enforcing the job
// state machine and centralizing failure capture.
type JobExecutor interface {
	Execute(ctx context.Context, job *models.Job) error
}
