package interfaces

import (
	"context"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// SubmitResponse is what the remote actor platform returns for a new run.
type SubmitResponse struct {
	RunID     string
	DatasetID string
}

// TaskProvider is the remote actor platform: submit a run, poll its status,
// and fetch the materialized dataset once the run succeeds.
//
// Implementations must classify responses: rate-limit and gateway/timeout
// errors surface as *models.TransientError, credential rejections as
// *models.AuthRejectedError. Anything else is fatal for the invocation.
type TaskProvider interface {
	Submit(ctx context.Context, actorID string, input map[string]interface{}, token string) (*SubmitResponse, error)
	RunStatus(ctx context.Context, runID string, token string) (models.InvocationStatus, error)
	FetchItems(ctx context.Context, datasetID string, token string) ([]map[string]interface{}, error)
	// DatasetExists checks whether a cached result location is still
	// retrievable before a cache hit is served.
	DatasetExists(ctx context.Context, datasetID string, token string) (bool, error)
}

// FallbackProvider executes one alternate scrape through the secondary
// provider with a re-mapped input shape. It is synchronous and attempted at
// most once per task runner call.
type FallbackProvider interface {
	Execute(ctx context.Context, taskID string, input map[string]interface{}) ([]map[string]interface{}, error)
	Available() bool
}
