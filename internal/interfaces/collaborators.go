package interfaces

import (
	"context"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// AnalysisService produces a structured audience analysis. The job executor
// treats it as a pure function and is agnostic to the backing provider.
type AnalysisService interface {
	Analyze(ctx context.Context, analysisCtx *models.AnalysisContext) (*models.AnalysisResult, error)
}

// GraphBuilder turns scraped items plus analysis into presentation data.
type GraphBuilder interface {
	BuildGraph(items []map[string]interface{}, analysis *models.AnalysisResult) (*models.Graph, error)
}

// Notifier delivers fire-and-forget owner notifications. Failures are logged
// by callers and never fail the job that triggered them.
type Notifier interface {
	Notify(user, subject, body string) error
}

// CostLedger records billed usage after a job completes. Its failure is
// logged and does not undo the completed job.
type CostLedger interface {
	ChargeUsage(ctx context.Context, user, jobID, action string, cost float64) error
}
