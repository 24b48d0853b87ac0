// Package analysis produces structured audience analyses from scraped
// profile and follower data, backed by a configurable AI provider.
package analysis

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
)

// NewAnalysisService creates the analysis service for the configured
// provider. Callers that can run without analysis should treat a
// construction error as a degraded mode, not a startup failure.
func NewAnalysisService(config *common.AnalysisConfig, logger arbor.ILogger) (interfaces.AnalysisService, error) {
	switch config.Provider {
	case common.AnalysisProviderClaude:
		return NewClaudeAnalyzer(&config.Claude, logger)
	case common.AnalysisProviderGemini:
		return NewGeminiAnalyzer(&config.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown analysis provider: %s", config.Provider)
	}
}
