package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// GeminiAnalyzer implements AnalysisService using the Google Gemini API.
type GeminiAnalyzer struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiAnalyzer creates a Gemini-backed analysis service.
func NewGeminiAnalyzer(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiAnalyzer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for Gemini analysis (set via VELOCITY_GEMINI_API_KEY or analysis.gemini.api_key in config)")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini analysis service initialized")

	return &GeminiAnalyzer{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

var _ interfaces.AnalysisService = (*GeminiAnalyzer)(nil)

// Analyze generates a structured audience analysis for the given context.
func (s *GeminiAnalyzer) Analyze(ctx context.Context, analysisCtx *models.AnalysisContext) (*models.AnalysisResult, error) {
	prompt, err := buildPrompt(analysisCtx)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(s.config.Temperature),
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	result, err := parseAnalysis(text, s.config.Model)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("job_id", analysisCtx.JobID).
		Int("segments", len(result.Segments)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini analysis completed")
	return result, nil
}
