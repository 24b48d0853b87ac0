package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// ClaudeAnalyzer implements AnalysisService using the Anthropic Claude API.
type ClaudeAnalyzer struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewClaudeAnalyzer creates a Claude-backed analysis service.
func NewClaudeAnalyzer(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeAnalyzer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude analysis (set via ANTHROPIC_API_KEY, VELOCITY_CLAUDE_API_KEY, or analysis.claude.api_key in config)")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude analysis service initialized")

	return &ClaudeAnalyzer{
		config:    config,
		logger:    logger,
		client:    client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}, nil
}

var _ interfaces.AnalysisService = (*ClaudeAnalyzer)(nil)

// Analyze generates a structured audience analysis for the given context.
func (s *ClaudeAnalyzer) Analyze(ctx context.Context, analysisCtx *models.AnalysisContext) (*models.AnalysisResult, error) {
	prompt, err := buildPrompt(analysisCtx)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no response generated from Claude API")
	}

	result, err := parseAnalysis(text.String(), s.config.Model)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("job_id", analysisCtx.JobID).
		Int("segments", len(result.Segments)).
		Dur("duration", time.Since(startTime)).
		Msg("Claude analysis completed")
	return result, nil
}
