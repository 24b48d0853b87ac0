package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

const systemPrompt = `You are an audience analyst. Given scraped social profile
data and follower samples, identify the main audience segments and summarize
the account's audience composition. Respond with JSON only, no prose, in the
shape: {"summary": string, "segments": [{"label": string, "score": number}]}.
Scores are 0 to 1 and reflect segment share of the audience.`

// maxProfilesInPrompt bounds the prompt size; large scrapes are sampled.
const maxProfilesInPrompt = 50

// buildPrompt renders the analysis context as the user message.
func buildPrompt(analysisCtx *models.AnalysisContext) (string, error) {
	profiles := analysisCtx.Profiles
	if len(profiles) > maxProfilesInPrompt {
		profiles = profiles[:maxProfilesInPrompt]
	}

	payload := map[string]interface{}{
		"owner":    analysisCtx.Owner,
		"profiles": profiles,
	}
	if len(analysisCtx.Followers) > 0 {
		sampled := map[string][]map[string]interface{}{}
		for username, followers := range analysisCtx.Followers {
			if len(followers) > maxProfilesInPrompt {
				followers = followers[:maxProfilesInPrompt]
			}
			sampled[username] = followers
		}
		payload["followers"] = sampled
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis context: %w", err)
	}
	return "Analyze this audience data:\n" + string(data), nil
}

// parseAnalysis decodes the provider's JSON response, tolerating markdown
// code fences around the payload.
func parseAnalysis(text string, model string) (*models.AnalysisResult, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if result.Summary == "" {
		return nil, fmt.Errorf("analysis response missing summary")
	}
	result.Model = model
	return &result, nil
}
