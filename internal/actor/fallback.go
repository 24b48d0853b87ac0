package actor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
)

// FallbackClient executes a scrape through the secondary direct provider. It
// speaks a different input shape than the actor platform, so the primary
// run input is re-mapped before submission. Execution is synchronous; the
// runner attempts it at most once per invocation.
type FallbackClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewFallbackClient creates the secondary provider client. An empty baseURL
// leaves the client permanently unavailable.
func NewFallbackClient(baseURL, token string, timeout time.Duration, logger arbor.ILogger) *FallbackClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &FallbackClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

var _ interfaces.FallbackProvider = (*FallbackClient)(nil)

// Available reports whether the fallback is configured.
func (c *FallbackClient) Available() bool {
	return c.baseURL != ""
}

// Execute runs one synchronous scrape. The actor-shaped input is re-mapped to
// the direct provider's request format.
func (c *FallbackClient) Execute(ctx context.Context, taskID string, input map[string]interface{}) ([]map[string]interface{}, error) {
	if !c.Available() {
		return nil, fmt.Errorf("fallback provider is not configured")
	}

	payload, err := json.Marshal(remapFallbackInput(taskID, input))
	if err != nil {
		return nil, fmt.Errorf("failed to encode fallback request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fallback request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fallback provider returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var result struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode fallback response: %w", err)
	}

	if c.logger != nil {
		c.logger.Info().
			Str("task_id", taskID).
			Int("items", len(result.Items)).
			Msg("Fallback scrape completed")
	}
	return result.Items, nil
}

// remapFallbackInput translates the actor platform input shape into the
// direct provider's request. The actor shape keys targets under "usernames"
// or "userIds"; the direct provider takes a single "targets" list plus a mode
// derived from the task.
func remapFallbackInput(taskID string, input map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{
		"mode": fallbackMode(taskID),
	}

	for _, key := range []string{"usernames", "userIds"} {
		if v, ok := input[key]; ok {
			out["targets"] = v
			break
		}
	}
	if limit, ok := input["maxFollowers"]; ok {
		out["limit"] = limit
	}
	return out
}

func fallbackMode(taskID string) string {
	if strings.Contains(taskID, "follower") {
		return "followers"
	}
	return "enrich"
}
