// Package actor implements the HTTP client for the remote actor platform:
// run submission, run status polling, and dataset retrieval. Credentials are
// passed per call so the runner's rotation logic owns token choice.
package actor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

const (
	defaultBaseURL = "https://api.apify.com"
	defaultTimeout = 30 * time.Second

	// fetchPageSize is the dataset items page size; runs can materialize tens
	// of thousands of records so fetches paginate and flatten.
	fetchPageSize = 1000
)

// Client talks to the actor platform REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the platform API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithSubmitRate limits run submissions to n per second across the process.
func WithSubmitRate(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(n), n)
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an actor platform client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ interfaces.TaskProvider = (*Client)(nil)

// runData is the platform's run envelope payload.
type runData struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

type runEnvelope struct {
	Data runData `json:"data"`
}

// Submit starts a run of the given actor and returns its run and dataset ids.
func (c *Client) Submit(ctx context.Context, actorID string, input map[string]interface{}, token string) (*interfaces.SubmitResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/runs", c.baseURL, url.PathEscape(actorID))
	data, err := c.do(ctx, http.MethodPost, endpoint, token, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var env runEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode run response: %w", err)
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("run response missing run id")
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("actor_id", actorID).
			Str("run_id", env.Data.ID).
			Str("dataset_id", env.Data.DefaultDatasetID).
			Msg("Actor run submitted")
	}

	return &interfaces.SubmitResponse{
		RunID:     env.Data.ID,
		DatasetID: env.Data.DefaultDatasetID,
	}, nil
}

// RunStatus polls the platform for the run's current state.
func (c *Client) RunStatus(ctx context.Context, runID string, token string) (models.InvocationStatus, error) {
	endpoint := fmt.Sprintf("%s/v2/actor-runs/%s", c.baseURL, url.PathEscape(runID))
	data, err := c.do(ctx, http.MethodGet, endpoint, token, nil)
	if err != nil {
		return "", err
	}

	var env runEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("failed to decode run status: %w", err)
	}
	return mapRunStatus(env.Data.Status), nil
}

// FetchItems downloads the full dataset, paginating and flattening pages into
// one slice.
func (c *Client) FetchItems(ctx context.Context, datasetID string, token string) ([]map[string]interface{}, error) {
	var items []map[string]interface{}
	offset := 0
	for {
		endpoint := fmt.Sprintf("%s/v2/datasets/%s/items?offset=%d&limit=%d",
			c.baseURL, url.PathEscape(datasetID), offset, fetchPageSize)
		data, err := c.do(ctx, http.MethodGet, endpoint, token, nil)
		if err != nil {
			return nil, err
		}

		var page []map[string]interface{}
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("failed to decode dataset page at offset %d: %w", offset, err)
		}
		items = append(items, page...)

		if len(page) < fetchPageSize {
			return items, nil
		}
		offset += len(page)
	}
}

// DatasetExists reports whether the dataset is still retrievable. A 404 is a
// definitive no; any other failure is returned for the caller to classify.
func (c *Client) DatasetExists(ctx context.Context, datasetID string, token string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v2/datasets/%s", c.baseURL, url.PathEscape(datasetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &models.TransientError{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, classifyStatus(resp.StatusCode, "dataset check failed")
	}
}

// do issues one request and returns the body on 2xx, classifying every other
// outcome into the provider error taxonomy.
func (c *Client) do(ctx context.Context, method, endpoint, token string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Network failures are retryable.
		return nil, &models.TransientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransientError{Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, classifyStatus(resp.StatusCode, truncate(string(data), 200))
}

// classifyStatus maps an HTTP status onto the error taxonomy the runner acts
// on: credential rejections rotate, transient failures retry with backoff,
// everything else is fatal for the invocation.
func classifyStatus(status int, message string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return &models.AuthRejectedError{Status: status, Message: message}
	case http.StatusTooManyRequests:
		return &models.TransientError{Status: status, RateLimited: true, Err: fmt.Errorf("%s", message)}
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &models.TransientError{Status: status, Err: fmt.Errorf("%s", message)}
	default:
		return fmt.Errorf("provider returned status %d: %s", status, message)
	}
}

// mapRunStatus normalizes the platform's run status strings.
func mapRunStatus(s string) models.InvocationStatus {
	switch strings.ToUpper(s) {
	case "READY":
		return models.InvocationPending
	case "RUNNING":
		return models.InvocationRunning
	case "SUCCEEDED":
		return models.InvocationSucceeded
	case "FAILED":
		return models.InvocationFailed
	case "ABORTING", "ABORTED":
		return models.InvocationAborted
	case "TIMING-OUT", "TIMED-OUT":
		return models.InvocationTimedOut
	default:
		return models.InvocationPending
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
