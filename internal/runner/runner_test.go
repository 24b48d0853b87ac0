package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vanillabrand/fandom-velocity/internal/cache"
	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/credentials"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// fakeProvider scripts the actor platform per test.
type fakeProvider struct {
	mu          sync.Mutex
	submitCalls int
	statusCalls int
	fetchCalls  int
	submitFn    func(token string) (*interfaces.SubmitResponse, error)
	statusFn    func() (models.InvocationStatus, error)
	fetchFn     func(datasetID string) ([]map[string]interface{}, error)
}

func (f *fakeProvider) Submit(ctx context.Context, actorID string, input map[string]interface{}, token string) (*interfaces.SubmitResponse, error) {
	f.mu.Lock()
	f.submitCalls++
	f.mu.Unlock()
	return f.submitFn(token)
}

func (f *fakeProvider) RunStatus(ctx context.Context, runID string, token string) (models.InvocationStatus, error) {
	f.mu.Lock()
	f.statusCalls++
	f.mu.Unlock()
	if f.statusFn != nil {
		return f.statusFn()
	}
	return models.InvocationSucceeded, nil
}

func (f *fakeProvider) FetchItems(ctx context.Context, datasetID string, token string) ([]map[string]interface{}, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.fetchFn != nil {
		return f.fetchFn(datasetID)
	}
	return []map[string]interface{}{{"username": "alpha"}}, nil
}

func (f *fakeProvider) DatasetExists(ctx context.Context, datasetID string, token string) (bool, error) {
	return true, nil
}

func (f *fakeProvider) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls, f.statusCalls, f.fetchCalls
}

// fakeFallback records whether the secondary provider was exercised.
type fakeFallback struct {
	called bool
	items  []map[string]interface{}
	err    error
}

func (f *fakeFallback) Execute(ctx context.Context, taskID string, input map[string]interface{}) ([]map[string]interface{}, error) {
	f.called = true
	return f.items, f.err
}

func (f *fakeFallback) Available() bool { return true }

// fakeCacheStore is an in-memory CacheStorage.
type fakeCacheStore struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
	legacy  map[string]*models.LegacyCacheEntry
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{
		entries: map[string]*models.CacheEntry{},
		legacy:  map[string]*models.LegacyCacheEntry{},
	}
}

func (f *fakeCacheStore) PutEntry(ctx context.Context, entry *models.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry.Fingerprint] = entry
	return nil
}

func (f *fakeCacheStore) GetLatestEntry(ctx context.Context, fp string) (*models.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[fp], nil
}

func (f *fakeCacheStore) GetLegacyEntry(ctx context.Context, key string) (*models.LegacyCacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.legacy[key], nil
}

// fakeJobStore is an in-memory JobStorage used for abort and progress checks.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*models.Job{}}
}

func (f *fakeJobStore) SaveJob(ctx context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStore) UpdateJob(ctx context.Context, job *models.Job) error {
	return f.SaveJob(ctx, job)
}

func (f *fakeJobStore) ClaimNextQueued(ctx context.Context) (*models.Job, error) { return nil, nil }

func (f *fakeJobStore) GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	return nil, nil
}

func (f *fakeJobStore) ResetStrandedJobs(ctx context.Context) (int, error) { return 0, nil }

func testConfig() *common.Config {
	config := common.NewDefaultConfig()
	config.Actor.MaxRetries = 2
	config.Actor.RetryBackoff = "1ms"
	config.Actor.PollInterval = "1ms"
	config.Actor.MaxWait = "10ms"
	return config
}

func newTestRunner(t *testing.T, provider *fakeProvider, fallback interfaces.FallbackProvider, tokens []string, config *common.Config) (*Runner, *fakeCacheStore, *fakeJobStore) {
	t.Helper()
	pool, err := credentials.NewPool(tokens)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	logger := common.GetLogger()
	store := newFakeCacheStore()
	cacheSvc := cache.NewService(store, provider, pool, cache.TTLPolicy{"default": 24}, logger)
	jobs := newFakeJobStore()

	r := NewRunner(provider, fallback, cacheSvc, pool, jobs, config, logger)
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return r, store, jobs
}

func enrichInput(usernames ...string) map[string]interface{} {
	return map[string]interface{}{"usernames": usernames}
}

func TestRunZeroTargetsSkipsRemote(t *testing.T) {
	provider := &fakeProvider{
		submitFn: func(string) (*interfaces.SubmitResponse, error) {
			t.Fatal("submit must not be called for zero targets")
			return nil, nil
		},
	}
	r, _, _ := newTestRunner(t, provider, nil, []string{"tok"}, testConfig())

	result, err := r.Run(context.Background(), TaskProfileEnrich, enrichInput("!!invalid!!"), "", interfaces.RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 0 || result.FromCache {
		t.Errorf("expected empty fresh result, got %+v", result)
	}
	if calls, _, _ := provider.counts(); calls != 0 {
		t.Errorf("submit called %d times, want 0", calls)
	}
}

func TestRunTransientSubmitRetries(t *testing.T) {
	provider := &fakeProvider{
		submitFn: func(string) (*interfaces.SubmitResponse, error) {
			return nil, &models.TransientError{Status: 503, Err: errors.New("gateway")}
		},
	}
	config := testConfig()
	r, _, _ := newTestRunner(t, provider, nil, []string{"tok"}, config)

	_, err := r.Run(context.Background(), TaskProfileEnrich, enrichInput("alpha"), "", interfaces.RunOptions{})
	var pe *models.ProviderError
	if !errors.As(err, &pe) || pe.Stage != "submit" {
		t.Fatalf("expected submit provider error, got %v", err)
	}

	// maxRetries transient retries on top of the initial attempt, no rotation.
	want := config.Actor.MaxRetries + 1
	if calls, _, _ := provider.counts(); calls != want {
		t.Errorf("submit called %d times, want %d", calls, want)
	}
}

func TestRunCredentialRotation(t *testing.T) {
	provider := &fakeProvider{}
	provider.submitFn = func(token string) (*interfaces.SubmitResponse, error) {
		if token == "tok-a" {
			return nil, &models.AuthRejectedError{Status: 402, Message: "quota"}
		}
		return &interfaces.SubmitResponse{RunID: "run-1", DatasetID: "ds-1"}, nil
	}
	r, _, _ := newTestRunner(t, provider, nil, []string{"tok-a", "tok-b"}, testConfig())

	result, err := r.Run(context.Background(), TaskProfileEnrich, enrichInput("alpha"), "", interfaces.RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.DatasetID != "ds-1" || len(result.Items) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if calls, _, _ := provider.counts(); calls != 2 {
		t.Errorf("submit called %d times, want 2", calls)
	}
}

func TestRunAllCredentialsRejected(t *testing.T) {
	provider := &fakeProvider{
		submitFn: func(string) (*interfaces.SubmitResponse, error) {
			return nil, &models.AuthRejectedError{Status: 401, Message: "bad token"}
		},
	}
	r, _, _ := newTestRunner(t, provider, nil, []string{"tok-a", "tok-b", "tok-c"}, testConfig())

	_, err := r.Run(context.Background(), TaskProfileEnrich, enrichInput("alpha"), "", interfaces.RunOptions{})
	var exhausted *models.AuthorizationExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected AuthorizationExhaustedError, got %v", err)
	}
	if exhausted.Rejected != 3 {
		t.Errorf("Rejected = %d, want 3", exhausted.Rejected)
	}
	if !models.IsAuthRejected(exhausted.Last) {
		t.Errorf("Last should unwrap to the final rejection, got %v", exhausted.Last)
	}
}

func TestRunCacheHitSkipsSubmit(t *testing.T) {
	provider := &fakeProvider{
		submitFn: func(string) (*interfaces.SubmitResponse, error) {
			return &interfaces.SubmitResponse{RunID: "run-1", DatasetID: "ds-1"}, nil
		},
	}
	r, _, _ := newTestRunner(t, provider, nil, []string{"tok"}, testConfig())

	ctx := context.Background()
	first, err := r.Run(ctx, TaskProfileEnrich, enrichInput("alpha"), "", interfaces.RunOptions{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.FromCache {
		t.Fatal("first run must not be served from cache")
	}

	second, err := r.Run(ctx, TaskProfileEnrich, enrichInput("@ALPHA"), "", interfaces.RunOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.FromCache {
		t.Fatal("second run with equivalent input must be a cache hit")
	}
	if calls, _, _ := provider.counts(); calls != 1 {
		t.Errorf("submit called %d times across both runs, want 1", calls)
	}
}

func TestRunForceFreshBypassesCache(t *testing.T) {
	provider := &fakeProvider{
		submitFn: func(string) (*interfaces.SubmitResponse, error) {
			return &interfaces.SubmitResponse{RunID: "run-1", DatasetID: "ds-1"}, nil
		},
	}
	r, _, _ := newTestRunner(t, provider, nil, []string{"tok"}, testConfig())

	ctx := context.Background()
	if _, err := r.Run(ctx, TaskProfileEnrich, enrichInput("alpha"), "", interfaces.RunOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	result, err := r.Run(ctx, TaskProfileEnrich, enrichInput("alpha"), "", interfaces.RunOptions{ForceFresh: true})
	if err != nil {
		t.Fatalf("force-fresh run: %v", err)
	}
	if result.FromCache {
		t.Error("force-fresh run must not be served from cache")
	}
	if calls, _, _ := provider.counts(); calls != 2 {
		t.Errorf("submit called %d times, want 2", calls)
	}
}

func TestRunAbortObservedDuringPolling(t *testing.T) {
	provider := &fakeProvider{
		submitFn: func(string) (*interfaces.SubmitResponse, error) {
			return &interfaces.SubmitResponse{RunID: "run-1", DatasetID: "ds-1"}, nil
		},
		statusFn: func() (models.InvocationStatus, error) {
			return models.InvocationRunning, nil
		},
	}
	fallback := &fakeFallback{}
	r, _, jobs := newTestRunner(t, provider, fallback, []string{"tok"}, testConfig())

	job := models.NewJob("owner", models.JobTypeAudienceSnapshot, models.JobMetadata{
		AudienceSnapshot: &models.AudienceSnapshotSpec{Usernames: []string{"alpha"}},
	})
	job.Status = models.JobStatusAborted
	if err := jobs.SaveJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	_, err := r.Run(context.Background(), TaskProfileEnrich, enrichInput("alpha"), job.ID, interfaces.RunOptions{})
	if !models.IsAbortRequested(err) {
		t.Fatalf("expected AbortRequested, got %v", err)
	}
	if fallback.called {
		t.Error("fallback must not run for an aborted job")
	}
}

func TestRunTimeoutCeiling(t *testing.T) {
	provider := &fakeProvider{
		submitFn: func(string) (*interfaces.SubmitResponse, error) {
			return &interfaces.SubmitResponse{RunID: "run-1", DatasetID: "ds-1"}, nil
		},
		statusFn: func() (models.InvocationStatus, error) {
			return models.InvocationRunning, nil
		},
	}
	fallback := &fakeFallback{items: []map[string]interface{}{{"username": "x"}}}
	config := testConfig()
	config.Actor.PollInterval = "10ms"
	config.Actor.MaxWait = "30ms"
	r, _, _ := newTestRunner(t, provider, fallback, []string{"tok"}, config)

	_, err := r.Run(context.Background(), TaskProfileEnrich, enrichInput("alpha"), "", interfaces.RunOptions{})
	var timeout *models.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if _, polls, _ := provider.counts(); polls != 3 {
		t.Errorf("status polled %d times, want 3 (max_wait / poll_interval)", polls)
	}
	if fallback.called {
		t.Error("fallback must not run after a polling timeout")
	}
}

func TestRunFallbackSuccess(t *testing.T) {
	provider := &fakeProvider{
		submitFn: func(string) (*interfaces.SubmitResponse, error) {
			return nil, errors.New("actor not found")
		},
	}
	fallback := &fakeFallback{items: []map[string]interface{}{{"username": "alpha"}}}
	r, _, _ := newTestRunner(t, provider, fallback, []string{"tok"}, testConfig())

	result, err := r.Run(context.Background(), TaskProfileEnrich, enrichInput("alpha"), "", interfaces.RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fallback.called {
		t.Fatal("fallback was not attempted")
	}
	if result.FromCache || result.DatasetID != "" || len(result.Items) != 1 {
		t.Errorf("unexpected fallback result: %+v", result)
	}
}

func TestRunFallbackCompositeFailure(t *testing.T) {
	provider := &fakeProvider{
		submitFn: func(string) (*interfaces.SubmitResponse, error) {
			return nil, errors.New("actor not found")
		},
	}
	fallback := &fakeFallback{err: errors.New("fallback down")}
	r, _, _ := newTestRunner(t, provider, fallback, []string{"tok"}, testConfig())

	_, err := r.Run(context.Background(), TaskProfileEnrich, enrichInput("alpha"), "", interfaces.RunOptions{})
	var composite *models.CompositeFailure
	if !errors.As(err, &composite) {
		t.Fatalf("expected CompositeFailure, got %v", err)
	}
	if composite.Primary == nil || composite.Fallback == nil {
		t.Errorf("both causes must be preserved: %+v", composite)
	}
}
