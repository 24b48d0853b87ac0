package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/credentials"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

type stubStore struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
	legacy  map[string]*models.LegacyCacheEntry
	readErr error
	puts    []*models.CacheEntry
}

func newStubStore() *stubStore {
	return &stubStore{
		entries: map[string]*models.CacheEntry{},
		legacy:  map[string]*models.LegacyCacheEntry{},
	}
}

func (s *stubStore) PutEntry(ctx context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, entry)
	s.entries[entry.Fingerprint] = entry
	return nil
}

func (s *stubStore) GetLatestEntry(ctx context.Context, fp string) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.entries[fp], nil
}

func (s *stubStore) GetLegacyEntry(ctx context.Context, key string) (*models.LegacyCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.legacy[key], nil
}

type stubProvider struct {
	exists    bool
	existsErr error
}

func (p *stubProvider) Submit(ctx context.Context, actorID string, input map[string]interface{}, token string) (*interfaces.SubmitResponse, error) {
	return nil, errors.New("not used")
}

func (p *stubProvider) RunStatus(ctx context.Context, runID string, token string) (models.InvocationStatus, error) {
	return models.InvocationSucceeded, nil
}

func (p *stubProvider) FetchItems(ctx context.Context, datasetID string, token string) ([]map[string]interface{}, error) {
	return nil, errors.New("not used")
}

func (p *stubProvider) DatasetExists(ctx context.Context, datasetID string, token string) (bool, error) {
	return p.exists, p.existsErr
}

func newTestService(t *testing.T, store *stubStore, provider *stubProvider, policy TTLPolicy) *Service {
	t.Helper()
	pool, err := credentials.NewPool([]string{"tok"})
	if err != nil {
		t.Fatal(err)
	}
	return NewService(store, provider, pool, policy, common.GetLogger())
}

func TestTTLForFallsBack(t *testing.T) {
	policy := TTLPolicy{"profile_snapshot": 48, "default": 12}

	tests := []struct {
		dataType models.DataType
		want     int
	}{
		{models.DataTypeProfileSnapshot, 48},
		{models.DataTypeFollowerList, 12}, // falls back to default row
		{models.DataTypeDefault, 12},
	}
	for _, tt := range tests {
		if got := policy.TTLFor(tt.dataType); got != tt.want {
			t.Errorf("TTLFor(%s) = %d, want %d", tt.dataType, got, tt.want)
		}
	}

	// Empty policy degrades to 24 hours.
	if got := (TTLPolicy{}).TTLFor(models.DataTypeDefault); got != 24 {
		t.Errorf("empty policy TTL = %d, want 24", got)
	}
}

func TestLookupFreshnessBoundary(t *testing.T) {
	store := newStubStore()
	svc := newTestService(t, store, &stubProvider{exists: true}, TTLPolicy{"default": 24})

	now := time.Now().UTC()
	svc.now = func() time.Time { return now }

	tests := []struct {
		name    string
		age     time.Duration
		wantHit bool
	}{
		{"well within TTL", time.Hour, true},
		{"just inside TTL", 24*time.Hour - time.Second, true},
		{"exactly at TTL", 24 * time.Hour, false},
		{"past TTL", 25 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.entries["fp"] = &models.CacheEntry{
				ID:          "fp@1",
				Fingerprint: "fp",
				DatasetID:   "ds-1",
				DataType:    models.DataTypeDefault,
				ExecutedAt:  now.Add(-tt.age),
				TTLHours:    24,
			}
			hit := svc.Lookup(context.Background(), "fp", "", models.DataTypeDefault)
			if (hit != nil) != tt.wantHit {
				t.Errorf("hit = %v, wantHit = %v", hit, tt.wantHit)
			}
		})
	}
}

func TestLookupStampedTTLWins(t *testing.T) {
	// The entry was written under a 48h policy; the current policy says 1h.
	// The stamped value governs.
	store := newStubStore()
	svc := newTestService(t, store, &stubProvider{exists: true}, TTLPolicy{"default": 1})

	store.entries["fp"] = &models.CacheEntry{
		ID:          "fp@1",
		Fingerprint: "fp",
		DatasetID:   "ds-1",
		ExecutedAt:  time.Now().UTC().Add(-10 * time.Hour),
		TTLHours:    48,
	}
	if hit := svc.Lookup(context.Background(), "fp", "", models.DataTypeDefault); hit == nil {
		t.Error("entry within its stamped TTL must hit regardless of current policy")
	}
}

func TestLookupUnretrievableDatasetMisses(t *testing.T) {
	store := newStubStore()
	store.entries["fp"] = &models.CacheEntry{
		ID:          "fp@1",
		Fingerprint: "fp",
		DatasetID:   "ds-gone",
		ExecutedAt:  time.Now().UTC(),
		TTLHours:    24,
	}

	for _, provider := range []*stubProvider{
		{exists: false},
		{existsErr: errors.New("provider down")},
	} {
		svc := newTestService(t, store, provider, TTLPolicy{"default": 24})
		if hit := svc.Lookup(context.Background(), "fp", "", models.DataTypeDefault); hit != nil {
			t.Errorf("unretrievable dataset served as hit: %+v", hit)
		}
	}
}

func TestLookupStoreErrorFailsOpen(t *testing.T) {
	store := newStubStore()
	store.readErr = errors.New("store unreachable")
	svc := newTestService(t, store, &stubProvider{exists: true}, TTLPolicy{"default": 24})

	if hit := svc.Lookup(context.Background(), "fp", "legacy", models.DataTypeDefault); hit != nil {
		t.Errorf("store error must degrade to miss, got %+v", hit)
	}
}

func TestLookupLegacyFallback(t *testing.T) {
	store := newStubStore()
	store.legacy["task|alpha"] = &models.LegacyCacheEntry{
		Key:       "task|alpha",
		DatasetID: "ds-old",
		ScrapedAt: time.Now().UTC().Add(-time.Hour),
	}
	svc := newTestService(t, store, &stubProvider{exists: true}, TTLPolicy{"default": 24})

	hit := svc.Lookup(context.Background(), "fp-without-entry", "task|alpha", models.DataTypeDefault)
	if hit == nil || !hit.Legacy || hit.DatasetID != "ds-old" {
		t.Errorf("expected legacy hit, got %+v", hit)
	}

	// Legacy entries use the current policy for freshness.
	stale := newTestService(t, store, &stubProvider{exists: true}, TTLPolicy{"default": 1})
	store.legacy["task|alpha"].ScrapedAt = time.Now().UTC().Add(-2 * time.Hour)
	if hit := stale.Lookup(context.Background(), "fp-without-entry", "task|alpha", models.DataTypeDefault); hit != nil {
		t.Errorf("stale legacy entry served as hit: %+v", hit)
	}
}

func TestWriteStampsPolicyTTL(t *testing.T) {
	store := newStubStore()
	svc := newTestService(t, store, &stubProvider{exists: true}, TTLPolicy{
		"follower_list": 6,
		"default":       24,
	})

	if err := svc.Write(context.Background(), "fp", "ds-1", 42, models.DataTypeFollowerList); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(store.puts) != 1 {
		t.Fatalf("expected one write, got %d", len(store.puts))
	}
	entry := store.puts[0]
	if entry.TTLHours != 6 {
		t.Errorf("TTLHours = %d, want policy value 6", entry.TTLHours)
	}
	if entry.RecordCount != 42 || entry.DatasetID != "ds-1" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}
