package badger

import (
	"context"
	"testing"
	"time"

	"github.com/vanillabrand/fandom-velocity/internal/models"
)

func TestCachePutAndGetLatest(t *testing.T) {
	storage := newTestManager(t).CacheStorage()
	ctx := context.Background()

	now := time.Now().UTC()
	older := &models.CacheEntry{
		Fingerprint: "fp-1",
		DatasetID:   "ds-old",
		DataType:    models.DataTypeProfileSnapshot,
		ExecutedAt:  now.Add(-2 * time.Hour),
		TTLHours:    48,
	}
	newer := &models.CacheEntry{
		Fingerprint: "fp-1",
		DatasetID:   "ds-new",
		DataType:    models.DataTypeProfileSnapshot,
		ExecutedAt:  now,
		TTLHours:    48,
	}

	if err := storage.PutEntry(ctx, older); err != nil {
		t.Fatalf("put older: %v", err)
	}
	if err := storage.PutEntry(ctx, newer); err != nil {
		t.Fatalf("put newer: %v", err)
	}

	got, err := storage.GetLatestEntry(ctx, "fp-1")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if got == nil || got.DatasetID != "ds-new" {
		t.Errorf("latest = %+v, want ds-new", got)
	}

	// Entries are append-only: the older write is still there under its own
	// key, it just loses the lookup.
	if older.ID == newer.ID {
		t.Error("distinct writes must get distinct keys")
	}
}

func TestCacheGetLatestMissing(t *testing.T) {
	storage := newTestManager(t).CacheStorage()

	got, err := storage.GetLatestEntry(context.Background(), "fp-none")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown fingerprint, got %+v", got)
	}
}

func TestCacheLegacyEntry(t *testing.T) {
	manager := newTestManager(t)
	storage := manager.CacheStorage()
	ctx := context.Background()

	got, err := storage.GetLegacyEntry(ctx, "task|alpha")
	if err != nil {
		t.Fatalf("get legacy: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing legacy key, got %+v", got)
	}
}

func TestLedgerSaveAndList(t *testing.T) {
	storage := newTestManager(t).LedgerStorage()
	ctx := context.Background()

	records := []*models.UsageRecord{
		{ID: "usage_1", Owner: "owner-1", JobID: "job_1", Action: "profile_enrich", Cost: 0.05, CreatedAt: time.Now().UTC().Add(-time.Minute)},
		{ID: "usage_2", Owner: "owner-1", JobID: "job_1", Action: "follower_list", Cost: 0.25, CreatedAt: time.Now().UTC()},
		{ID: "usage_3", Owner: "owner-2", JobID: "job_2", Action: "analysis", Cost: 0.10, CreatedAt: time.Now().UTC()},
	}
	for _, record := range records {
		if err := storage.SaveUsage(ctx, record); err != nil {
			t.Fatalf("save %s: %v", record.ID, err)
		}
	}

	got, err := storage.ListUsageByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listed %d records for owner-1, want 2", len(got))
	}
	// Chronological order.
	if got[0].Action != "profile_enrich" || got[1].Action != "follower_list" {
		t.Errorf("unexpected order: %s then %s", got[0].Action, got[1].Action)
	}
}
