package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// LedgerStorage persists cost ledger usage records in Badger.
type LedgerStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewLedgerStorage creates a new LedgerStorage instance
func NewLedgerStorage(db *DB, logger arbor.ILogger) interfaces.LedgerStorage {
	return &LedgerStorage{
		db:     db,
		logger: logger,
	}
}

func (s *LedgerStorage) SaveUsage(ctx context.Context, record *models.UsageRecord) error {
	if record.ID == "" {
		return fmt.Errorf("usage record ID is required")
	}
	if err := s.db.Store().Insert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save usage record: %w", err)
	}
	return nil
}

func (s *LedgerStorage) ListUsageByOwner(ctx context.Context, owner string) ([]*models.UsageRecord, error) {
	var records []models.UsageRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Owner").Eq(owner).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	result := make([]*models.UsageRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}
