// Package ledger records billed usage against job owners.
package ledger

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
	"github.com/vanillabrand/fandom-velocity/internal/models"
)

// Service implements CostLedger over the durable ledger store.
type Service struct {
	store  interfaces.LedgerStorage
	logger arbor.ILogger
}

// NewService creates the cost ledger service.
func NewService(store interfaces.LedgerStorage, logger arbor.ILogger) *Service {
	return &Service{store: store, logger: logger}
}

var _ interfaces.CostLedger = (*Service)(nil)

// ChargeUsage records one billed action for an owner.
func (s *Service) ChargeUsage(ctx context.Context, user, jobID, action string, cost float64) error {
	record := &models.UsageRecord{
		ID:        common.NewUsageID(),
		Owner:     user,
		JobID:     jobID,
		Action:    action,
		Cost:      cost,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveUsage(ctx, record); err != nil {
		return err
	}

	s.logger.Info().
		Str("owner", user).
		Str("job_id", jobID).
		Str("action", action).
		Float64("cost", cost).
		Msg("Usage charged")
	return nil
}

// UsageFor lists an owner's recorded usage in chronological order.
func (s *Service) UsageFor(ctx context.Context, owner string) ([]*models.UsageRecord, error) {
	return s.store.ListUsageByOwner(ctx, owner)
}
