package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/vanillabrand/fandom-velocity/internal/common"
	"github.com/vanillabrand/fandom-velocity/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *DB
	job    interfaces.JobStorage
	cache  interfaces.CacheStorage
	ledger interfaces.LedgerStorage
	logger arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := Open(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		job:    NewJobStorage(db, logger),
		cache:  NewCacheStorage(db, logger),
		ledger: NewLedgerStorage(db, logger),
		logger: logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// CacheStorage returns the fingerprint cache storage interface
func (m *Manager) CacheStorage() interfaces.CacheStorage {
	return m.cache
}

// LedgerStorage returns the cost ledger storage interface
func (m *Manager) LedgerStorage() interfaces.LedgerStorage {
	return m.ledger
}

// Close closes the underlying database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
