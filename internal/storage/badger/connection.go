package badger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/vanillabrand/fandom-velocity/internal/common"
)

// DB wraps one badgerhold store shared by the job, cache and ledger stores.
//
// Conflict detection must stay enabled on the underlying Badger instance: the
// job claim path relies on ErrConflict to serialize racing claimers.
type DB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Open opens (and if configured, resets) the database directory.
func Open(logger arbor.ILogger, config *common.BadgerConfig) (*DB, error) {
	if config.ResetOnStartup {
		resetDatabase(logger, config.Path)
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // badger's own logger is noisy; arbor covers it
	options.DetectConflicts = true

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", config.Path, err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database opened")
	return &DB{store: store, logger: logger}, nil
}

// resetDatabase deletes the database directory for clean test runs.
func resetDatabase(logger arbor.ILogger, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	logger.Debug().Str("path", path).Msg("Deleting existing database (reset_on_startup=true)")
	if err := os.RemoveAll(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to delete database directory")
	}
}

// Store returns the underlying badgerhold store.
func (d *DB) Store() *badgerhold.Store {
	return d.store
}

// Close closes the database.
func (d *DB) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
