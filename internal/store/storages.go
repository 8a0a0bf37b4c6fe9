package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
)

// Storages groups the local cache repositories and the transaction runner
// they share.
type Storages struct {
	// DB is the single-connection SQLite handle. It also implements
	// [Transactor].
	DB *DB
	// Records holds entities and shared references.
	Records RecordRepository
	// Pending holds the queue of unpushed local mutations.
	Pending PendingRepository
	// DeltaStates holds since markers per query scope.
	DeltaStates DeltaStateRepository
}

// NewStorages initialises the client storage layer. It performs the
// following steps:
//  1. Opens an SQLite connection to cfg.DB.DSN, creating the parent
//     directory if it does not yet exist.
//  2. Runs pending schema migrations via [DB.Migrate].
//  3. Constructs the repositories over the shared connection.
//
// Returns an error if the database connection cannot be established or if
// migration fails.
func NewStorages(ctx context.Context, cfg config.Storage, logger *logger.Logger) (*Storages, error) {
	logger.Info().Msg("creating new storages...")

	db, err := NewConnectSQLite(ctx, cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err = db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return NewStoragesFromDB(db, logger), nil
}

// NewStoragesFromDB wires the repositories over an already migrated db.
func NewStoragesFromDB(db *DB, logger *logger.Logger) *Storages {
	return &Storages{
		DB:          db,
		Records:     NewRecordRepository(db, logger),
		Pending:     NewPendingRepository(db, logger),
		DeltaStates: NewDeltaStateRepository(db, logger),
	}
}

// Close releases the database connection.
func (s *Storages) Close() error {
	return s.DB.Close()
}
