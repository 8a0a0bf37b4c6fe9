package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

type deltaStateRepository struct {
	*DB
	logger *logger.Logger
}

// NewDeltaStateRepository constructs a [DeltaStateRepository] backed by db.
func NewDeltaStateRepository(db *DB, logger *logger.Logger) DeltaStateRepository {
	return &deltaStateRepository{
		DB:     db,
		logger: logger,
	}
}

func (d *deltaStateRepository) Get(ctx context.Context, collection, signature string) (models.DeltaState, error) {
	var (
		state     models.DeltaState
		updatedAt int64
	)

	err := d.conn(ctx).QueryRowContext(ctx, getDeltaState, collection, signature).
		Scan(&state.Collection, &state.Signature, &state.Since, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DeltaState{}, ErrDeltaStateNotFound
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "deltaStateRepository.Get").
			Str("collection", collection).
			Str("signature", signature).
			Msg("failed to scan delta state")
		return models.DeltaState{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	state.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return state, nil
}

// Put creates or advances the since marker of a query scope.
func (d *deltaStateRepository) Put(ctx context.Context, state models.DeltaState) error {
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := d.conn(ctx).ExecContext(ctx, upsertDeltaState,
		state.Collection, state.Signature, state.Since, updatedAt.UnixMilli())
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "deltaStateRepository.Put").
			Str("collection", state.Collection).
			Str("signature", state.Signature).
			Msg("failed to save delta state")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (d *deltaStateRepository) Delete(ctx context.Context, collection, signature string) error {
	if _, err := d.conn(ctx).ExecContext(ctx, deleteDeltaState, collection, signature); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "deltaStateRepository.Delete").
			Str("collection", collection).
			Str("signature", signature).
			Msg("failed to delete delta state")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

// DeleteCollection forgets every since marker of collection.
func (d *deltaStateRepository) DeleteCollection(ctx context.Context, collection string) error {
	if _, err := d.conn(ctx).ExecContext(ctx, deleteCollectionDeltaStates, collection); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "deltaStateRepository.DeleteCollection").
			Str("collection", collection).
			Msg("failed to delete delta states")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}
