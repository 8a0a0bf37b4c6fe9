package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

type pendingRepository struct {
	*DB
	logger *logger.Logger
}

// NewPendingRepository constructs a [PendingRepository] backed by db.
func NewPendingRepository(db *DB, logger *logger.Logger) PendingRepository {
	return &pendingRepository{
		DB:     db,
		logger: logger,
	}
}

// Put stores op, replacing any entry for the same (collection, entity id).
func (p *pendingRepository) Put(ctx context.Context, op models.PendingOperation) error {
	log := logger.FromContext(ctx)

	payload, err := encodePayload(op.Payload)
	if err != nil {
		log.Err(err).
			Str("func", "pendingRepository.Put").
			Str("collection", op.Collection).
			Str("entity_id", op.EntityID).
			Msg("failed to encode pending payload")
		return err
	}

	_, err = p.conn(ctx).ExecContext(ctx, upsertPendingOperation,
		op.Collection, op.EntityID, op.Seq, string(op.Kind), payload, op.UpdatedAt.UnixMilli())
	if err != nil {
		log.Err(err).
			Str("func", "pendingRepository.Put").
			Str("collection", op.Collection).
			Str("entity_id", op.EntityID).
			Str("kind", string(op.Kind)).
			Msg("failed to save pending operation")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// Get returns the queued entry for (collection, entityID) or
// [ErrPendingOperationNotFound].
func (p *pendingRepository) Get(ctx context.Context, collection, entityID string) (models.PendingOperation, error) {
	op, err := scanPendingOperation(p.conn(ctx).QueryRowContext(ctx, getPendingOperation, collection, entityID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingOperation{}, ErrPendingOperationNotFound
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "pendingRepository.Get").
			Str("collection", collection).
			Str("entity_id", entityID).
			Msg("failed to scan pending operation")
		return models.PendingOperation{}, err
	}
	return op, nil
}

// List returns the backlog of collection ordered by sequence.
func (p *pendingRepository) List(ctx context.Context, collection string) ([]models.PendingOperation, error) {
	log := logger.FromContext(ctx)

	rows, err := p.conn(ctx).QueryContext(ctx, listPendingOperations, collection)
	if err != nil {
		log.Err(err).
			Str("func", "pendingRepository.List").
			Str("collection", collection).
			Msg("failed to execute query for listing pending operations")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	ops := make([]models.PendingOperation, 0, 16)
	for rows.Next() {
		op, scanErr := scanPendingOperation(rows)
		if scanErr != nil {
			log.Err(scanErr).
				Str("func", "pendingRepository.List").
				Str("collection", collection).
				Msg("failed to scan pending operation row")
			return nil, scanErr
		}
		ops = append(ops, op)
	}

	if err = rows.Err(); err != nil {
		log.Err(err).
			Str("func", "pendingRepository.List").
			Str("collection", collection).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return ops, nil
}

func (p *pendingRepository) Count(ctx context.Context, collection string) (int, error) {
	var count int
	if err := p.conn(ctx).QueryRowContext(ctx, countPendingOperations, collection).Scan(&count); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "pendingRepository.Count").
			Str("collection", collection).
			Msg("failed to count pending operations")
		return 0, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return count, nil
}

// PendingIDs reports which of ids have a queued entry. A nil ids slice
// returns every queued id of the collection.
func (p *pendingRepository) PendingIDs(ctx context.Context, collection string, ids []string) (map[string]struct{}, error) {
	log := logger.FromContext(ctx)

	stmt, args, err := buildPendingIDsQuery(collection, ids)
	if err != nil {
		log.Err(err).
			Str("func", "pendingRepository.PendingIDs").
			Str("collection", collection).
			Msg("failed to create query")
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := p.conn(ctx).QueryContext(ctx, stmt, args...)
	if err != nil {
		log.Err(err).
			Str("func", "pendingRepository.PendingIDs").
			Str("collection", collection).
			Int("ids count", len(ids)).
			Msg("failed to execute query for pending ids")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		out[id] = struct{}{}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return out, nil
}

func (p *pendingRepository) Delete(ctx context.Context, collection, entityID string) error {
	if _, err := p.conn(ctx).ExecContext(ctx, deletePendingOperation, collection, entityID); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "pendingRepository.Delete").
			Str("collection", collection).
			Str("entity_id", entityID).
			Msg("failed to delete pending operation")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

// DeleteIfSeq drops the entry only when it still carries seq, i.e. no local
// mutation was folded into it since it was read. It reports whether the
// entry was dropped.
func (p *pendingRepository) DeleteIfSeq(ctx context.Context, collection, entityID, seq string) (bool, error) {
	res, err := p.conn(ctx).ExecContext(ctx, deletePendingOperationIfSeq, collection, entityID, seq)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "pendingRepository.DeleteIfSeq").
			Str("collection", collection).
			Str("entity_id", entityID).
			Msg("failed to delete pending operation")
		return false, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return affected > 0, nil
}

// Purge discards queued entries without pushing them. A nil ids slice purges
// the whole collection backlog.
func (p *pendingRepository) Purge(ctx context.Context, collection string, ids []string) (int, error) {
	log := logger.FromContext(ctx)

	stmt, args, err := buildPurgePendingQuery(collection, ids)
	if err != nil {
		log.Err(err).
			Str("func", "pendingRepository.Purge").
			Str("collection", collection).
			Msg("failed to create query")
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	res, err := p.conn(ctx).ExecContext(ctx, stmt, args...)
	if err != nil {
		log.Err(err).
			Str("func", "pendingRepository.Purge").
			Str("collection", collection).
			Msg("failed to purge pending operations")
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return int(affected), nil
}

// Rekey moves the entry of oldID to newID and rewrites the payload id. The
// sequence is kept. A missing entry is not an error.
func (p *pendingRepository) Rekey(ctx context.Context, collection, oldID, newID string) error {
	return p.InTx(ctx, func(ctx context.Context) error {
		op, err := p.Get(ctx, collection, oldID)
		if errors.Is(err, ErrPendingOperationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err = p.Delete(ctx, collection, oldID); err != nil {
			return err
		}

		op.EntityID = newID
		if op.Payload != nil {
			payload := op.Payload.Clone()
			payload.ID = newID
			op.Payload = &payload
		}
		return p.Put(ctx, op)
	})
}

// RewriteRefs replaces references to (refCollection, oldID) inside the
// payloads queued for holders.
func (p *pendingRepository) RewriteRefs(ctx context.Context, holders []RecordKey, refCollection, oldID, newID string) error {
	return p.InTx(ctx, func(ctx context.Context) error {
		for _, holder := range holders {
			op, err := p.Get(ctx, holder.Collection, holder.ID)
			if errors.Is(err, ErrPendingOperationNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if op.Payload == nil {
				continue
			}

			rewritten, changed := op.Payload.RewriteRefID(refCollection, oldID, newID)
			if !changed {
				continue
			}

			payload, err := encodePayload(&rewritten)
			if err != nil {
				return err
			}
			if _, err = p.conn(ctx).ExecContext(ctx, updatePendingPayload, payload, holder.Collection, holder.ID); err != nil {
				logger.FromContext(ctx).Err(err).
					Str("func", "pendingRepository.RewriteRefs").
					Str("collection", holder.Collection).
					Str("entity_id", holder.ID).
					Msg("failed to rewrite pending payload")
				return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
			}
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPendingOperation(row rowScanner) (models.PendingOperation, error) {
	var (
		op        models.PendingOperation
		kind      string
		payload   sql.NullString
		updatedAt int64
	)

	if err := row.Scan(&op.Collection, &op.EntityID, &op.Seq, &kind, &payload, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return op, err
		}
		return op, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	op.Kind = models.OperationKind(kind)
	op.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	if payload.Valid {
		e, err := decodeEntity(payload.String)
		if err != nil {
			return op, err
		}
		op.Payload = &e
	}

	return op, nil
}

func encodePayload(e *models.Entity) (any, error) {
	if e == nil {
		return nil, nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodingRecord, err)
	}
	return string(b), nil
}
