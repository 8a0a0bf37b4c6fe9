// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/query"
	"github.com/MKhiriev/go-sync-store/models"
)

// recordRepository is the SQLite-backed implementation of [RecordRepository].
//
// Reference links live in the entity_refs table, one row per
// (holder, reference) pair. The refcount of a reference is the number of
// links pointing at it and is never stored separately.
type recordRepository struct {
	*DB
	logger *logger.Logger
	now    func() time.Time
}

// NewRecordRepository constructs a [RecordRepository] backed by db.
func NewRecordRepository(db *DB, logger *logger.Logger) RecordRepository {
	return &recordRepository{
		DB:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Upsert inserts or replaces entities by id within one transaction. Every
// reference the bodies hold is stored in its own collection and the link
// index is diffed against the previous version of each entity.
func (r *recordRepository) Upsert(ctx context.Context, collection string, entities ...models.Entity) error {
	return r.InTx(ctx, func(ctx context.Context) error {
		for _, e := range entities {
			if err := r.upsert(ctx, collection, e, kindEntity); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *recordRepository) upsert(ctx context.Context, collection string, e models.Entity, kind string) error {
	log := logger.FromContext(ctx)

	if e.ID == "" {
		return fmt.Errorf("%w: entity in %q has no id", ErrEncodingRecord, collection)
	}

	body, err := json.Marshal(e)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.upsert").
			Str("collection", collection).
			Str("id", e.ID).
			Msg("failed to encode entity")
		return fmt.Errorf("%w: %w", ErrEncodingRecord, err)
	}

	updatedAt := r.now().UnixMilli()

	var res sql.Result
	switch kind {
	case kindEntity:
		res, err = r.conn(ctx).ExecContext(ctx, upsertEntity, collection, e.ID, string(body), expiresAt(e), updatedAt)
	default:
		res, err = r.conn(ctx).ExecContext(ctx, upsertReference, collection, e.ID, string(body), updatedAt)
	}
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.upsert").
			Str("collection", collection).
			Str("id", e.ID).
			Str("kind", kind).
			Msg("failed to upsert record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	// a reference body arriving for a row saved as a full entity is ignored
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil
	}

	return r.syncLinks(ctx, collection, e.ID, e.References())
}

// syncLinks makes the outgoing links of (collection, id) equal to refs.
// Reference bodies are stored first; new links are inserted; dropped links
// are deleted and references left without holders are cascade-deleted.
func (r *recordRepository) syncLinks(ctx context.Context, collection, id string, refs []models.Reference) error {
	wanted := make(map[RecordKey]struct{}, len(refs))
	for _, ref := range refs {
		if err := r.storeReference(ctx, ref); err != nil {
			return err
		}
		wanted[RecordKey{Collection: ref.Collection, ID: ref.ID}] = struct{}{}
	}

	current, err := r.links(ctx, getOutgoingLinks, collection, id)
	if err != nil {
		return err
	}

	for key := range wanted {
		if slices.Contains(current, key) {
			continue
		}
		if _, err = r.conn(ctx).ExecContext(ctx, insertLink, collection, id, key.Collection, key.ID); err != nil {
			logger.FromContext(ctx).Err(err).
				Str("func", "recordRepository.syncLinks").
				Str("collection", collection).
				Str("id", id).
				Str("ref", key.Collection+"/"+key.ID).
				Msg("failed to insert reference link")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
	}

	for _, key := range current {
		if _, ok := wanted[key]; ok {
			continue
		}
		if _, err = r.conn(ctx).ExecContext(ctx, deleteLink, collection, id, key.Collection, key.ID); err != nil {
			logger.FromContext(ctx).Err(err).
				Str("func", "recordRepository.syncLinks").
				Str("collection", collection).
				Str("id", id).
				Str("ref", key.Collection+"/"+key.ID).
				Msg("failed to delete reference link")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		if err = r.cascade(ctx, key); err != nil {
			return err
		}
	}

	return nil
}

// storeReference persists the body of ref as a reference row. A reference
// without a body only creates a placeholder row when none exists.
func (r *recordRepository) storeReference(ctx context.Context, ref models.Reference) error {
	if ref.Fields != nil {
		return r.upsert(ctx, ref.Collection, models.Entity{ID: ref.ID, Fields: ref.Fields}, kindReference)
	}

	body, err := json.Marshal(models.Entity{ID: ref.ID})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingRecord, err)
	}
	if _, err = r.conn(ctx).ExecContext(ctx, insertReferenceStub, ref.Collection, ref.ID, string(body), r.now().UnixMilli()); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "recordRepository.storeReference").
			Str("collection", ref.Collection).
			Str("id", ref.ID).
			Msg("failed to insert reference placeholder")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

// cascade deletes key when it is a reference row no entity links to any
// more. Deleting it drops its own links, which may cascade further.
func (r *recordRepository) cascade(ctx context.Context, key RecordKey) error {
	count, err := r.referenceCount(ctx, key.Collection, key.ID)
	if err != nil || count > 0 {
		return err
	}

	kind, _, err := r.getRow(ctx, key.Collection, key.ID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if kind != kindReference {
		return nil
	}

	return r.deleteRow(ctx, key.Collection, key.ID)
}

// deleteRow removes the row and its outgoing links, then cascades every
// reference it used to hold.
func (r *recordRepository) deleteRow(ctx context.Context, collection, id string) error {
	log := logger.FromContext(ctx)

	held, err := r.links(ctx, getOutgoingLinks, collection, id)
	if err != nil {
		return err
	}

	if _, err = r.conn(ctx).ExecContext(ctx, deleteOutgoingLinks, collection, id); err != nil {
		log.Err(err).
			Str("func", "recordRepository.deleteRow").
			Str("collection", collection).
			Str("id", id).
			Msg("failed to delete outgoing links")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if _, err = r.conn(ctx).ExecContext(ctx, deleteRecord, collection, id); err != nil {
		log.Err(err).
			Str("func", "recordRepository.deleteRow").
			Str("collection", collection).
			Str("id", id).
			Msg("failed to delete record")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	for _, key := range held {
		if err = r.cascade(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the entity row (collection, id). Reference rows are reported
// as [ErrRecordNotFound].
func (r *recordRepository) Get(ctx context.Context, collection, id string) (models.Entity, error) {
	kind, e, err := r.getRow(ctx, collection, id)
	if err != nil {
		return models.Entity{}, err
	}
	if kind != kindEntity {
		return models.Entity{}, ErrRecordNotFound
	}
	return e, nil
}

// GetReference returns the stored body of (collection, id) regardless of
// whether the row is a full entity or a reference.
func (r *recordRepository) GetReference(ctx context.Context, collection, id string) (models.Entity, error) {
	_, e, err := r.getRow(ctx, collection, id)
	return e, err
}

func (r *recordRepository) getRow(ctx context.Context, collection, id string) (string, models.Entity, error) {
	var kind, body string
	err := r.conn(ctx).QueryRowContext(ctx, getRecord, collection, id).Scan(&kind, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.Entity{}, ErrRecordNotFound
	}
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "recordRepository.getRow").
			Str("collection", collection).
			Str("id", id).
			Msg("failed to scan record row")
		return "", models.Entity{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	e, err := decodeEntity(body)
	if err != nil {
		return "", models.Entity{}, err
	}
	return kind, e, nil
}

// Find evaluates q over the entity rows of collection. A non-zero now hides
// entities whose TTL has passed.
func (r *recordRepository) Find(ctx context.Context, collection string, q models.Query, now time.Time) ([]models.Entity, error) {
	log := logger.FromContext(ctx)

	stmt, args, err := buildFindQuery(collection, now)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.Find").
			Str("collection", collection).
			Msg("failed to create query")
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	rows, err := r.conn(ctx).QueryContext(ctx, stmt, args...)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.Find").
			Str("collection", collection).
			Msg("failed to execute query for finding records")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	items := make([]models.Entity, 0, 50)
	for rows.Next() {
		var body string
		if err = rows.Scan(&body); err != nil {
			log.Err(err).
				Str("func", "recordRepository.Find").
				Str("collection", collection).
				Msg("failed to scan record row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}

		e, decodeErr := decodeEntity(body)
		if decodeErr != nil {
			return nil, decodeErr
		}
		items = append(items, e)
	}

	if err = rows.Err(); err != nil {
		log.Err(err).
			Str("func", "recordRepository.Find").
			Str("collection", collection).
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	return query.Apply(items, q, now), nil
}

// Seq is Find exposed as a sequence. The result is materialized once, so the
// sequence can be ranged over any number of times.
func (r *recordRepository) Seq(ctx context.Context, collection string, q models.Query, now time.Time) (iter.Seq[models.Entity], error) {
	items, err := r.Find(ctx, collection, q, now)
	if err != nil {
		return nil, err
	}
	return slices.Values(items), nil
}

// Count returns the number of entities matching the filter of q. Skip and
// limit are ignored.
func (r *recordRepository) Count(ctx context.Context, collection string, q models.Query, now time.Time) (int, error) {
	items, err := r.Find(ctx, collection, q.Unpaged(), now)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Remove deletes the entity (collection, id) and reports 1, or 0 when there
// was nothing to remove. An entity other entities still link to is demoted
// to a reference instead of being deleted, so the holders keep resolving it.
func (r *recordRepository) Remove(ctx context.Context, collection, id string) (int, error) {
	var removed int
	err := r.InTx(ctx, func(ctx context.Context) error {
		var err error
		removed, err = r.remove(ctx, collection, id)
		return err
	})
	return removed, err
}

func (r *recordRepository) remove(ctx context.Context, collection, id string) (int, error) {
	kind, _, err := r.getRow(ctx, collection, id)
	if errors.Is(err, ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if kind != kindEntity {
		return 0, nil
	}

	count, err := r.referenceCount(ctx, collection, id)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		if _, err = r.conn(ctx).ExecContext(ctx, demoteRecord, r.now().UnixMilli(), collection, id); err != nil {
			logger.FromContext(ctx).Err(err).
				Str("func", "recordRepository.remove").
				Str("collection", collection).
				Str("id", id).
				Msg("failed to demote referenced record")
			return 0, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		return 1, nil
	}

	if err = r.deleteRow(ctx, collection, id); err != nil {
		return 0, err
	}
	return 1, nil
}

// RemoveAll removes every entity matching q, including its skip and limit.
func (r *recordRepository) RemoveAll(ctx context.Context, collection string, q models.Query) (int, error) {
	var removed int
	err := r.InTx(ctx, func(ctx context.Context) error {
		items, err := r.Find(ctx, collection, q, time.Time{})
		if err != nil {
			return err
		}

		for _, item := range items {
			n, err := r.remove(ctx, collection, item.ID)
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	return removed, err
}

// Clear removes every entity matching the filter of q, ignoring skip and
// limit. References held by the removed entities are released.
func (r *recordRepository) Clear(ctx context.Context, collection string, q models.Query) (int, error) {
	return r.RemoveAll(ctx, collection, q.Unpaged())
}

// RewriteID renames (collection, oldID) to newID everywhere it appears: the
// row and its body, its outgoing links, incoming links and the Ref values in
// the bodies of the rows holding it. It returns the holders so callers can
// rewrite copies kept elsewhere.
//
// A row already stored under newID is replaced.
func (r *recordRepository) RewriteID(ctx context.Context, collection, oldID, newID string) ([]RecordKey, error) {
	if oldID == newID {
		return nil, nil
	}

	var holders []RecordKey
	err := r.InTx(ctx, func(ctx context.Context) error {
		log := logger.FromContext(ctx)

		if _, _, err := r.getRow(ctx, collection, newID); err == nil {
			if err = r.dropForRename(ctx, collection, newID); err != nil {
				return err
			}
		} else if !errors.Is(err, ErrRecordNotFound) {
			return err
		}

		_, e, err := r.getRow(ctx, collection, oldID)
		switch {
		case err == nil:
			e.ID = newID
			body, encErr := json.Marshal(e)
			if encErr != nil {
				return fmt.Errorf("%w: %w", ErrEncodingRecord, encErr)
			}
			if _, err = r.conn(ctx).ExecContext(ctx, renameRecord, newID, string(body), r.now().UnixMilli(), collection, oldID); err != nil {
				log.Err(err).
					Str("func", "recordRepository.RewriteID").
					Str("collection", collection).
					Str("old_id", oldID).
					Str("new_id", newID).
					Msg("failed to rename record")
				return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
			}
		case errors.Is(err, ErrRecordNotFound):
		default:
			return err
		}

		if _, err = r.conn(ctx).ExecContext(ctx, renameOutgoingLinks, newID, collection, oldID); err != nil {
			log.Err(err).
				Str("func", "recordRepository.RewriteID").
				Str("collection", collection).
				Str("old_id", oldID).
				Msg("failed to rename outgoing links")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}

		holders, err = r.links(ctx, getIncomingLinks, collection, oldID)
		if err != nil {
			return err
		}

		if _, err = r.conn(ctx).ExecContext(ctx, renameIncomingLinks, newID, collection, oldID); err != nil {
			log.Err(err).
				Str("func", "recordRepository.RewriteID").
				Str("collection", collection).
				Str("old_id", oldID).
				Msg("failed to rename incoming links")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		if _, err = r.conn(ctx).ExecContext(ctx, deleteIncomingLinks, collection, oldID); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}

		for _, holder := range holders {
			if err = r.rewriteHolderBody(ctx, holder, collection, oldID, newID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return holders, nil
}

// dropForRename removes the row about to be overwritten by a rename. Its
// incoming links stay: they already point at the new id.
func (r *recordRepository) dropForRename(ctx context.Context, collection, id string) error {
	if _, err := r.conn(ctx).ExecContext(ctx, deleteRecord, collection, id); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	held, err := r.links(ctx, getOutgoingLinks, collection, id)
	if err != nil {
		return err
	}
	if _, err = r.conn(ctx).ExecContext(ctx, deleteOutgoingLinks, collection, id); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	for _, key := range held {
		if err = r.cascade(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (r *recordRepository) rewriteHolderBody(ctx context.Context, holder RecordKey, collection, oldID, newID string) error {
	_, e, err := r.getRow(ctx, holder.Collection, holder.ID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rewritten, changed := e.RewriteRefID(collection, oldID, newID)
	if !changed {
		return nil
	}

	body, err := json.Marshal(rewritten)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodingRecord, err)
	}
	if _, err = r.conn(ctx).ExecContext(ctx, updateRecordBody, string(body), r.now().UnixMilli(), holder.Collection, holder.ID); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "recordRepository.rewriteHolderBody").
			Str("collection", holder.Collection).
			Str("id", holder.ID).
			Msg("failed to rewrite reference in holder body")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

// ReferenceCount returns how many cached rows link to (collection, id).
func (r *recordRepository) ReferenceCount(ctx context.Context, collection, id string) (int, error) {
	return r.referenceCount(ctx, collection, id)
}

func (r *recordRepository) referenceCount(ctx context.Context, collection, id string) (int, error) {
	var count int
	if err := r.conn(ctx).QueryRowContext(ctx, countIncomingLinks, collection, id).Scan(&count); err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "recordRepository.referenceCount").
			Str("collection", collection).
			Str("id", id).
			Msg("failed to count reference links")
		return 0, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return count, nil
}

// links runs one of the two link queries and collects the (collection, id)
// pairs it returns. Rows are closed before returning because the pool has a
// single connection.
func (r *recordRepository) links(ctx context.Context, stmt, collection, id string) ([]RecordKey, error) {
	log := logger.FromContext(ctx)

	rows, err := r.conn(ctx).QueryContext(ctx, stmt, collection, id)
	if err != nil {
		log.Err(err).
			Str("func", "recordRepository.links").
			Str("collection", collection).
			Str("id", id).
			Msg("failed to execute query for reference links")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	var keys []RecordKey
	for rows.Next() {
		var key RecordKey
		if err = rows.Scan(&key.Collection, &key.ID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return keys, nil
}

func decodeEntity(body string) (models.Entity, error) {
	var e models.Entity
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return models.Entity{}, fmt.Errorf("%w: %w", ErrDecodingRecord, err)
	}
	return e, nil
}

func expiresAt(e models.Entity) any {
	if e.ExpiresAt == nil {
		return nil
	}
	return e.ExpiresAt.UnixMilli()
}
