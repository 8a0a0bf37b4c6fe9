// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"time"

	sq "github.com/Masterminds/squirrel"
)

const (
	kindEntity    = "entity"
	kindReference = "reference"
)

const (
	upsertEntity = `
		INSERT INTO entities (collection, id, kind, body, expires_at, updated_at)
		VALUES (?, ?, 'entity', ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			kind       = 'entity',
			body       = excluded.body,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at;`

	// a reference body never overwrites a row saved as a full entity
	upsertReference = `
		INSERT INTO entities (collection, id, kind, body, expires_at, updated_at)
		VALUES (?, ?, 'reference', ?, NULL, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			body       = excluded.body,
			updated_at = excluded.updated_at
		WHERE entities.kind = 'reference';`

	insertReferenceStub = `
		INSERT INTO entities (collection, id, kind, body, expires_at, updated_at)
		VALUES (?, ?, 'reference', ?, NULL, ?)
		ON CONFLICT (collection, id) DO NOTHING;`

	getRecord = `
		SELECT kind, body
		FROM entities
		WHERE collection = ? AND id = ?;`

	updateRecordBody = `
		UPDATE entities SET body = ?, updated_at = ?
		WHERE collection = ? AND id = ?;`

	renameRecord = `
		UPDATE entities SET id = ?, body = ?, updated_at = ?
		WHERE collection = ? AND id = ?;`

	demoteRecord = `
		UPDATE entities SET kind = 'reference', updated_at = ?
		WHERE collection = ? AND id = ?;`

	deleteRecord = `
		DELETE FROM entities
		WHERE collection = ? AND id = ?;`

	getOutgoingLinks = `
		SELECT ref_collection, ref_id
		FROM entity_refs
		WHERE collection = ? AND entity_id = ?;`

	getIncomingLinks = `
		SELECT collection, entity_id
		FROM entity_refs
		WHERE ref_collection = ? AND ref_id = ?;`

	insertLink = `
		INSERT OR IGNORE INTO entity_refs (collection, entity_id, ref_collection, ref_id)
		VALUES (?, ?, ?, ?);`

	deleteLink = `
		DELETE FROM entity_refs
		WHERE collection = ? AND entity_id = ? AND ref_collection = ? AND ref_id = ?;`

	deleteOutgoingLinks = `
		DELETE FROM entity_refs
		WHERE collection = ? AND entity_id = ?;`

	renameOutgoingLinks = `
		UPDATE entity_refs SET entity_id = ?
		WHERE collection = ? AND entity_id = ?;`

	renameIncomingLinks = `
		UPDATE OR IGNORE entity_refs SET ref_id = ?
		WHERE ref_collection = ? AND ref_id = ?;`

	deleteIncomingLinks = `
		DELETE FROM entity_refs
		WHERE ref_collection = ? AND ref_id = ?;`

	countIncomingLinks = `
		SELECT COUNT(*)
		FROM entity_refs
		WHERE ref_collection = ? AND ref_id = ?;`
)

const (
	upsertPendingOperation = `
		INSERT INTO pending_operations (collection, entity_id, seq, kind, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, entity_id) DO UPDATE SET
			seq        = excluded.seq,
			kind       = excluded.kind,
			payload    = excluded.payload,
			updated_at = excluded.updated_at;`

	getPendingOperation = `
		SELECT collection, entity_id, seq, kind, payload, updated_at
		FROM pending_operations
		WHERE collection = ? AND entity_id = ?;`

	listPendingOperations = `
		SELECT collection, entity_id, seq, kind, payload, updated_at
		FROM pending_operations
		WHERE collection = ?
		ORDER BY seq;`

	countPendingOperations = `
		SELECT COUNT(*)
		FROM pending_operations
		WHERE collection = ?;`

	deletePendingOperation = `
		DELETE FROM pending_operations
		WHERE collection = ? AND entity_id = ?;`

	deletePendingOperationIfSeq = `
		DELETE FROM pending_operations
		WHERE collection = ? AND entity_id = ? AND seq = ?;`

	updatePendingPayload = `
		UPDATE pending_operations SET payload = ?
		WHERE collection = ? AND entity_id = ?;`
)

const (
	upsertDeltaState = `
		INSERT INTO delta_states (collection, signature, since, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, signature) DO UPDATE SET
			since      = excluded.since,
			updated_at = excluded.updated_at;`

	getDeltaState = `
		SELECT collection, signature, since, updated_at
		FROM delta_states
		WHERE collection = ? AND signature = ?;`

	deleteDeltaState = `
		DELETE FROM delta_states
		WHERE collection = ? AND signature = ?;`

	deleteCollectionDeltaStates = `
		DELETE FROM delta_states
		WHERE collection = ?;`
)

// buildFindQuery selects the bodies of entity rows in collection in insertion
// order. A non-zero now excludes rows whose TTL has passed.
func buildFindQuery(collection string, now time.Time) (string, []any, error) {
	builder := sq.Select("body").
		From("entities").
		Where(sq.Eq{"collection": collection, "kind": kindEntity}).
		OrderBy("rowid")

	if !now.IsZero() {
		builder = builder.Where(sq.Or{
			sq.Eq{"expires_at": nil},
			sq.Gt{"expires_at": now.UnixMilli()},
		})
	}

	return builder.ToSql()
}

// buildPendingIDsQuery selects which of ids have a queued operation. A nil
// ids slice selects every queued id of the collection.
func buildPendingIDsQuery(collection string, ids []string) (string, []any, error) {
	builder := sq.Select("entity_id").
		From("pending_operations").
		Where(sq.Eq{"collection": collection})

	if ids != nil {
		builder = builder.Where(sq.Eq{"entity_id": ids})
	}

	return builder.ToSql()
}

// buildPurgePendingQuery deletes queued operations. A nil ids slice deletes
// the whole collection backlog.
func buildPurgePendingQuery(collection string, ids []string) (string, []any, error) {
	builder := sq.Delete("pending_operations").
		Where(sq.Eq{"collection": collection})

	if ids != nil {
		builder = builder.Where(sq.Eq{"entity_id": ids})
	}

	return builder.ToSql()
}
