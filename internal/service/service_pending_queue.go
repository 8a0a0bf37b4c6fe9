// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/internal/utils"
	"github.com/MKhiriev/go-sync-store/models"
)

type seqGenerator interface {
	Next() string
}

type pendingQueue struct {
	tx      store.Transactor
	records store.RecordRepository
	pending store.PendingRepository

	seq seqGenerator
	now func() time.Time

	logger *logger.Logger
}

// NewPendingQueue constructs a [PendingQueue] over the shared storages.
func NewPendingQueue(storages *store.Storages, logger *logger.Logger) PendingQueue {
	return &pendingQueue{
		tx:      storages.DB,
		records: storages.Records,
		pending: storages.Pending,
		seq:     utils.NewSeqGenerator(),
		now:     time.Now,
		logger:  logger,
	}
}

// EnqueueSave implements [PendingQueue].
func (q *pendingQueue) EnqueueSave(ctx context.Context, collection string, entity models.Entity) error {
	if entity.ID == "" {
		return ErrMissingID
	}

	return q.tx.InTx(ctx, func(ctx context.Context) error {
		kind := models.OperationUpdate

		existing, err := q.pending.Get(ctx, collection, entity.ID)
		switch {
		case errors.Is(err, store.ErrPendingOperationNotFound):
			if models.IsTempID(entity.ID) {
				kind = models.OperationCreate
			}
		case err != nil:
			return err
		case existing.Kind == models.OperationCreate:
			kind = models.OperationCreate
		}

		payload := entity.Clone()
		return q.pending.Put(ctx, models.PendingOperation{
			Collection: collection,
			EntityID:   entity.ID,
			Kind:       kind,
			Payload:    &payload,
			Seq:        q.seq.Next(),
			UpdatedAt:  q.now(),
		})
	})
}

// EnqueueDelete implements [PendingQueue].
func (q *pendingQueue) EnqueueDelete(ctx context.Context, collection, id string) error {
	if id == "" {
		return ErrMissingID
	}

	// never acknowledged: nothing exists remotely
	if models.IsTempID(id) {
		return q.pending.Delete(ctx, collection, id)
	}

	return q.pending.Put(ctx, models.PendingOperation{
		Collection: collection,
		EntityID:   id,
		Kind:       models.OperationDelete,
		Seq:        q.seq.Next(),
		UpdatedAt:  q.now(),
	})
}

// Drain implements [PendingQueue]. Operations enqueued after the snapshot
// is taken wait for the next drain. Each snapshot entry is read again right
// before it is sent, so it carries the ids rewritten by the creates
// acknowledged before it. Local bookkeeping after an acknowledged call is
// committed even if ctx is cancelled meanwhile, so that a server write is
// never forgotten.
func (q *pendingQueue) Drain(ctx context.Context, collection string, transport adapter.Transport) (models.PushResult, error) {
	log := logger.FromContext(ctx)

	var result models.PushResult

	ops, err := q.pending.List(ctx, collection)
	if err != nil {
		return result, err
	}

	for _, queued := range ops {
		if err = ctx.Err(); err != nil {
			return result, err
		}

		op, err := q.pending.Get(ctx, collection, queued.EntityID)
		if errors.Is(err, store.ErrPendingOperationNotFound) {
			// purged or cancelled out since the snapshot
			continue
		}
		if err != nil {
			log.Err(err).
				Str("func", "pendingQueue.Drain").
				Str("collection", collection).
				Str("entity_id", queued.EntityID).
				Msg("failed to read pending operation")
			return result, err
		}

		pushErr, err := q.push(ctx, transport, op)
		if err != nil {
			log.Err(err).
				Str("func", "pendingQueue.Drain").
				Str("collection", collection).
				Str("entity_id", op.EntityID).
				Msg("failed to record pushed operation")
			return result, err
		}
		if pushErr != nil {
			log.Warn().
				Err(pushErr.Err).
				Str("func", "pendingQueue.Drain").
				Str("collection", collection).
				Str("entity_id", op.EntityID).
				Str("kind", string(op.Kind)).
				Msg("pending operation stays queued")
			result.Errors = append(result.Errors, pushErr)
			continue
		}
		result.SuccessCount++
	}

	log.Debug().
		Str("collection", collection).
		Int("pushed", result.SuccessCount).
		Int("failed", len(result.Errors)).
		Msg("pending queue drained")

	return result, nil
}

// push sends one operation. A transport failure is returned as a
// [models.PushError]; the error result is a local storage fault.
func (q *pendingQueue) push(ctx context.Context, transport adapter.Transport, op models.PendingOperation) (*models.PushError, error) {
	fail := func(err error) (*models.PushError, error) {
		return &models.PushError{Collection: op.Collection, EntityID: op.EntityID, Kind: op.Kind, Err: err}, nil
	}
	local := context.WithoutCancel(ctx)

	switch op.Kind {
	case models.OperationCreate:
		if op.Payload == nil {
			return nil, q.pending.Delete(local, op.Collection, op.EntityID)
		}
		created, err := transport.CreateEntity(ctx, op.Collection, *op.Payload)
		if err != nil {
			return fail(err)
		}
		return nil, q.tx.InTx(local, func(ctx context.Context) error {
			return q.ackCreate(ctx, op, created)
		})

	case models.OperationUpdate:
		if op.Payload == nil {
			return nil, q.pending.Delete(local, op.Collection, op.EntityID)
		}
		updated, err := transport.UpdateEntity(ctx, op.Collection, *op.Payload)
		if err != nil {
			return fail(err)
		}
		return nil, q.tx.InTx(local, func(ctx context.Context) error {
			dropped, err := q.pending.DeleteIfSeq(ctx, op.Collection, op.EntityID, op.Seq)
			if err != nil || !dropped {
				return err
			}
			return q.records.Upsert(ctx, op.Collection, updated)
		})

	case models.OperationDelete:
		err := transport.DeleteEntity(ctx, op.Collection, op.EntityID)
		if err != nil && !errors.Is(err, adapter.ErrNotFound) {
			return fail(err)
		}
		_, err = q.pending.DeleteIfSeq(local, op.Collection, op.EntityID, op.Seq)
		return nil, err
	}

	return fail(errors.New("unknown operation kind " + string(op.Kind)))
}

// ackCreate rewrites the temporary id of a pushed create to the server id
// everywhere it is stored and settles the queue entry.
func (q *pendingQueue) ackCreate(ctx context.Context, op models.PendingOperation, created models.Entity) error {
	current, err := q.pending.Get(ctx, op.Collection, op.EntityID)
	dropped := errors.Is(err, store.ErrPendingOperationNotFound)
	if err != nil && !dropped {
		return err
	}

	// a dropped entry is either a local delete or a purge; only the delete
	// removes the cached row
	removed := false
	if dropped {
		_, err = q.records.Get(ctx, op.Collection, op.EntityID)
		removed = errors.Is(err, store.ErrRecordNotFound)
		if err != nil && !removed {
			return err
		}
	}

	holders, err := q.records.RewriteID(ctx, op.Collection, op.EntityID, created.ID)
	if err != nil {
		return err
	}
	if err = q.pending.RewriteRefs(ctx, holders, op.Collection, op.EntityID, created.ID); err != nil {
		return err
	}
	if err = q.requeueHolders(ctx, holders); err != nil {
		return err
	}

	switch {
	case removed:
		// deleted locally while the create was in flight
		return q.pending.Put(ctx, models.PendingOperation{
			Collection: op.Collection,
			EntityID:   created.ID,
			Kind:       models.OperationDelete,
			Seq:        q.seq.Next(),
			UpdatedAt:  q.now(),
		})

	case dropped:
		// purged while the create was in flight: keep the server copy
		return q.records.Upsert(ctx, op.Collection, created)

	case current.Seq != op.Seq:
		// saved again while the create was in flight: keep the newer local
		// body and send it as an update
		if err = q.pending.Rekey(ctx, op.Collection, op.EntityID, created.ID); err != nil {
			return err
		}
		moved, err := q.pending.Get(ctx, op.Collection, created.ID)
		if err != nil {
			return err
		}
		moved.Kind = models.OperationUpdate
		return q.pending.Put(ctx, moved)
	}

	if err = q.pending.Delete(ctx, op.Collection, op.EntityID); err != nil {
		return err
	}
	return q.records.Upsert(ctx, op.Collection, created)
}

// requeueHolders queues an update for every cached entity that embeds a
// just renamed reference but has nothing left to push. Such an entity was
// pushed while the reference still had its temporary id, so the server
// copy has to be corrected.
func (q *pendingQueue) requeueHolders(ctx context.Context, holders []store.RecordKey) error {
	for _, holder := range holders {
		if models.IsTempID(holder.ID) {
			continue
		}

		_, err := q.pending.Get(ctx, holder.Collection, holder.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrPendingOperationNotFound) {
			return err
		}

		e, err := q.records.Get(ctx, holder.Collection, holder.ID)
		if errors.Is(err, store.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		payload := e.Clone()
		payload.ExpiresAt = nil
		if err = q.pending.Put(ctx, models.PendingOperation{
			Collection: holder.Collection,
			EntityID:   holder.ID,
			Kind:       models.OperationUpdate,
			Payload:    &payload,
			Seq:        q.seq.Next(),
			UpdatedAt:  q.now(),
		}); err != nil {
			return err
		}

		logger.FromContext(ctx).Debug().
			Str("collection", holder.Collection).
			Str("entity_id", holder.ID).
			Msg("queued update for renamed reference")
	}
	return nil
}

func (q *pendingQueue) Count(ctx context.Context, collection string) (int, error) {
	return q.pending.Count(ctx, collection)
}

func (q *pendingQueue) Purge(ctx context.Context, collection string, ids []string) (int, error) {
	return q.pending.Purge(ctx, collection, ids)
}

func (q *pendingQueue) List(ctx context.Context, collection string) ([]models.PendingOperation, error) {
	return q.pending.List(ctx, collection)
}
