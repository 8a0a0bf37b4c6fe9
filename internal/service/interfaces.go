package service

import (
	"context"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/models"
)

// PendingQueue records local mutations that still have to be pushed and
// drains them through a [adapter.Transport]. There is at most one queued
// operation per entity; consecutive mutations collapse into it.
type PendingQueue interface {
	// EnqueueSave records a create or update of entity. A temporary id with
	// no queued operation yields a create; a queued create stays a create
	// carrying the new payload; anything else becomes an update.
	EnqueueSave(ctx context.Context, collection string, entity models.Entity) error

	// EnqueueDelete records a delete of id. For a temporary id the queued
	// create is dropped and nothing is sent.
	EnqueueDelete(ctx context.Context, collection, id string) error

	// Drain pushes a snapshot of the queue in sequence order. Failed items
	// stay queued and are reported in the result; the returned error is
	// reserved for cancellation and storage faults.
	Drain(ctx context.Context, collection string, transport adapter.Transport) (models.PushResult, error)

	Count(ctx context.Context, collection string) (int, error)

	// Purge discards queued operations without pushing them. A nil ids
	// slice purges the whole collection backlog.
	Purge(ctx context.Context, collection string, ids []string) (int, error)

	List(ctx context.Context, collection string) ([]models.PendingOperation, error)
}

// Reconciler brings the local cache up to date with the backend for one
// query scope, by full fetch or by delta set.
type Reconciler interface {
	// Reconcile fetches what changed for q and applies it to the cache. It
	// returns the reconciled result set: the local result of q after the
	// fetch, or the fetched page when q carries skip or limit.
	Reconcile(ctx context.Context, collection string, q models.Query, deltaSet bool) ([]models.Entity, error)

	// Invalidate forgets every since marker of collection so that the next
	// reconcile performs a full fetch.
	Invalidate(ctx context.Context, collection string) error
}

// DataStore is the handle through which callers read and write one
// collection.
type DataStore interface {
	Collection() string
	Type() models.StoreType

	Find(ctx context.Context, q models.Query, policy models.ReadPolicy) ([]models.Entity, error)
	FindByID(ctx context.Context, id string, policy models.ReadPolicy) (models.Entity, error)

	// Save writes entity locally and queues it. An entity without id gets a
	// temporary one; the saved copy is returned.
	Save(ctx context.Context, entity models.Entity) (models.Entity, error)

	Remove(ctx context.Context, entity models.Entity) (int, error)
	RemoveByID(ctx context.Context, id string) (int, error)
	RemoveAll(ctx context.Context, q models.Query) (int, error)

	// Push drains the pending queue of the collection.
	Push(ctx context.Context) (models.PushResult, error)

	// Pull reconciles q with the backend and returns the reconciled result.
	Pull(ctx context.Context, q models.Query) ([]models.Entity, error)

	// Sync pushes and then pulls, never the other way round.
	Sync(ctx context.Context, q models.Query) (models.SyncResult, error)

	// Purge discards queued operations of the entities matching q.
	Purge(ctx context.Context, q models.Query) (int, error)

	// ClearCache removes the cached entities matching q together with their
	// queued operations and forgets the since markers of the collection.
	ClearCache(ctx context.Context, q models.Query) (int, error)

	Count(ctx context.Context, q models.Query, policy models.ReadPolicy) (int, error)

	// SyncCount returns the number of queued operations.
	SyncCount(ctx context.Context) (int, error)

	PendingOperations(ctx context.Context) ([]models.PendingOperation, error)
}
