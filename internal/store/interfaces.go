package store

import (
	"context"
	"iter"
	"time"

	"github.com/MKhiriev/go-sync-store/models"
)

// RecordKey identifies one cached row.
type RecordKey struct {
	Collection string
	ID         string
}

// Transactor runs a function inside a database transaction. Repository calls
// made with the context handed to fn participate in that transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RecordRepository is the local cache of entities and the shared reference
// objects they embed.
//
// Rows are either full entities or references. References are maintained
// through the entities that hold them and are invisible to collection
// queries; a reference is deleted once no entity links to it any more.
type RecordRepository interface {
	Upsert(ctx context.Context, collection string, entities ...models.Entity) error
	Get(ctx context.Context, collection, id string) (models.Entity, error)
	GetReference(ctx context.Context, collection, id string) (models.Entity, error)
	Find(ctx context.Context, collection string, q models.Query, now time.Time) ([]models.Entity, error)
	Seq(ctx context.Context, collection string, q models.Query, now time.Time) (iter.Seq[models.Entity], error)
	Count(ctx context.Context, collection string, q models.Query, now time.Time) (int, error)
	Remove(ctx context.Context, collection, id string) (int, error)
	RemoveAll(ctx context.Context, collection string, q models.Query) (int, error)
	Clear(ctx context.Context, collection string, q models.Query) (int, error)
	RewriteID(ctx context.Context, collection, oldID, newID string) ([]RecordKey, error)
	ReferenceCount(ctx context.Context, collection, id string) (int, error)
}

// PendingRepository persists the queue of unpushed local mutations. There is
// at most one entry per (collection, entity id).
type PendingRepository interface {
	Put(ctx context.Context, op models.PendingOperation) error
	Get(ctx context.Context, collection, entityID string) (models.PendingOperation, error)
	List(ctx context.Context, collection string) ([]models.PendingOperation, error)
	Count(ctx context.Context, collection string) (int, error)
	PendingIDs(ctx context.Context, collection string, ids []string) (map[string]struct{}, error)
	Delete(ctx context.Context, collection, entityID string) error
	DeleteIfSeq(ctx context.Context, collection, entityID, seq string) (bool, error)
	Purge(ctx context.Context, collection string, ids []string) (int, error)
	Rekey(ctx context.Context, collection, oldID, newID string) error
	RewriteRefs(ctx context.Context, holders []RecordKey, refCollection, oldID, newID string) error
}

// DeltaStateRepository persists since markers per query scope.
type DeltaStateRepository interface {
	Get(ctx context.Context, collection, signature string) (models.DeltaState, error)
	Put(ctx context.Context, state models.DeltaState) error
	Delete(ctx context.Context, collection, signature string) error
	DeleteCollection(ctx context.Context, collection string) error
}
