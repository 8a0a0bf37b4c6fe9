package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

type networkStore struct {
	collection string
	transport  adapter.Transport

	logger *logger.Logger
}

// NewNetworkStore constructs a [DataStore] of type [models.StoreTypeNetwork].
// Every read and write goes straight to the backend; there is no cache and
// no queue, so push, pull and the other sync operations are rejected with
// [ErrInvalidStoreType].
func NewNetworkStore(collection string, transport adapter.Transport, logger *logger.Logger) DataStore {
	return &networkStore{
		collection: collection,
		transport:  transport,
		logger:     logger,
	}
}

func (n *networkStore) Collection() string {
	return n.collection
}

func (n *networkStore) Type() models.StoreType {
	return models.StoreTypeNetwork
}

func (n *networkStore) Find(ctx context.Context, q models.Query, _ models.ReadPolicy) ([]models.Entity, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	res, err := n.transport.FetchCollection(ctx, n.collection, q, q.Skip, q.Limit)
	if err != nil {
		return nil, err
	}
	return res.Entities, nil
}

func (n *networkStore) FindByID(ctx context.Context, id string, policy models.ReadPolicy) (models.Entity, error) {
	if id == "" {
		return models.Entity{}, ErrMissingID
	}

	found, err := n.Find(ctx, models.NewQuery().Where(models.Eq(models.FieldID, models.String(id))).WithLimit(1), policy)
	if err != nil {
		return models.Entity{}, err
	}
	if len(found) == 0 {
		return models.Entity{}, fmt.Errorf("%w: %s/%s", ErrEntityNotFound, n.collection, id)
	}
	return found[0], nil
}

// Save creates entities without a permanent id and updates the others.
func (n *networkStore) Save(ctx context.Context, entity models.Entity) (models.Entity, error) {
	if entity.ID == "" || models.IsTempID(entity.ID) {
		return n.transport.CreateEntity(ctx, n.collection, entity)
	}
	return n.transport.UpdateEntity(ctx, n.collection, entity)
}

func (n *networkStore) Remove(ctx context.Context, entity models.Entity) (int, error) {
	return n.RemoveByID(ctx, entity.ID)
}

func (n *networkStore) RemoveByID(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, ErrMissingID
	}

	err := n.transport.DeleteEntity(ctx, n.collection, id)
	if errors.Is(err, adapter.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// RemoveAll deletes the matching entities one by one and stops at the first
// failure.
func (n *networkStore) RemoveAll(ctx context.Context, q models.Query) (int, error) {
	found, err := n.Find(ctx, q, models.ForceNetwork)
	if err != nil {
		return 0, err
	}

	var removed int
	for _, e := range found {
		c, err := n.RemoveByID(ctx, e.ID)
		if err != nil {
			logger.FromContext(ctx).Err(err).
				Str("func", "networkStore.RemoveAll").
				Str("collection", n.collection).
				Str("id", e.ID).
				Msg("failed to delete entity")
			return removed, err
		}
		removed += c
	}
	return removed, nil
}

func (n *networkStore) Count(ctx context.Context, q models.Query, _ models.ReadPolicy) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}
	return n.transport.CountCollection(ctx, n.collection, q)
}

func (n *networkStore) unsupported(op string) error {
	return fmt.Errorf("%w: %s on %s store %q", ErrInvalidStoreType, op, n.Type(), n.collection)
}

func (n *networkStore) Push(context.Context) (models.PushResult, error) {
	return models.PushResult{}, n.unsupported("push")
}

func (n *networkStore) Pull(context.Context, models.Query) ([]models.Entity, error) {
	return nil, n.unsupported("pull")
}

func (n *networkStore) Sync(context.Context, models.Query) (models.SyncResult, error) {
	return models.SyncResult{}, n.unsupported("sync")
}

func (n *networkStore) Purge(context.Context, models.Query) (int, error) {
	return 0, n.unsupported("purge")
}

func (n *networkStore) ClearCache(context.Context, models.Query) (int, error) {
	return 0, n.unsupported("clear cache")
}

func (n *networkStore) SyncCount(context.Context) (int, error) {
	return 0, n.unsupported("sync count")
}

func (n *networkStore) PendingOperations(context.Context) ([]models.PendingOperation, error) {
	return nil, n.unsupported("pending operations")
}
