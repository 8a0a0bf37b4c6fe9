package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/query"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/internal/utils"
	"github.com/MKhiriev/go-sync-store/models"
	"golang.org/x/sync/semaphore"
)

type idGenerator interface {
	Generate() string
}

type syncStore struct {
	collection string

	tx         store.Transactor
	records    store.RecordRepository
	queue      PendingQueue
	reconciler Reconciler
	transport  adapter.Transport

	cfg config.Sync
	ids idGenerator
	now func() time.Time

	pushSem *semaphore.Weighted
	pullSem *semaphore.Weighted
	syncSem *semaphore.Weighted

	logger *logger.Logger
}

// NewSyncStore constructs a [DataStore] of type [models.StoreTypeSync]: reads
// are served by the local cache, writes are queued and reach the backend on
// Push or Sync.
func NewSyncStore(collection string, storages *store.Storages, transport adapter.Transport, cfg config.Sync, logger *logger.Logger) DataStore {
	return &syncStore{
		collection: collection,
		tx:         storages.DB,
		records:    storages.Records,
		queue:      NewPendingQueue(storages, logger),
		reconciler: NewReconciler(storages, transport, cfg, logger),
		transport:  transport,
		cfg:        cfg,
		ids:        utils.NewTempIDGenerator(),
		now:        time.Now,
		pushSem:    semaphore.NewWeighted(1),
		pullSem:    semaphore.NewWeighted(1),
		syncSem:    semaphore.NewWeighted(1),
		logger:     logger,
	}
}

func (s *syncStore) Collection() string {
	return s.collection
}

func (s *syncStore) Type() models.StoreType {
	return models.StoreTypeSync
}

func validateQuery(q models.Query) error {
	if err := query.Validate(q.Filter); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if q.Skip < 0 || q.Limit < 0 {
		return fmt.Errorf("%w: negative skip or limit", ErrInvalidQuery)
	}
	return nil
}

// Find implements [DataStore]. Local policies read the cache with expired
// entities excluded; [models.ForceNetwork] reconciles first.
func (s *syncStore) Find(ctx context.Context, q models.Query, policy models.ReadPolicy) ([]models.Entity, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	if policy == models.ForceNetwork {
		return s.Pull(ctx, q)
	}
	return s.records.Find(ctx, s.collection, q, s.now())
}

// FindByID implements [DataStore].
func (s *syncStore) FindByID(ctx context.Context, id string, policy models.ReadPolicy) (models.Entity, error) {
	if id == "" {
		return models.Entity{}, ErrMissingID
	}

	if policy == models.ForceNetwork {
		found, err := s.Pull(ctx, models.NewQuery().Where(models.Eq(models.FieldID, models.String(id))))
		if err != nil {
			return models.Entity{}, err
		}
		if len(found) == 0 {
			return models.Entity{}, fmt.Errorf("%w: %s/%s", ErrEntityNotFound, s.collection, id)
		}
		return found[0], nil
	}

	e, err := s.records.Get(ctx, s.collection, id)
	if errors.Is(err, store.ErrRecordNotFound) || (err == nil && e.Expired(s.now())) {
		return models.Entity{}, fmt.Errorf("%w: %s/%s", ErrEntityNotFound, s.collection, id)
	}
	if err != nil {
		return models.Entity{}, err
	}
	return e, nil
}

// Save implements [DataStore]. The entity is written to the cache and queued
// in one transaction.
func (s *syncStore) Save(ctx context.Context, entity models.Entity) (models.Entity, error) {
	saved := entity.Clone()
	if saved.ID == "" {
		saved.ID = s.ids.Generate()
	}
	stampLocalMetadata(&saved, s.now())
	// local writes are not subject to the cache TTL
	saved.ExpiresAt = nil

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.records.Upsert(ctx, s.collection, saved); err != nil {
			return err
		}
		return s.queue.EnqueueSave(ctx, s.collection, saved)
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "syncStore.Save").
			Str("collection", s.collection).
			Str("id", saved.ID).
			Msg("failed to save entity")
		return models.Entity{}, err
	}

	return saved, nil
}

func stampLocalMetadata(e *models.Entity, now time.Time) {
	now = now.UTC()
	meta := models.Metadata{}
	if e.Metadata != nil {
		meta = *e.Metadata
	}
	if meta.CreatedAt == nil {
		meta.CreatedAt = &now
	}
	meta.LastModified = &now
	e.Metadata = &meta
}

func (s *syncStore) Remove(ctx context.Context, entity models.Entity) (int, error) {
	return s.RemoveByID(ctx, entity.ID)
}

// RemoveByID implements [DataStore]. Removing an uncached id is a no-op
// reporting 0.
func (s *syncStore) RemoveByID(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, ErrMissingID
	}

	var removed int
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.remove(ctx, id)
		return err
	})
	return removed, err
}

func (s *syncStore) remove(ctx context.Context, id string) (int, error) {
	n, err := s.records.Remove(ctx, s.collection, id)
	if err != nil || n == 0 {
		return n, err
	}
	return n, s.queue.EnqueueDelete(ctx, s.collection, id)
}

// RemoveAll implements [DataStore].
func (s *syncStore) RemoveAll(ctx context.Context, q models.Query) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}

	var removed int
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		items, err := s.records.Find(ctx, s.collection, q, time.Time{})
		if err != nil {
			return err
		}
		for _, item := range items {
			n, err := s.remove(ctx, item.ID)
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	return removed, err
}

// Push implements [DataStore]. Concurrent pushes of the same store run one
// after another.
func (s *syncStore) Push(ctx context.Context) (models.PushResult, error) {
	if err := s.pushSem.Acquire(ctx, 1); err != nil {
		return models.PushResult{}, err
	}
	defer s.pushSem.Release(1)

	return s.queue.Drain(ctx, s.collection, s.transport)
}

// Pull implements [DataStore].
func (s *syncStore) Pull(ctx context.Context, q models.Query) ([]models.Entity, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	if err := s.pullSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.pullSem.Release(1)

	entities, err := s.reconciler.Reconcile(ctx, s.collection, q, s.cfg.DeltaSetEnabled)
	if err != nil {
		logger.FromContext(ctx).Err(err).
			Str("func", "syncStore.Pull").
			Str("collection", s.collection).
			Msg("failed to reconcile with backend")
		return nil, err
	}
	return entities, nil
}

// Sync implements [DataStore]. With [config.SyncAbortOnPushError] a push
// with failed items skips the pull; with [config.SyncAlwaysPull] the pull
// runs anyway and both outcomes are returned.
func (s *syncStore) Sync(ctx context.Context, q models.Query) (models.SyncResult, error) {
	log := logger.FromContext(ctx)

	if err := validateQuery(q); err != nil {
		return models.SyncResult{}, err
	}

	if err := s.syncSem.Acquire(ctx, 1); err != nil {
		return models.SyncResult{}, err
	}
	defer s.syncSem.Release(1)

	var result models.SyncResult

	pushed, err := s.Push(ctx)
	result.Push = pushed
	if err != nil {
		return result, err
	}

	var pushErr error
	if len(pushed.Errors) > 0 {
		pushErr = fmt.Errorf("%w: %w", ErrPushFailed, pushed.Err())
	}

	if pushErr != nil && s.cfg.PushFailure != config.SyncAlwaysPull {
		log.Warn().
			Str("func", "syncStore.Sync").
			Str("collection", s.collection).
			Int("failed", len(pushed.Errors)).
			Msg("push failed, pull skipped")
		result.PendingCount, err = s.queue.Count(ctx, s.collection)
		return result, errors.Join(pushErr, err)
	}

	entities, pullErr := s.Pull(ctx, q)
	if pullErr == nil {
		result.Entities = entities
		result.Pulled = true
	}

	result.PendingCount, err = s.queue.Count(ctx, s.collection)
	return result, errors.Join(pushErr, pullErr, err)
}

// Purge implements [DataStore]. An unfiltered query purges the whole
// backlog, including deletes of entities no longer cached.
func (s *syncStore) Purge(ctx context.Context, q models.Query) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}

	if q.Filter == nil && !q.Paged() {
		return s.queue.Purge(ctx, s.collection, nil)
	}

	var purged int
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		items, err := s.records.Find(ctx, s.collection, q, time.Time{})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		purged, err = s.queue.Purge(ctx, s.collection, entityIDs(items))
		return err
	})
	return purged, err
}

// ClearCache implements [DataStore].
func (s *syncStore) ClearCache(ctx context.Context, q models.Query) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}

	var cleared int
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		items, err := s.records.Find(ctx, s.collection, q.Unpaged(), time.Time{})
		if err != nil {
			return err
		}

		if cleared, err = s.records.Clear(ctx, s.collection, q); err != nil {
			return err
		}

		switch {
		case q.Filter == nil:
			_, err = s.queue.Purge(ctx, s.collection, nil)
		case len(items) > 0:
			_, err = s.queue.Purge(ctx, s.collection, entityIDs(items))
		}
		if err != nil {
			return err
		}

		return s.reconciler.Invalidate(ctx, s.collection)
	})
	return cleared, err
}

// Count implements [DataStore].
func (s *syncStore) Count(ctx context.Context, q models.Query, policy models.ReadPolicy) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}

	if policy == models.ForceNetwork {
		return s.transport.CountCollection(ctx, s.collection, q)
	}
	return s.records.Count(ctx, s.collection, q, s.now())
}

func (s *syncStore) SyncCount(ctx context.Context) (int, error) {
	return s.queue.Count(ctx, s.collection)
}

func (s *syncStore) PendingOperations(ctx context.Context) ([]models.PendingOperation, error) {
	return s.queue.List(ctx, s.collection)
}

func entityIDs(items []models.Entity) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
