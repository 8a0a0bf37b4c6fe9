// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/query"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/models"
)

type reconciler struct {
	tx        store.Transactor
	records   store.RecordRepository
	pending   store.PendingRepository
	deltas    store.DeltaStateRepository
	transport adapter.Transport

	cfg config.Sync
	now func() time.Time

	mu           sync.Mutex
	unconfigured map[string]bool

	logger *logger.Logger
}

// NewReconciler constructs a [Reconciler]. cfg supplies auto-pagination,
// TTL stamping and the delta-unconfigured policy.
func NewReconciler(storages *store.Storages, transport adapter.Transport, cfg config.Sync, logger *logger.Logger) Reconciler {
	return &reconciler{
		tx:           storages.DB,
		records:      storages.Records,
		pending:      storages.Pending,
		deltas:       storages.DeltaStates,
		transport:    transport,
		cfg:          cfg,
		now:          time.Now,
		unconfigured: make(map[string]bool),
		logger:       logger,
	}
}

// Reconcile implements [Reconciler].
//
// Paged queries are fetched as one window and never advance a since marker.
// Unpaged queries use the remembered marker of their scope when deltaSet is
// on, and fall back to a full fetch when there is none, when delta sets are
// not configured for the collection or when the marker expired.
func (r *reconciler) Reconcile(ctx context.Context, collection string, q models.Query, deltaSet bool) ([]models.Entity, error) {
	log := logger.FromContext(ctx)

	if q.Paged() {
		return r.fetchWindow(ctx, collection, q)
	}

	signature, err := query.Signature(collection, q)
	if err != nil {
		return nil, err
	}
	deltaSet = deltaSet && !r.isUnconfigured(collection)

	if deltaSet {
		state, err := r.deltas.Get(ctx, collection, signature)
		switch {
		case err == nil:
			err = r.fetchDelta(ctx, collection, q, state)
			switch {
			case err == nil:
				return r.records.Find(ctx, collection, q, r.now())

			case errors.Is(err, adapter.ErrMissingConfiguration):
				log.Warn().
					Str("func", "reconciler.Reconcile").
					Str("collection", collection).
					Str("policy", string(r.cfg.DeltaUnconfigured)).
					Msg("delta set is not configured, falling back to full fetch")
				if r.cfg.DeltaUnconfigured == config.DeltaUnconfiguredRemember {
					r.markUnconfigured(collection)
					deltaSet = false
				}

			case errors.Is(err, adapter.ErrParameterValueOutOfRange):
				log.Info().
					Str("func", "reconciler.Reconcile").
					Str("collection", collection).
					Msg("since marker expired, falling back to full fetch")
				if err = r.deltas.Delete(ctx, collection, signature); err != nil {
					return nil, err
				}

			default:
				return nil, err
			}

		case !errors.Is(err, store.ErrDeltaStateNotFound):
			return nil, err
		}
	}

	since, err := r.fetchFull(ctx, collection, q)
	if err != nil {
		return nil, err
	}

	if deltaSet && since != "" {
		err = r.deltas.Put(ctx, models.DeltaState{
			Collection: collection,
			Signature:  signature,
			Since:      since,
			UpdatedAt:  r.now(),
		})
		if err != nil {
			return nil, err
		}
	}

	return r.records.Find(ctx, collection, q, r.now())
}

// Invalidate implements [Reconciler].
func (r *reconciler) Invalidate(ctx context.Context, collection string) error {
	return r.deltas.DeleteCollection(ctx, collection)
}

func (r *reconciler) isUnconfigured(collection string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unconfigured[collection]
}

func (r *reconciler) markUnconfigured(collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unconfigured[collection] = true
}

// fetchWindow fetches exactly the skip/limit window of q and caches it.
func (r *reconciler) fetchWindow(ctx context.Context, collection string, q models.Query) ([]models.Entity, error) {
	res, err := r.transport.FetchCollection(ctx, collection, q, q.Skip, q.Limit)
	if err != nil {
		return nil, err
	}

	stamped, err := r.apply(ctx, collection, res.Entities, r.now())
	if err != nil {
		return nil, err
	}
	return stamped, nil
}

// fetchFull replaces the cached result of q with the server result and
// returns the since marker of the first response.
func (r *reconciler) fetchFull(ctx context.Context, collection string, q models.Query) (string, error) {
	now := r.now()

	if !r.cfg.AutoPagination || r.cfg.PageSize <= 0 {
		res, err := r.transport.FetchCollection(ctx, collection, q, 0, 0)
		if err != nil {
			return "", err
		}

		err = r.tx.InTx(ctx, func(ctx context.Context) error {
			if _, err := r.apply(ctx, collection, res.Entities, now); err != nil {
				return err
			}
			return r.prune(ctx, collection, q, idSet(res.Entities))
		})
		return res.Since, err
	}

	var (
		since   string
		first   = true
		fetched []models.Entity
	)
	for page := range query.Pages(r.cfg.PageSize) {
		res, err := r.transport.FetchCollection(ctx, collection, q, page.Skip, page.Limit)
		if err != nil {
			// nothing is cached until every page arrived
			return "", err
		}
		if first {
			since = res.Since
			first = false
		}
		fetched = append(fetched, res.Entities...)

		if len(res.Entities) < page.Limit {
			break
		}
	}

	return since, r.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := r.apply(ctx, collection, fetched, now); err != nil {
			return err
		}
		return r.prune(ctx, collection, q, idSet(fetched))
	})
}

func (r *reconciler) fetchDelta(ctx context.Context, collection string, q models.Query, state models.DeltaState) error {
	res, err := r.transport.FetchDelta(ctx, collection, q, state.Since)
	if err != nil {
		return err
	}
	now := r.now()

	return r.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := r.apply(ctx, collection, res.Changed, now); err != nil {
			return err
		}

		pending, err := r.pending.PendingIDs(ctx, collection, res.Deleted)
		if err != nil {
			return err
		}
		for _, id := range res.Deleted {
			if _, skip := pending[id]; skip {
				continue
			}
			if _, err = r.records.Remove(ctx, collection, id); err != nil {
				return err
			}
		}

		if err = r.touch(ctx, collection, q, now); err != nil {
			return err
		}

		if res.Since == "" {
			return nil
		}
		state.Since = res.Since
		state.UpdatedAt = now
		return r.deltas.Put(ctx, state)
	})
}

// apply upserts fetched entities in one transaction, stamping the cache TTL.
// Entities with a queued local operation are left alone until pushed.
// It returns the stamped entities in fetch order.
func (r *reconciler) apply(ctx context.Context, collection string, fetched []models.Entity, now time.Time) ([]models.Entity, error) {
	stamped := make([]models.Entity, 0, len(fetched))
	for _, e := range fetched {
		stamped = append(stamped, r.stamp(e, now))
	}
	if len(stamped) == 0 {
		return stamped, nil
	}

	err := r.tx.InTx(ctx, func(ctx context.Context) error {
		ids := make([]string, 0, len(stamped))
		for _, e := range stamped {
			ids = append(ids, e.ID)
		}

		pending, err := r.pending.PendingIDs(ctx, collection, ids)
		if err != nil {
			return err
		}

		fresh := make([]models.Entity, 0, len(stamped))
		for _, e := range stamped {
			if _, skip := pending[e.ID]; !skip {
				fresh = append(fresh, e)
			}
		}
		return r.records.Upsert(ctx, collection, fresh...)
	})
	if err != nil {
		return nil, err
	}
	return stamped, nil
}

// prune removes cached matches of q the server no longer returned, keeping
// entities with a queued operation.
func (r *reconciler) prune(ctx context.Context, collection string, q models.Query, seen map[string]struct{}) error {
	cached, err := r.records.Find(ctx, collection, q.Unpaged(), time.Time{})
	if err != nil {
		return err
	}

	pending, err := r.pending.PendingIDs(ctx, collection, nil)
	if err != nil {
		return err
	}

	for _, e := range cached {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		if _, ok := pending[e.ID]; ok {
			continue
		}
		if _, err = r.records.Remove(ctx, collection, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// touch extends the TTL of the cached matches of q: an answered delta
// confirms them current as of now.
func (r *reconciler) touch(ctx context.Context, collection string, q models.Query, now time.Time) error {
	if r.cfg.TTL <= 0 {
		return nil
	}

	cached, err := r.records.Find(ctx, collection, q.Unpaged(), time.Time{})
	if err != nil {
		return err
	}

	pending, err := r.pending.PendingIDs(ctx, collection, nil)
	if err != nil {
		return err
	}

	refreshed := make([]models.Entity, 0, len(cached))
	for _, e := range cached {
		if _, skip := pending[e.ID]; skip || e.ExpiresAt == nil {
			continue
		}
		expires := now.Add(r.cfg.TTL)
		e.ExpiresAt = &expires
		refreshed = append(refreshed, e)
	}
	return r.records.Upsert(ctx, collection, refreshed...)
}

func (r *reconciler) stamp(e models.Entity, now time.Time) models.Entity {
	if r.cfg.TTL <= 0 || e.ExpiresAt != nil {
		return e
	}
	expires := now.Add(r.cfg.TTL)
	e.ExpiresAt = &expires
	return e
}

func idSet(items []models.Entity) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, e := range items {
		out[e.ID] = struct{}{}
	}
	return out
}
