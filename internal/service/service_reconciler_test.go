package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/backendtest"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/mock"
	"github.com/MKhiriev/go-sync-store/internal/query"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestReconcile_FullThenDelta(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	ds := newTestStore(t, "books", newTestStorages(t), tr, syncConfig())

	backend.Put("books", book("a", "A"))
	backend.Put("books", book("b", "B"))

	got, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(got))

	backend.Put("books", book("a", "A'"))
	backend.Delete("books", "b")
	backend.Put("books", book("c", "C"))

	got, err = ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A'", "C"}, titles(got))

	assert.Equal(t, 1, backend.Calls(backendtest.OpFetch))
	assert.Equal(t, 1, backend.Calls(backendtest.OpDelta))
}

func TestReconcile_DeltaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	storages := newTestStorages(t)
	r := NewReconciler(storages, tr, syncConfig(), logger.Nop())

	signature, err := query.Signature("books", models.NewQuery())
	require.NoError(t, err)
	require.NoError(t, storages.DeltaStates.Put(ctx, models.DeltaState{Collection: "books", Signature: signature, Since: "t0"}))
	require.NoError(t, storages.Records.Upsert(ctx, "books", book("a", "A"), book("b", "B"), book("c", "C")))

	delta := models.DeltaResult{
		Changed: []models.Entity{book("a", "A'")},
		Deleted: []string{"b"},
		Since:   "t1",
	}
	gomock.InOrder(
		tr.EXPECT().FetchDelta(gomock.Any(), "books", gomock.Any(), "t0").Return(delta, nil),
		tr.EXPECT().FetchDelta(gomock.Any(), "books", gomock.Any(), "t1").Return(delta, nil),
	)

	first, err := r.Reconcile(ctx, "books", models.NewQuery(), true)
	require.NoError(t, err)
	second, err := r.Reconcile(ctx, "books", models.NewQuery(), true)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, ids(first))
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, titles(first), titles(second))

	state, err := storages.DeltaStates.Get(ctx, "books", signature)
	require.NoError(t, err)
	assert.Equal(t, "t1", state.Since)
}

func TestReconcile_ExpiredMarkerFallsBackToFullFetch(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	ds := newTestStore(t, "books", newTestStorages(t), tr, syncConfig())

	backend.Put("books", book("a", "A"))
	_, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)

	backend.ExpireMarkers()
	backend.Put("books", book("b", "B"))

	got, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err, "an expired marker is not surfaced to the caller")
	assert.Equal(t, []string{"A", "B"}, titles(got))
	assert.Equal(t, 2, backend.Calls(backendtest.OpFetch))

	_, err = ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(backendtest.OpFetch), "the fresh marker is used again")
	assert.Equal(t, 2, backend.Calls(backendtest.OpDelta))
}

func TestReconcile_MissingConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		policy     config.DeltaUnconfiguredPolicy
		wantDeltas int
	}{
		{"retry attempts delta every time", config.DeltaUnconfiguredRetry, 2},
		{"remember stops attempting", config.DeltaUnconfiguredRemember, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			backend, tr := newBackend(t)
			cfg := syncConfig()
			cfg.DeltaUnconfigured = tt.policy
			ds := newTestStore(t, "books", newTestStorages(t), tr, cfg)

			backend.Put("books", book("a", "A"))
			backend.DisableDeltaSet("books")

			for range 3 {
				got, err := ds.Pull(ctx, models.NewQuery())
				require.NoError(t, err)
				assert.Equal(t, []string{"A"}, titles(got))
			}

			assert.Equal(t, 3, backend.Calls(backendtest.OpFetch))
			assert.Equal(t, tt.wantDeltas, backend.Calls(backendtest.OpDelta))
		})
	}
}

func TestReconcile_ResultSetSizeExceeded(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	storages := newTestStorages(t)
	cfg := syncConfig()
	ds := newTestStore(t, "books", storages, tr, cfg)

	for i := range 3 {
		backend.Put("books", book(fmt.Sprintf("b%d", i), fmt.Sprintf("B%d", i)))
	}
	backend.LimitResultSet(2)

	_, err := ds.Pull(ctx, models.NewQuery())
	require.ErrorIs(t, err, adapter.ErrResultSetSizeExceeded)

	n, err := storages.Records.Count(ctx, "books", models.NewQuery(), time.Time{})
	require.NoError(t, err)
	assert.Zero(t, n, "a failed fetch leaves the cache untouched")

	signature, err := query.Signature("books", models.NewQuery())
	require.NoError(t, err)
	_, err = storages.DeltaStates.Get(ctx, "books", signature)
	assert.ErrorIs(t, err, store.ErrDeltaStateNotFound)

	cfg.AutoPagination = true
	cfg.PageSize = 2
	paged := newTestStore(t, "books", storages, tr, cfg)

	got, err := paged.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"B0", "B1", "B2"}, titles(got))
	assert.Equal(t, 3, backend.Calls(backendtest.OpFetch), "one failed fetch and two pages")
}

func TestReconcile_AutoPaginationFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	storages := newTestStorages(t)

	cfg := syncConfig()
	cfg.AutoPagination = true
	cfg.PageSize = 2
	ds := newTestStore(t, "books", storages, tr, cfg)

	require.NoError(t, storages.Records.Upsert(ctx, "books", book("b0", "cached")))

	gomock.InOrder(
		tr.EXPECT().FetchCollection(gomock.Any(), "books", gomock.Any(), 0, 2).
			Return(models.FetchResult{Entities: []models.Entity{book("b0", "B0"), book("b1", "B1")}, Since: "s1"}, nil),
		tr.EXPECT().FetchCollection(gomock.Any(), "books", gomock.Any(), 2, 2).
			Return(models.FetchResult{}, adapter.ErrResultSetSizeExceeded),
	)

	_, err := ds.Pull(ctx, models.NewQuery())
	require.ErrorIs(t, err, adapter.ErrResultSetSizeExceeded)

	cached, err := storages.Records.Find(ctx, "books", models.NewQuery(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cached"}, titles(cached), "earlier pages are not committed")

	signature, err := query.Signature("books", models.NewQuery())
	require.NoError(t, err)
	_, err = storages.DeltaStates.Get(ctx, "books", signature)
	assert.ErrorIs(t, err, store.ErrDeltaStateNotFound)
}

func TestReconcile_AutoPaginationEquivalence(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	for i := range 7 {
		backend.Put("books", book(fmt.Sprintf("b%d", i), fmt.Sprintf("B%d", i)))
	}

	single := newTestStore(t, "books", newTestStorages(t), tr, syncConfig())
	want, err := single.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	require.Len(t, want, 7)

	for pageSize := 1; pageSize <= 8; pageSize++ {
		t.Run(fmt.Sprintf("page size %d", pageSize), func(t *testing.T) {
			cfg := syncConfig()
			cfg.AutoPagination = true
			cfg.PageSize = pageSize
			ds := newTestStore(t, "books", newTestStorages(t), tr, cfg)

			got, err := ds.Pull(ctx, models.NewQuery())
			require.NoError(t, err)
			assert.Equal(t, ids(want), ids(got))
		})
	}
}

func TestReconcile_FullFetchPrunesUnlessPending(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	storages := newTestStorages(t)
	cfg := syncConfig()
	cfg.DeltaSetEnabled = false
	ds := newTestStore(t, "books", storages, tr, cfg)

	backend.Put("books", book("a", "A"))
	backend.Put("books", book("b", "B"))
	_, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)

	_, err = ds.Save(ctx, book("b", "B local"))
	require.NoError(t, err)

	backend.Delete("books", "a")
	backend.Delete("books", "b")

	got, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"B local"}, titles(got), "an entity with a queued write survives the prune")

	_, err = storages.Records.Get(ctx, "books", "a")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestReconcile_DeltaSkipsPendingEntities(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	ds := newTestStore(t, "books", newTestStorages(t), tr, syncConfig())

	backend.Put("books", book("a", "A"))
	_, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)

	_, err = ds.Save(ctx, book("a", "A local"))
	require.NoError(t, err)
	backend.Put("books", book("a", "A server"))

	got, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"A local"}, titles(got))
	assert.Equal(t, 1, backend.Calls(backendtest.OpDelta))
}

func TestReconcile_PagedQueryKeepsNoMarker(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	storages := newTestStorages(t)
	ds := newTestStore(t, "books", storages, tr, syncConfig())

	for i := range 5 {
		backend.Put("books", book(fmt.Sprintf("b%d", i), fmt.Sprintf("B%d", i)))
	}

	q := models.NewQuery().WithSkip(1).WithLimit(2)
	got, err := ds.Pull(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2"}, titles(got))

	_, err = ds.Pull(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(backendtest.OpFetch))
	assert.Zero(t, backend.Calls(backendtest.OpDelta))
}

func TestReconcile_TTL(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	storages := newTestStorages(t)
	cfg := syncConfig()
	cfg.TTL = time.Hour
	ds := newTestStore(t, "books", storages, tr, cfg)

	now := testNow
	setClock(ds, func() time.Time { return now })

	backend.Put("books", book("a", "A"))
	backend.Put("books", book("b", "B"))

	got, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, e := range got {
		require.NotNil(t, e.ExpiresAt)
		assert.True(t, e.ExpiresAt.Equal(testNow.Add(time.Hour)))
	}

	now = testNow.Add(30 * time.Minute)
	fresh, err := ds.Find(ctx, models.NewQuery(), models.ForceLocal)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)

	now = testNow.Add(2 * time.Hour)
	expired, err := ds.Find(ctx, models.NewQuery(), models.ReadLocalFirst)
	require.NoError(t, err)
	assert.Empty(t, expired)

	_, err = ds.FindByID(ctx, "a", models.ForceLocal)
	assert.ErrorIs(t, err, ErrEntityNotFound)

	_, err = storages.Records.Get(ctx, "books", "a")
	require.NoError(t, err, "expired entities are hidden, not deleted")

	refreshed, err := ds.Find(ctx, models.NewQuery(), models.ForceNetwork)
	require.NoError(t, err)
	assert.Len(t, refreshed, 2, "a delta refresh extends the TTL of unchanged entities")
	assert.Equal(t, 1, backend.Calls(backendtest.OpDelta))
}

func TestReconcile_Invalidate(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	ds := newTestStore(t, "books", newTestStorages(t), tr, syncConfig())

	backend.Put("books", book("a", "A"))
	_, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)

	require.NoError(t, ds.reconciler.Invalidate(ctx, "books"))

	_, err = ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(backendtest.OpFetch))
	assert.Zero(t, backend.Calls(backendtest.OpDelta))
}
