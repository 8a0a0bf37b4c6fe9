package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/backendtest"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/mock"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSyncStore_OfflineCreatesThenPush(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	ds := newTestStore(t, "books", newTestStorages(t), tr, syncConfig())

	a, err := ds.Save(ctx, models.Entity{Fields: map[string]models.Value{"title": models.String("A")}})
	require.NoError(t, err)
	b, err := ds.Save(ctx, models.Entity{Fields: map[string]models.Value{"title": models.String("B")}})
	require.NoError(t, err)
	assert.True(t, models.IsTempID(a.ID))
	assert.True(t, models.IsTempID(b.ID))
	assert.NotEqual(t, a.ID, b.ID)

	n, err := ds.SyncCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := ds.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)

	n, err = ds.SyncCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	local, err := ds.Find(ctx, models.NewQuery(), models.ReadLocalFirst)
	require.NoError(t, err)
	require.Len(t, local, 2)
	for _, e := range local {
		assert.False(t, models.IsTempID(e.ID))
		_, ok := backend.Entity("books", e.ID)
		assert.True(t, ok, "local id %s must be the server id", e.ID)
	}
	assert.Equal(t, 2, backend.Len("books"))
}

func TestSyncStore_SaveStampsMetadata(t *testing.T) {
	ds := newTestStore(t, "books", newTestStorages(t), nil, syncConfig())
	setClock(ds, func() time.Time { return testNow })

	expires := testNow.Add(-time.Hour)
	in := book("b1", "B")
	in.ExpiresAt = &expires

	saved, err := ds.Save(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, saved.ExpiresAt, "local writes are not subject to the TTL")
	require.NotNil(t, saved.Metadata)
	assert.True(t, saved.Metadata.LastModified.Equal(testNow))
	assert.Nil(t, in.Metadata, "the caller's entity is not modified")

	got, err := ds.FindByID(context.Background(), "b1", models.ForceLocal)
	require.NoError(t, err)
	assert.Equal(t, "B", titleOf(got))
}

func TestSyncStore_SyncPushesBeforePull(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	cfg := syncConfig()
	cfg.DeltaSetEnabled = false
	ds := newTestStore(t, "books", newTestStorages(t), tr, cfg)

	_, err := ds.Save(ctx, book("", "x"))
	require.NoError(t, err)

	gomock.InOrder(
		tr.EXPECT().CreateEntity(gomock.Any(), "books", gomock.Any()).Return(book("srv1", "x"), nil),
		tr.EXPECT().FetchCollection(gomock.Any(), "books", gomock.Any(), 0, 0).
			Return(models.FetchResult{Entities: []models.Entity{book("srv1", "x")}, Since: "t1"}, nil),
	)

	res, err := ds.Sync(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Push.SuccessCount)
	assert.True(t, res.Pulled)
	assert.Zero(t, res.PendingCount)
	assert.Equal(t, []string{"srv1"}, ids(res.Entities))
}

func TestSyncStore_SyncPushFailurePolicy(t *testing.T) {
	tests := []struct {
		name       string
		policy     config.PushFailurePolicy
		wantPulled bool
	}{
		{"abort skips the pull", config.SyncAbortOnPushError, false},
		{"always-pull pulls anyway", config.SyncAlwaysPull, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ctrl := gomock.NewController(t)
			tr := mock.NewMockTransport(ctrl)
			cfg := syncConfig()
			cfg.DeltaSetEnabled = false
			cfg.PushFailure = tt.policy
			ds := newTestStore(t, "books", newTestStorages(t), tr, cfg)

			saved, err := ds.Save(ctx, book("", "x"))
			require.NoError(t, err)

			tr.EXPECT().CreateEntity(gomock.Any(), "books", gomock.Any()).Return(models.Entity{}, adapter.ErrConnectivity)
			if tt.wantPulled {
				tr.EXPECT().FetchCollection(gomock.Any(), "books", gomock.Any(), 0, 0).Return(models.FetchResult{}, nil)
			}

			res, err := ds.Sync(ctx, models.NewQuery())
			require.ErrorIs(t, err, ErrPushFailed)
			assert.ErrorIs(t, err, adapter.ErrConnectivity)
			assert.Equal(t, tt.wantPulled, res.Pulled)
			assert.Equal(t, 1, res.PendingCount)
			require.Len(t, res.Push.Errors, 1)
			assert.Equal(t, saved.ID, res.Push.Errors[0].EntityID)

			if tt.wantPulled {
				assert.Equal(t, []string{saved.ID}, ids(res.Entities), "the unpushed entity survives the pull")
			}
		})
	}
}

func TestSyncStore_ConcurrentSyncsRunSequentially(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	cfg := syncConfig()
	cfg.DeltaSetEnabled = false
	ds := newTestStore(t, "books", newTestStorages(t), tr, cfg)

	var inflight, peak atomic.Int32
	tr.EXPECT().FetchCollection(gomock.Any(), "books", gomock.Any(), 0, 0).Times(3).
		DoAndReturn(func(context.Context, string, models.Query, int, int) (models.FetchResult, error) {
			cur := inflight.Add(1)
			if cur > peak.Load() {
				peak.Store(cur)
			}
			time.Sleep(20 * time.Millisecond)
			inflight.Add(-1)
			return models.FetchResult{}, nil
		})

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ds.Sync(ctx, models.NewQuery())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestSyncStore_SyncCancelledWhileWaiting(t *testing.T) {
	ds := newTestStore(t, "books", newTestStorages(t), nil, syncConfig())
	require.NoError(t, ds.syncSem.Acquire(context.Background(), 1))
	defer ds.syncSem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ds.Sync(ctx, models.NewQuery())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSyncStore_SharedReferenceLifecycle(t *testing.T) {
	ctx := context.Background()
	storages := newTestStorages(t)
	books := newTestStore(t, "books", storages, nil, syncConfig())
	magazines := newTestStore(t, "magazines", storages, nil, syncConfig())

	publisher := models.Ref(models.Reference{
		Collection: "publishers",
		ID:         "p1",
		Fields:     map[string]models.Value{"name": models.String("Acme")},
	})

	b := book("", "B")
	b.Fields["publisher"] = publisher
	b, err := books.Save(ctx, b)
	require.NoError(t, err)

	m := book("", "M")
	m.Fields["publisher"] = publisher
	m, err = magazines.Save(ctx, m)
	require.NoError(t, err)

	refs, err := storages.Records.ReferenceCount(ctx, "publishers", "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, refs)

	removed, err := books.RemoveByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	refs, err = storages.Records.ReferenceCount(ctx, "publishers", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, refs)
	_, err = storages.Records.GetReference(ctx, "publishers", "p1")
	require.NoError(t, err, "a reference still held elsewhere survives")

	_, err = magazines.RemoveByID(ctx, m.ID)
	require.NoError(t, err)
	_, err = storages.Records.GetReference(ctx, "publishers", "p1")
	assert.ErrorIs(t, err, store.ErrRecordNotFound)

	for _, ds := range []*syncStore{books, magazines} {
		n, err := ds.SyncCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "removing never pushed entities leaves nothing to push")
	}
}

func TestSyncStore_RemoveQueuesDelete(t *testing.T) {
	ctx := context.Background()
	storages := newTestStorages(t)
	ds := newTestStore(t, "books", storages, nil, syncConfig())

	require.NoError(t, storages.Records.Upsert(ctx, "books", book("a", "A"), book("b", "B"), book("c", "C")))

	n, err := ds.Remove(ctx, book("a", "A"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = ds.RemoveByID(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n, "removing an uncached id queues nothing")

	n, err = ds.RemoveAll(ctx, models.NewQuery().Where(models.In("title", models.String("B"), models.String("C"))))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ops, err := ds.PendingOperations(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	for _, op := range ops {
		assert.Equal(t, models.OperationDelete, op.Kind)
	}
}

func TestSyncStore_Purge(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t, "books", newTestStorages(t), nil, syncConfig())

	_, err := ds.Save(ctx, book("", "x"))
	require.NoError(t, err)
	_, err = ds.Save(ctx, book("", "y"))
	require.NoError(t, err)

	n, err := ds.Purge(ctx, models.NewQuery().Where(models.Eq("title", models.String("x"))))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := ds.SyncCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	n, err = ds.Purge(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	local, err := ds.Find(ctx, models.NewQuery(), models.ForceLocal)
	require.NoError(t, err)
	assert.Len(t, local, 2, "purge keeps the cached copies")
}

func TestSyncStore_ClearCache(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	ds := newTestStore(t, "books", newTestStorages(t), tr, syncConfig())

	backend.Put("books", book("a", "A"))
	_, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	_, err = ds.Save(ctx, book("", "local"))
	require.NoError(t, err)

	n, err := ds.ClearCache(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := ds.SyncCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	count, err := ds.Count(ctx, models.NewQuery(), models.ForceLocal)
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := ds.Pull(ctx, models.NewQuery())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(got))
	assert.Equal(t, 2, backend.Calls(backendtest.OpFetch), "cleared markers force a full fetch")
	assert.Zero(t, backend.Calls(backendtest.OpDelta))
}

func TestSyncStore_CountPolicies(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	ds := newTestStore(t, "books", newTestStorages(t), tr, syncConfig())

	backend.Put("books", book("a", "A"))
	backend.Put("books", book("b", "B"))

	local, err := ds.Count(ctx, models.NewQuery(), models.ReadLocalFirst)
	require.NoError(t, err)
	assert.Zero(t, local)

	remote, err := ds.Count(ctx, models.NewQuery(), models.ForceNetwork)
	require.NoError(t, err)
	assert.Equal(t, 2, remote)
}

func TestSyncStore_FindByIDForceNetwork(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	ds := newTestStore(t, "books", newTestStorages(t), tr, syncConfig())

	backend.Put("books", book("a", "A"))

	got, err := ds.FindByID(ctx, "a", models.ForceNetwork)
	require.NoError(t, err)
	assert.Equal(t, "A", titleOf(got))

	_, err = ds.FindByID(ctx, "missing", models.ForceNetwork)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestSyncStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	ds := newTestStore(t, "books", newTestStorages(t), nil, syncConfig())

	_, err := ds.FindByID(ctx, "", models.ForceLocal)
	assert.ErrorIs(t, err, ErrMissingID)
	_, err = ds.RemoveByID(ctx, "")
	assert.ErrorIs(t, err, ErrMissingID)

	bad := models.NewQuery().Where(models.Regex("title", "("))
	_, err = ds.Find(ctx, bad, models.ForceLocal)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = ds.Pull(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = ds.Sync(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = ds.Count(ctx, models.NewQuery().WithSkip(-1), models.ForceLocal)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSyncStore_Identity(t *testing.T) {
	ds := NewSyncStore("books", newTestStorages(t), nil, syncConfig(), nil)
	assert.Equal(t, "books", ds.Collection())
	assert.Equal(t, models.StoreTypeSync, ds.Type())
}
