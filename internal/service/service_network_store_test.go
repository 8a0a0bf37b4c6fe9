package service

import (
	"context"
	"testing"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/mock"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNetworkStore_PassThrough(t *testing.T) {
	ctx := context.Background()
	backend, tr := newBackend(t)
	ds := NewNetworkStore("books", tr, logger.Nop())

	created, err := ds.Save(ctx, book("", "A"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	created.Fields["title"] = models.String("A'")
	_, err = ds.Save(ctx, created)
	require.NoError(t, err)

	server, ok := backend.Entity("books", created.ID)
	require.True(t, ok)
	assert.Equal(t, "A'", titleOf(server))

	got, err := ds.FindByID(ctx, created.ID, models.ForceLocal)
	require.NoError(t, err, "every policy reads the backend")
	assert.Equal(t, "A'", titleOf(got))

	n, err := ds.Count(ctx, models.NewQuery(), models.ReadLocalFirst)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := ds.RemoveByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = ds.RemoveByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, removed, "a missing entity is not an error")

	_, err = ds.FindByID(ctx, created.ID, models.ForceNetwork)
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestNetworkStore_RemoveAllStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	tr := mock.NewMockTransport(ctrl)
	ds := NewNetworkStore("books", tr, logger.Nop())

	tr.EXPECT().FetchCollection(gomock.Any(), "books", gomock.Any(), 0, 0).
		Return(models.FetchResult{Entities: []models.Entity{book("a", "A"), book("b", "B"), book("c", "C")}}, nil)
	gomock.InOrder(
		tr.EXPECT().DeleteEntity(gomock.Any(), "books", "a").Return(nil),
		tr.EXPECT().DeleteEntity(gomock.Any(), "books", "b").Return(adapter.ErrForbidden),
	)

	n, err := ds.RemoveAll(ctx, models.NewQuery())
	assert.ErrorIs(t, err, adapter.ErrForbidden)
	assert.Equal(t, 1, n)
}

func TestNetworkStore_RejectsSyncOperations(t *testing.T) {
	ctx := context.Background()
	ds := NewNetworkStore("books", nil, logger.Nop())
	assert.Equal(t, models.StoreTypeNetwork, ds.Type())

	_, err := ds.Push(ctx)
	assert.ErrorIs(t, err, ErrInvalidStoreType)
	_, err = ds.Pull(ctx, models.NewQuery())
	assert.ErrorIs(t, err, ErrInvalidStoreType)
	_, err = ds.Sync(ctx, models.NewQuery())
	assert.ErrorIs(t, err, ErrInvalidStoreType)
	_, err = ds.Purge(ctx, models.NewQuery())
	assert.ErrorIs(t, err, ErrInvalidStoreType)
	_, err = ds.ClearCache(ctx, models.NewQuery())
	assert.ErrorIs(t, err, ErrInvalidStoreType)
	_, err = ds.SyncCount(ctx)
	assert.ErrorIs(t, err, ErrInvalidStoreType)
	_, err = ds.PendingOperations(ctx)
	assert.ErrorIs(t, err, ErrInvalidStoreType)

	_, err = ds.RemoveByID(ctx, "")
	assert.ErrorIs(t, err, ErrMissingID)
}
