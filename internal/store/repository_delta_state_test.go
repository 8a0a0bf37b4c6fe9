package store

import (
	"testing"
	"time"

	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaStateRepository_Lifecycle(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()

	_, err := s.DeltaStates.Get(ctx, "books", "books:{}")
	require.ErrorIs(t, err, ErrDeltaStateNotFound)

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.DeltaStates.Put(ctx, models.DeltaState{
		Collection: "books", Signature: "books:{}", Since: "T1", UpdatedAt: at,
	}))

	got, err := s.DeltaStates.Get(ctx, "books", "books:{}")
	require.NoError(t, err)
	assert.Equal(t, "T1", got.Since)
	assert.True(t, got.UpdatedAt.Equal(at))

	// advance
	require.NoError(t, s.DeltaStates.Put(ctx, models.DeltaState{Collection: "books", Signature: "books:{}", Since: "T2"}))
	got, err = s.DeltaStates.Get(ctx, "books", "books:{}")
	require.NoError(t, err)
	assert.Equal(t, "T2", got.Since)

	require.NoError(t, s.DeltaStates.Delete(ctx, "books", "books:{}"))
	_, err = s.DeltaStates.Get(ctx, "books", "books:{}")
	assert.ErrorIs(t, err, ErrDeltaStateNotFound)
}

func TestDeltaStateRepository_DeleteCollection(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()

	for _, st := range []models.DeltaState{
		{Collection: "books", Signature: "books:{}", Since: "T1"},
		{Collection: "books", Signature: `books:{"a":1}`, Since: "T1"},
		{Collection: "authors", Signature: "authors:{}", Since: "T1"},
	} {
		require.NoError(t, s.DeltaStates.Put(ctx, st))
	}

	require.NoError(t, s.DeltaStates.DeleteCollection(ctx, "books"))

	_, err := s.DeltaStates.Get(ctx, "books", "books:{}")
	assert.ErrorIs(t, err, ErrDeltaStateNotFound)
	_, err = s.DeltaStates.Get(ctx, "books", `books:{"a":1}`)
	assert.ErrorIs(t, err, ErrDeltaStateNotFound)
	_, err = s.DeltaStates.Get(ctx, "authors", "authors:{}")
	assert.NoError(t, err)
}
