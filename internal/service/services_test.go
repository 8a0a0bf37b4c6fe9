package service

import (
	"testing"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDataStore(t *testing.T) {
	storages := newTestStorages(t)

	ds, err := NewDataStore("books", models.StoreTypeSync, storages, nil, syncConfig(), logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, models.StoreTypeSync, ds.Type())

	ds, err = NewDataStore("books", models.StoreTypeNetwork, nil, nil, syncConfig(), logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, models.StoreTypeNetwork, ds.Type())

	_, err = NewDataStore("books", models.StoreTypeSync, nil, nil, syncConfig(), logger.Nop())
	assert.ErrorIs(t, err, ErrInvalidStoreType)

	_, err = NewDataStore("books", models.StoreType(7), storages, nil, syncConfig(), logger.Nop())
	assert.ErrorIs(t, err, ErrInvalidStoreType)

	_, err = NewDataStore("", models.StoreTypeSync, storages, nil, syncConfig(), logger.Nop())
	assert.Error(t, err)
}
