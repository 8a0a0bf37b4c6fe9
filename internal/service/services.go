package service

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/models"
)

// NewDataStore constructs the [DataStore] of the given type for collection.
// Network stores ignore storages and cfg.
func NewDataStore(collection string, storeType models.StoreType, storages *store.Storages, transport adapter.Transport, cfg config.Sync, logger *logger.Logger) (DataStore, error) {
	if collection == "" {
		return nil, errors.New("collection name is required")
	}

	switch storeType {
	case models.StoreTypeSync:
		if storages == nil {
			return nil, fmt.Errorf("%w: sync store %q needs local storages", ErrInvalidStoreType, collection)
		}
		return NewSyncStore(collection, storages, transport, cfg, logger), nil
	case models.StoreTypeNetwork:
		return NewNetworkStore(collection, transport, logger), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidStoreType, storeType)
	}
}
