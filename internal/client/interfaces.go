// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/service"
	"github.com/MKhiriev/go-sync-store/internal/workers"
	"github.com/MKhiriev/go-sync-store/models"
)

// Stores is the contract command-line and embedding code rely on.
type Stores interface {
	// Collection returns the store of name, creating it on first use.
	Collection(name string, storeType models.StoreType) (service.DataStore, error)

	// Collections returns the stores opened so far, ordered by name.
	Collections() []service.DataStore

	// Files returns the file transfer collaborator.
	Files() adapter.FileTransfer

	// StartSync launches background sync of the opened sync stores.
	StartSync(ctx context.Context, opts ...workers.SyncWorkerOption) error

	// Close stops background work and releases the local cache.
	Close() error
}
