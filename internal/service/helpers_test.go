package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/backendtest"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStorages(t *testing.T) *store.Storages {
	t.Helper()
	cfg := config.Storage{DB: config.DB{DSN: filepath.Join(t.TempDir(), "cache.db")}}

	storages, err := store.NewStorages(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storages.Close() })
	return storages
}

func newBackend(t *testing.T) (*backendtest.Server, adapter.Transport) {
	t.Helper()
	backend := backendtest.New()
	t.Cleanup(backend.Close)

	tr, err := adapter.NewHTTPTransport(config.Adapter{
		HTTPAddress:    backend.URL,
		RequestTimeout: 5 * time.Second,
		AppKey:         "app",
	}, logger.Nop())
	require.NoError(t, err)
	return backend, tr
}

func syncConfig() config.Sync {
	return config.Sync{
		DeltaSetEnabled:   true,
		PageSize:          config.DefaultPageSize,
		DeltaUnconfigured: config.DeltaUnconfiguredRetry,
		PushFailure:       config.SyncAbortOnPushError,
	}
}

func newTestStore(t *testing.T, collection string, storages *store.Storages, tr adapter.Transport, cfg config.Sync) *syncStore {
	t.Helper()
	return NewSyncStore(collection, storages, tr, cfg, logger.Nop()).(*syncStore)
}

// setClock pins the clock of s and of the queue and reconciler it owns.
func setClock(s *syncStore, now func() time.Time) {
	s.now = now
	s.queue.(*pendingQueue).now = now
	s.reconciler.(*reconciler).now = now
}

func book(id, title string) models.Entity {
	return models.Entity{ID: id, Fields: map[string]models.Value{"title": models.String(title)}}
}

func titleOf(e models.Entity) string {
	s, _ := e.Fields["title"].AsString()
	return s
}

func titles(items []models.Entity) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, titleOf(item))
	}
	return out
}

func ids(items []models.Entity) []string {
	return entityIDs(items)
}
