package client

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/service"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/internal/workers"
	"github.com/MKhiriev/go-sync-store/models"
)

type Client struct {
	cfg *config.ClientConfig

	storages  *store.Storages
	transport adapter.Transport
	files     adapter.FileTransfer

	mu      sync.Mutex
	stores  map[string]service.DataStore
	workers *workers.Workers
	closed  bool

	logger *logger.Logger
}

// New wires a Client from cfg: it opens and migrates the local cache and
// builds the HTTP transport and file transfer.
func New(ctx context.Context, cfg *config.ClientConfig, logger *logger.Logger) (*Client, error) {
	storages, err := store.NewStorages(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	transport, err := adapter.NewHTTPTransport(cfg.Adapter, logger)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("create transport: %w", err)
	}

	files, err := adapter.NewHTTPFileTransfer(cfg.Adapter, logger)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("create file transfer: %w", err)
	}

	return &Client{
		cfg:       cfg,
		storages:  storages,
		transport: transport,
		files:     files,
		stores:    make(map[string]service.DataStore),
		logger:    logger,
	}, nil
}

// Collection implements [Stores]. Handles are cached per name, so every
// caller of a collection shares one pending queue and one set of
// semaphores.
func (c *Client) Collection(name string, storeType models.StoreType) (service.DataStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	name = strings.TrimSpace(name)
	if ds, ok := c.stores[name]; ok {
		if ds.Type() != storeType {
			return nil, fmt.Errorf("%w: %q is a %s store", ErrStoreTypeMismatch, name, ds.Type())
		}
		return ds, nil
	}

	ds, err := service.NewDataStore(name, storeType, c.storages, c.transport, c.cfg.Sync, c.logger)
	if err != nil {
		return nil, err
	}
	c.stores[name] = ds

	c.logger.Debug().
		Str("collection", name).
		Str("type", storeType.String()).
		Msg("collection store opened")

	return ds, nil
}

// Collections implements [Stores].
func (c *Client) Collections() []service.DataStore {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]service.DataStore, 0, len(c.stores))
	for _, ds := range c.stores {
		out = append(out, ds)
	}
	slices.SortFunc(out, func(a, b service.DataStore) int {
		return strings.Compare(a.Collection(), b.Collection())
	})
	return out
}

func (c *Client) Files() adapter.FileTransfer {
	return c.files
}

// StartSync implements [Stores]. The worker syncs the sync stores open at
// the time of the call every cfg.Workers.SyncInterval. A previous worker is
// stopped first.
func (c *Client) StartSync(ctx context.Context, opts ...workers.SyncWorkerOption) error {
	var syncers []workers.Syncer
	for _, ds := range c.Collections() {
		if ds.Type() == models.StoreTypeSync {
			syncers = append(syncers, ds)
		}
	}
	if len(syncers) == 0 {
		return ErrNoSyncStore
	}

	next := workers.NewWorkers(
		workers.NewSyncWorker(syncers, c.cfg.Workers.SyncInterval, c.logger, opts...),
	)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	prev := c.workers
	c.workers = next
	c.mu.Unlock()

	// stopped outside the lock: an in-flight sync may call back into c
	if prev != nil {
		prev.Stop()
	}
	next.Start(ctx)
	return nil
}

// Close implements [Stores]. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	running := c.workers
	c.workers = nil
	c.mu.Unlock()

	if running != nil {
		running.Stop()
	}
	return c.storages.Close()
}
