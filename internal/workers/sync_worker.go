// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

// ResultHandler receives the outcome of every store sync run by a
// SyncWorker.
type ResultHandler func(collection string, res models.SyncResult, err error)

// SyncWorker calls Sync on each of its stores on a ticker.
type SyncWorker struct {
	stores   []Syncer
	query    models.Query
	interval time.Duration
	onResult ResultHandler

	logger *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SyncWorkerOption configures a SyncWorker.
type SyncWorkerOption func(*SyncWorker)

// WithResultHandler registers fn to be called after each store sync.
func WithResultHandler(fn ResultHandler) SyncWorkerOption {
	return func(w *SyncWorker) {
		w.onResult = fn
	}
}

// WithQuery narrows the pull leg of every sync to q.
func WithQuery(q models.Query) SyncWorkerOption {
	return func(w *SyncWorker) {
		w.query = q
	}
}

// NewSyncWorker creates a SyncWorker over stores. The worker is idle until
// Start is called. If interval is zero or negative it defaults to
// [config.DefaultSyncInterval].
func NewSyncWorker(stores []Syncer, interval time.Duration, logger *logger.Logger, opts ...SyncWorkerOption) *SyncWorker {
	if interval <= 0 {
		interval = config.DefaultSyncInterval
	}

	w := &SyncWorker{
		stores:   stores,
		query:    models.NewQuery(),
		interval: interval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start implements [Worker]. It stops any previously running loop, then
// launches a background goroutine that syncs every store each interval.
func (w *SyncWorker) Start(ctx context.Context) {
	w.Stop()

	w.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		t := time.NewTicker(w.interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				w.SyncOnce(jobCtx)
			}
		}
	}()
}

// Stop implements [Worker]. It cancels the loop and blocks until an
// in-flight sync has returned.
func (w *SyncWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

// SyncOnce syncs every store once, in order. A failing store does not
// prevent the others from syncing. It returns the number of stores that
// synced without error.
func (w *SyncWorker) SyncOnce(ctx context.Context) int {
	var ok int
	for _, s := range w.stores {
		if ctx.Err() != nil {
			return ok
		}

		res, err := s.Sync(ctx, w.query)
		if err != nil {
			w.logger.Err(err).
				Str("func", "SyncWorker.SyncOnce").
				Str("collection", s.Collection()).
				Int("pushed", res.Push.SuccessCount).
				Int("pending", res.PendingCount).
				Msg("sync failed")
		} else {
			ok++
			w.logger.Debug().
				Str("collection", s.Collection()).
				Int("pushed", res.Push.SuccessCount).
				Int("pulled", len(res.Entities)).
				Msg("sync finished")
		}

		if w.onResult != nil {
			w.onResult(s.Collection(), res, err)
		}
	}
	return ok
}
