package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spySyncer counts Sync calls and returns a fixed error.
type spySyncer struct {
	collection string
	calls      atomic.Int64
	err        error
}

func (s *spySyncer) Collection() string { return s.collection }

func (s *spySyncer) Sync(context.Context, models.Query) (models.SyncResult, error) {
	s.calls.Add(1)
	return models.SyncResult{Pulled: s.err == nil}, s.err
}

// ── NewSyncWorker ───────────────────────────────────────────────────────────

func TestNewSyncWorker_DefaultInterval(t *testing.T) {
	w := NewSyncWorker(nil, 0, logger.Nop())
	assert.Equal(t, config.DefaultSyncInterval, w.interval)

	var _ Worker = w
}

// ── Start / Stop ────────────────────────────────────────────────────────────

func TestSyncWorker_Start_SyncsEveryStore(t *testing.T) {
	books := &spySyncer{collection: "books"}
	authors := &spySyncer{collection: "authors"}
	w := NewSyncWorker([]Syncer{books, authors}, 10*time.Millisecond, logger.Nop())

	// 10ms interval: about 5 ticks in 55ms
	w.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	w.Stop()

	assert.GreaterOrEqual(t, books.calls.Load(), int64(3))
	assert.GreaterOrEqual(t, authors.calls.Load(), int64(3))
}

func TestSyncWorker_Stop_StopsGoroutine(t *testing.T) {
	spy := &spySyncer{collection: "books"}
	w := NewSyncWorker([]Syncer{spy}, 10*time.Millisecond, logger.Nop())

	w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	w.Stop()

	callsAfterStop := spy.calls.Load()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, callsAfterStop, spy.calls.Load(), "no syncs after Stop")
}

func TestSyncWorker_Stop_BeforeStart_NoPanic(t *testing.T) {
	w := NewSyncWorker(nil, time.Second, logger.Nop())
	assert.NotPanics(t, w.Stop)
}

func TestSyncWorker_Restart(t *testing.T) {
	spy := &spySyncer{collection: "books"}
	w := NewSyncWorker([]Syncer{spy}, 10*time.Millisecond, logger.Nop())

	w.Start(context.Background())
	w.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	w.Stop()

	assert.Positive(t, spy.calls.Load())
}

func TestSyncWorker_ParentContextCancelled(t *testing.T) {
	spy := &spySyncer{collection: "books"}
	w := NewSyncWorker([]Syncer{spy}, 10*time.Millisecond, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the parent context was cancelled")
	}
}

// ── SyncOnce ────────────────────────────────────────────────────────────────

func TestSyncWorker_SyncOnce_FailureDoesNotStopOthers(t *testing.T) {
	failing := &spySyncer{collection: "books", err: errors.New("offline")}
	healthy := &spySyncer{collection: "authors"}

	var (
		mu   sync.Mutex
		seen = map[string]error{}
	)
	w := NewSyncWorker([]Syncer{failing, healthy}, time.Hour, logger.Nop(),
		WithResultHandler(func(collection string, _ models.SyncResult, err error) {
			mu.Lock()
			defer mu.Unlock()
			seen[collection] = err
		}),
	)

	ok := w.SyncOnce(context.Background())

	assert.Equal(t, 1, ok)
	require.Len(t, seen, 2)
	assert.EqualError(t, seen["books"], "offline")
	assert.NoError(t, seen["authors"])
}

func TestSyncWorker_SyncOnce_CancelledContext(t *testing.T) {
	spy := &spySyncer{collection: "books"}
	w := NewSyncWorker([]Syncer{spy}, time.Hour, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Zero(t, w.SyncOnce(ctx))
	assert.Zero(t, spy.calls.Load())
}

func TestSyncWorker_WithQuery(t *testing.T) {
	q := models.NewQuery().Where(models.Eq("title", models.String("x")))
	w := NewSyncWorker(nil, time.Hour, logger.Nop(), WithQuery(q))
	assert.Equal(t, q, w.query)
}
