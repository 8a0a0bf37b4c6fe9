// Package workers provides abstractions for managing and running
// background workers in the application.
// It defines the Worker interface, a Workers aggregate that starts and stops
// several workers in a unified way, and the SyncWorker that periodically
// synchronizes collection stores with the backend.
package workers

import (
	"context"

	"github.com/MKhiriev/go-sync-store/models"
)

// Worker is the interface that must be implemented by any background worker.
//
// Start launches the work in the background and returns immediately; the
// work ends when ctx is cancelled or Stop is called. Stop blocks until the
// worker has fully exited and is safe to call on a worker that never
// started.
type Worker interface {
	Start(ctx context.Context)
	Stop()
}

// Syncer is the part of a collection store that the SyncWorker drives.
type Syncer interface {
	Collection() string
	Sync(ctx context.Context, q models.Query) (models.SyncResult, error)
}
