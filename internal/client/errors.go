package client

import "errors"

var (
	// ErrClosed is returned by every call made after Close.
	ErrClosed = errors.New("client is closed")

	// ErrStoreTypeMismatch is returned when a collection is opened again
	// with a different store type.
	ErrStoreTypeMismatch = errors.New("collection already opened with another store type")

	// ErrNoSyncStore is returned by StartSync when no sync store is open.
	ErrNoSyncStore = errors.New("no sync store is open")
)
