package service

import "errors"

var (
	// ErrMissingID is returned when an operation needs an entity id and got
	// an empty one.
	ErrMissingID = errors.New("entity id is required")

	// ErrInvalidStoreType is returned when an operation is not available for
	// the type of the store, e.g. Pull on a network store.
	ErrInvalidStoreType = errors.New("operation not supported by store type")

	// ErrInvalidQuery is returned for filters that cannot be evaluated.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrPushFailed is returned by Sync when some queued items failed to
	// push. It is joined with the per-item errors.
	ErrPushFailed = errors.New("push failed")

	// ErrEntityNotFound is returned by FindByID.
	ErrEntityNotFound = errors.New("entity not found")
)
