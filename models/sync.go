package models

import (
	"errors"
	"fmt"
	"time"
)

// OperationKind is the kind of a queued local mutation.
type OperationKind string

const (
	OperationCreate OperationKind = "create"
	OperationUpdate OperationKind = "update"
	OperationDelete OperationKind = "delete"
)

// PendingOperation is a local mutation that has not been pushed yet. There
// is at most one per (Collection, EntityID).
type PendingOperation struct {
	// Collection the entity belongs to.
	Collection string `json:"collection"`
	// EntityID is the id of the mutated entity; a temporary id for creates.
	EntityID string `json:"entity_id"`
	// Kind is the network call the operation will turn into.
	Kind OperationKind `json:"kind"`
	// Payload is the entity to send for creates and updates; nil for deletes.
	Payload *Entity `json:"payload,omitempty"`
	// Seq orders the queue and changes on every collapse of the entry.
	Seq string `json:"seq"`
	// UpdatedAt is the time of the last local mutation folded into the entry.
	UpdatedAt time.Time `json:"updated_at"`
}

// PushError describes one queued operation that failed to push.
type PushError struct {
	Collection string
	EntityID   string
	Kind       OperationKind
	Err        error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push %s %s/%s: %v", e.Kind, e.Collection, e.EntityID, e.Err)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

// PushResult aggregates the outcome of draining the pending queue.
type PushResult struct {
	// SuccessCount is the number of operations acknowledged by the backend.
	SuccessCount int
	// Errors holds one entry per operation that stayed queued.
	Errors []*PushError
}

// Err joins the per-item errors, or returns nil when every item succeeded.
func (r PushResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// SyncResult is the outcome of a push followed by a pull.
type SyncResult struct {
	// Push is the outcome of the push leg.
	Push PushResult
	// PendingCount is the queue backlog after the sync.
	PendingCount int
	// Entities is the reconciled result set of the pull leg; nil when the pull
	// did not run.
	Entities []Entity
	// Pulled reports whether the pull leg ran.
	Pulled bool
}

// FetchResult is one page of a full fetch.
type FetchResult struct {
	Entities []Entity
	// Since is the server-provided marker to use for the next delta fetch.
	Since string
}

// DeltaResult is the answer to a delta fetch.
type DeltaResult struct {
	Changed []Entity
	Deleted []string
	Since   string
}

// DeltaState is the since marker remembered for one query scope.
type DeltaState struct {
	Collection string
	Signature  string
	Since      string
	UpdatedAt  time.Time
}

// ReadPolicy selects where a read is served from.
type ReadPolicy int

const (
	// ReadLocalFirst serves reads from the cache without any network call.
	ReadLocalFirst ReadPolicy = iota
	// ForceLocal serves reads from the cache only, TTL-filtered.
	ForceLocal
	// ForceNetwork reconciles with the backend and returns the reconciled set.
	ForceNetwork
)

func (p ReadPolicy) String() string {
	switch p {
	case ForceLocal:
		return "force-local"
	case ForceNetwork:
		return "force-network"
	default:
		return "local-first"
	}
}

// StoreType selects how a collection handle is backed.
type StoreType int

const (
	// StoreTypeSync keeps a local cache and a pending queue.
	StoreTypeSync StoreType = iota
	// StoreTypeNetwork passes every call through to the backend.
	StoreTypeNetwork
)

func (t StoreType) String() string {
	if t == StoreTypeNetwork {
		return "network"
	}
	return "sync"
}
