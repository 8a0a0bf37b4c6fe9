// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides transport-layer abstractions for communicating with
// the remote collection store.
//
// The primary abstraction is [Transport], which decouples the sync engine
// from the underlying protocol. The package ships an HTTP/REST implementation
// ([NewHTTPTransport]) and a resumable file transfer client
// ([NewHTTPFileTransfer]).
//
// Error values defined in errors.go are mapped from HTTP status codes and
// error bodies by mapHTTPError so that callers can use [errors.Is] for
// transport-agnostic error handling (e.g. [ErrNotFound] for 404,
// [ErrParameterValueOutOfRange] for an expired delta-set marker).
package adapter

import (
	"context"
	"io"

	"github.com/MKhiriev/go-sync-store/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/transport_mock.go -package=mock

// Transport defines transport-agnostic communication with the remote
// collection store. Implementations are responsible for serialisation,
// authentication headers, and mapping transport-level errors to the sentinel
// values defined in this package.
type Transport interface {
	// CreateEntity sends a new entity. A temporary id is not sent; the
	// returned entity carries the id assigned by the server.
	CreateEntity(ctx context.Context, collection string, entity models.Entity) (models.Entity, error)

	// UpdateEntity replaces the entity stored under entity.ID and returns
	// the server copy.
	UpdateEntity(ctx context.Context, collection string, entity models.Entity) (models.Entity, error)

	// DeleteEntity deletes one entity. A missing entity is reported as
	// [ErrNotFound].
	DeleteEntity(ctx context.Context, collection, id string) error

	// FetchCollection returns one window of the entities matching q. Skip
	// and limit override the paging of q; zero limit is unlimited. The
	// result carries the server time marker for a later delta fetch.
	FetchCollection(ctx context.Context, collection string, q models.Query, skip, limit int) (models.FetchResult, error)

	// FetchDelta returns what changed in the scope of q since the marker.
	FetchDelta(ctx context.Context, collection string, q models.Query, since string) (models.DeltaResult, error)

	// CountCollection returns the number of entities matching the filter
	// of q.
	CountCollection(ctx context.Context, collection string, q models.Query) (int, error)
}

// FileTransfer moves file contents to and from the file store. Transfers are
// resumable: a failed upload returns metadata whose ResumeToken and Offset
// can be passed back to continue, and downloads continue from Offset.
type FileTransfer interface {
	Upload(ctx context.Context, meta models.FileMetadata, r io.Reader, progress models.Progress) (models.FileMetadata, error)
	Download(ctx context.Context, meta models.FileMetadata, w io.Writer, progress models.Progress) (models.FileMetadata, error)
}
