package adapter

import "errors"

// HTTP status errors. mapHTTPError wraps them with the response body.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInternalServerError = errors.New("internal server error")
	ErrBadGateway          = errors.New("bad gateway")
	ErrServiceUnavailable  = errors.New("service unavailable")
)

// Errors raised before any response was received.
var (
	// ErrTimeout means the request did not complete within its deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrConnectivity means the backend could not be reached.
	ErrConnectivity = errors.New("backend unreachable")
	// ErrTransferIncomplete means the file store acknowledged only part of
	// an upload. The returned metadata can be used to resume.
	ErrTransferIncomplete = errors.New("transfer incomplete")
)

// Server-semantic errors carried in the "error" field of the response body.
var (
	// ErrResultSetSizeExceeded means the query matched more entities than
	// the backend returns in one response.
	ErrResultSetSizeExceeded = errors.New("result set size exceeded")
	// ErrMissingConfiguration means delta sets are not enabled for the
	// collection.
	ErrMissingConfiguration = errors.New("missing configuration")
	// ErrParameterValueOutOfRange means the delta-set marker is too old.
	ErrParameterValueOutOfRange = errors.New("parameter value out of range")
)
