package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrRecordNotFound is returned when no cached row exists for the
	// requested (collection, id) pair.
	ErrRecordNotFound = errors.New("record was not found")

	// ErrPendingOperationNotFound is returned when the queue holds no entry
	// for the requested (collection, entity id) pair.
	ErrPendingOperationNotFound = errors.New("pending operation was not found")

	// ErrDeltaStateNotFound is returned when no since marker has been stored
	// for the requested query scope yet.
	ErrDeltaStateNotFound = errors.New("delta state was not found")

	// ErrEncodingRecord is returned when an entity or payload cannot be
	// serialized into its JSON column.
	ErrEncodingRecord = errors.New("failed to encode record")

	// ErrDecodingRecord is returned when a stored JSON column cannot be
	// decoded back into an entity.
	ErrDecodingRecord = errors.New("failed to decode record")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails (e.g. invalid argument count or unsupported type).
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT or similar
	// read-only query against the database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when executing a DML statement
	// (INSERT, UPDATE, DELETE) fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRow is returned when scanning column values from a single
	// result row fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when iterating a multi-row result fails,
	// typically mid-result-set.
	ErrScanningRows = errors.New("failed to scan rows")
)
