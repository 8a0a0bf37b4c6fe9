package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/MKhiriev/go-sync-store/models"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_InTx_RollbackOnError(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()

	err := s.DB.InTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Records.Upsert(ctx, "books", book("b1", "A")))
		require.NoError(t, s.Pending.Put(ctx, pendingOp("b1", "01", models.OperationCreate)))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = s.Records.Get(ctx, "books", "b1")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = s.Pending.Get(ctx, "books", "b1")
	assert.ErrorIs(t, err, ErrPendingOperationNotFound)
}

func TestDB_InTx_CommitVisibleAfterwards(t *testing.T) {
	s := newTestStorages(t)
	ctx := testContext()

	err := s.DB.InTx(ctx, func(ctx context.Context) error {
		// nested InTx joins the outer transaction
		return s.DB.InTx(ctx, func(ctx context.Context) error {
			return s.Records.Upsert(ctx, "books", book("b1", "A"))
		})
	})
	require.NoError(t, err)

	_, err = s.Records.Get(ctx, "books", "b1")
	assert.NoError(t, err)
}

func TestDB_InTx_RetriesBusy(t *testing.T) {
	db, mock := newMockDB(t)

	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	mock.ExpectBegin().WillReturnError(busy)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM delta_states")).
		WillReturnResult(sqlmockResult(1))
	mock.ExpectCommit()

	err := db.InTx(testContext(), func(ctx context.Context) error {
		return NewDeltaStateRepository(db, nil).DeleteCollection(ctx, "books")
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_InTx_DoesNotRetryNonRetryable(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin().WillReturnError(errors.New("boom"))

	calls := 0
	err := db.InTx(testContext(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrBeginningTransaction)
	assert.Zero(t, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_InTx_CommitError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	err := db.InTx(testContext(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCommitingTransaction)
}

func TestSQLiteErrorClassifier(t *testing.T) {
	c := NewSQLiteErrorClassifier()

	assert.Equal(t, NonRetryable, c.Classify(nil))
	assert.Equal(t, NonRetryable, c.Classify(errors.New("plain")))
	assert.Equal(t, Retryable, c.Classify(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.Equal(t, Retryable, c.Classify(sqlite3.Error{Code: sqlite3.ErrLocked}))
	assert.Equal(t, NonRetryable, c.Classify(sqlite3.Error{Code: sqlite3.ErrConstraint}))

	wrapped := errors.Join(ErrBeginningTransaction, sqlite3.Error{Code: sqlite3.ErrBusy})
	assert.Equal(t, Retryable, c.Classify(wrapped))
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "cache.db?_busy_timeout=5000", sqliteDSN("cache.db"))
	assert.Equal(t, "file:cache.db?mode=rwc&_busy_timeout=5000", sqliteDSN("file:cache.db?mode=rwc"))
	assert.Equal(t, "cache.db?_busy_timeout=10", sqliteDSN("cache.db?_busy_timeout=10"))
}
