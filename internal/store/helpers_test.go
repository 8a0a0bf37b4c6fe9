package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"path/filepath"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	l := zerolog.Nop()
	return l.WithContext(context.Background())
}

// newTestStorages opens a migrated SQLite file in a temp dir.
func newTestStorages(t *testing.T) *Storages {
	t.Helper()
	cfg := config.Storage{DB: config.DB{DSN: filepath.Join(t.TempDir(), "cache.db")}}

	s, err := NewStorages(testContext(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newDBFromSQL(db), mock
}

// newDBFromSQL builds a DB from an existing *sql.DB (for tests).
func newDBFromSQL(db *sql.DB) *DB {
	return &DB{
		DB:                 db,
		errorClassificator: NewSQLiteErrorClassifier(),
		logger:             logger.Nop(),
	}
}

func book(id, title string, refs ...models.Reference) models.Entity {
	e := models.Entity{ID: id, Fields: map[string]models.Value{"title": models.String(title)}}
	if len(refs) == 1 {
		e.Fields["author"] = models.Ref(refs[0])
	} else if len(refs) > 1 {
		items := make([]models.Value, 0, len(refs))
		for _, r := range refs {
			items = append(items, models.Ref(r))
		}
		e.Fields["authors"] = models.Array(items...)
	}
	return e
}

func author(id, name string) models.Reference {
	return models.Reference{
		Collection: "authors",
		ID:         id,
		Fields:     map[string]models.Value{"name": models.String(name)},
	}
}

func entityIDs(items []models.Entity) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func sqlmockResult(affected int64) driver.Result {
	return sqlmock.NewResult(0, affected)
}
