package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	_, err = sqlDB.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL)")
	require.NoError(t, err)
	return NewDB(sqlDB, zap.NewNop())
}

func countNotes(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&n))
	return n
}

func insertNote(ctx context.Context, db *DB, body string) error {
	_, err := ExecutorFor(ctx, db.DB).ExecContext(ctx, "INSERT INTO notes (body) VALUES (?)", body)
	return err
}

func TestWithTransaction_Commit(t *testing.T) {
	db := setupDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, TxFromContext(ctx))
		return insertNote(ctx, db, "a")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countNotes(t, db))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := setupDB(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		require.NoError(t, insertNote(ctx, db, "a"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countNotes(t, db))
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db := setupDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		outer := TxFromContext(ctx)
		if err := db.WithTransaction(ctx, func(inner context.Context) error {
			assert.Same(t, outer, TxFromContext(inner))
			return insertNote(inner, db, "inner")
		}); err != nil {
			return err
		}
		return errors.New("outer fails")
	})
	assert.Error(t, err)
	assert.Equal(t, 0, countNotes(t, db), "inner write rolls back with the outer transaction")
}

func TestWithTransaction_PanicRollsBack(t *testing.T) {
	db := setupDB(t)

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context) error {
			_ = insertNote(ctx, db, "a")
			panic("kaboom")
		})
	})
	assert.Equal(t, 0, countNotes(t, db))
}

func TestExecutorFor_WithoutTransaction(t *testing.T) {
	db := setupDB(t)

	assert.Nil(t, TxFromContext(context.Background()))
	assert.Equal(t, Executor(db.DB), ExecutorFor(context.Background(), db.DB))
}
