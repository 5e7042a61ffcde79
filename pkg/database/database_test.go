package database

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":  {Data: []byte("CREATE TABLE later (id INTEGER);")},
		"002_second.sql": {Data: []byte("CREATE TABLE second (id INTEGER);")},
		"README.md":      {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, "second", migrations[0].Name)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestLoadMigrations_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{name: "duplicate version", fsys: fstest.MapFS{
			"001_a.sql": {Data: []byte("SELECT 1;")},
			"001_b.sql": {Data: []byte("SELECT 1;")},
		}},
		{name: "unnumbered file", fsys: fstest.MapFS{
			"users.sql": {Data: []byte("SELECT 1;")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"001_items.sql": {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT);")},
		"002_seed.sql":  {Data: []byte("INSERT INTO items (name) VALUES ('first');")},
	}

	migrator := NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations(fsys))
	require.NoError(t, migrator.RunMigrations(fsys))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&count))
	assert.Equal(t, 1, count, "seed migration must run once")

	applied, err := migrator.AppliedVersions()
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true}, applied)
}

func TestRunMigrations_FailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"001_ok.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE broken (id INTEGER); INSERT INTO missing VALUES (1);")},
	}

	migrator := NewMigrator(db, zap.NewNop())
	assert.Error(t, migrator.RunMigrations(fsys))

	applied, err := migrator.AppliedVersions()
	require.NoError(t, err)
	assert.True(t, applied[1])
	assert.False(t, applied[2])
}

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "default busy timeout",
			cfg:  Config{Path: "data/invoices.db"},
			want: "file:data/invoices.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate",
		},
		{
			name: "custom busy timeout",
			cfg:  Config{Path: "x.db", BusyTimeout: 250 * time.Millisecond},
			want: "file:x.db?_busy_timeout=250&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

func TestNew_CreatesDirectoryAndEnforcesForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "app.db")
	db, err := New(Config{Path: path}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE parent (id INTEGER PRIMARY KEY);
		CREATE TABLE child (parent_id INTEGER NOT NULL REFERENCES parent(id));`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO child (parent_id) VALUES (42)`)
	assert.Error(t, err, "orphan row must violate the foreign key")

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}
