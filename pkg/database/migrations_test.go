package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"sqlite/002_second.sql": {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"sqlite/001_first.sql":  {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"sqlite/README.md":      {Data: []byte("not a migration")},
	}

	migrations, err := LoadMigrations(fsys, "sqlite")
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, 2, migrations[1].Version)

	t.Run("rejects duplicate versions", func(t *testing.T) {
		dup := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("SELECT 1;")},
			"m/001_b.sql": {Data: []byte("SELECT 1;")},
		}
		_, err := LoadMigrations(dup, "m")
		assert.Error(t, err)
	})

	t.Run("rejects unnumbered files", func(t *testing.T) {
		bad := fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1;")}}
		_, err := LoadMigrations(bad, "m")
		assert.Error(t, err)
	})
}

func TestMigrator_SQLite(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "migrate.db")}, logger)
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"sqlite/001_first.sql":  {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
		"sqlite/002_second.sql": {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY); INSERT INTO b (id) VALUES (1);")},
	}

	migrator := NewMigrator(NewSQLiteTarget(db), logger)
	ctx := context.Background()

	applied, err := migrator.RunMigrations(ctx, fsys, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = migrator.RunMigrations(ctx, fsys, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM b").Scan(&count))
	assert.Equal(t, 1, count)

	t.Run("failed migration is rolled back", func(t *testing.T) {
		broken := fstest.MapFS{
			"sqlite/001_first.sql":  fsys["sqlite/001_first.sql"],
			"sqlite/002_second.sql": fsys["sqlite/002_second.sql"],
			"sqlite/003_broken.sql": {Data: []byte("CREATE TABLE c (id INTEGER); INSERT INTO missing VALUES (1);")},
		}
		_, err := migrator.RunMigrations(ctx, broken, "sqlite")
		require.Error(t, err)

		var name string
		err = db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'c'").Scan(&name)
		assert.Error(t, err)
	})
}
