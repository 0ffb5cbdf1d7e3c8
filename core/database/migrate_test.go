package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMigrationFilesSortsUpOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644))
	}

	files := listMigrationFiles(dir)
	assert.Equal(t, []string{"000001_a.up.sql", "000002_b.up.sql"}, files)
	assert.Equal(t, 2, countApplied(files, 0, 2))
	assert.Equal(t, 1, countApplied(files, 1, 2))
	assert.Equal(t, 0, countApplied(files, 2, 2))
}

func TestConfigURLs(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss", Name: "sushef"}

	assert.Equal(t, "postgres://bot:p%40ss@db:5432/sushef?sslmode=disable", cfg.URL())
	assert.Equal(t, "user=bot password=p@ss host=db port=5432 dbname=sushef sslmode=disable", cfg.KeywordDSN())
}

func TestMigrationsDirResolvesRelative(t *testing.T) {
	dir, err := migrationsDir(Config{MigrationsDir: "/srv/migrations"})
	require.NoError(t, err)
	assert.Equal(t, "/srv/migrations", dir)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	dir, err = migrationsDir(Config{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "migrations"), dir)
}
