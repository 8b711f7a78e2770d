package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_add_index.sql": {Data: []byte("CREATE INDEX x ON y (z);")},
		"migrations/002_events.sql":    {Data: []byte("CREATE TABLE e ();")},
		"migrations/001_init.sql":      {Data: []byte("CREATE TABLE i ();")},
		"migrations/README.md":         {Data: []byte("notes")},
		"migrations/draft.sql":         {Data: []byte("-- no version")},
		"migrations/abc_bad.sql":       {Data: []byte("-- bad version")},
	}

	got, err := loadMigrations(fsys)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{got[0].version, got[1].version, got[2].version})
	assert.Equal(t, "002_events.sql", got[1].name)
	assert.Equal(t, "CREATE TABLE i ();", got[0].sql)
}

func TestLoadMigrations_Embedded(t *testing.T) {
	got, err := loadMigrations(migrationFiles)
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, 1, got[0].version)
	assert.Contains(t, got[0].sql, "CREATE TABLE")
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{})
	assert.Error(t, err)
}
