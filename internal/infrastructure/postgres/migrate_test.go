package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql":     {Data: []byte("SELECT 2")},
		"001_a.sql":     {Data: []byte("SELECT 1")},
		"README.md":     {Data: []byte("docs")},
		"sub/003_c.sql": {Data: []byte("SELECT 3")},
	}
	files, err := MigrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, files)
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := MigrationFiles(MigrationSource(""))
	require.NoError(t, err)
	assert.Contains(t, files, "001_executions.sql")
}
