package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesSortedSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_leads.sql":  {Data: []byte("SELECT 1")},
		"migrations/001_schema.sql": {Data: []byte("SELECT 1")},
		"migrations/README.md":      {Data: []byte("notes")},
		"migrations/old/003.sql":    {Data: []byte("SELECT 1")},
	}

	names, err := migrationNames(fsys, "migrations")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_schema.sql", "002_leads.sql"}, names)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := migrationNames(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])
}
