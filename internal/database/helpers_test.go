package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestDB opens a migrated database in a temporary directory
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(NewDefaultOptions(dbPath))
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { db.Close() })

	err = db.MigrateDatabase()
	require.NoError(t, err, "Failed to run migrations")

	return db
}
