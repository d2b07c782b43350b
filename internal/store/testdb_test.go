package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "clade.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
