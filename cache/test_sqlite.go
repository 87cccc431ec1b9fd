//go:build !test_db_postgres
// +build !test_db_postgres

package cache

import (
	"path/filepath"
	"testing"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

var (
	testDBType = "sqlite"
)

// NewTestDB is a helper function that creates an SQLite database for testing.
func NewTestDB(t *testing.T, clock clock.Clock) Store {
	return NewTestSqliteDB(t, clock)
}

// NewTestSqliteDB returns a sqlite backed cache in a temporary directory.
func NewTestSqliteDB(t *testing.T, clock clock.Clock) *SqliteStore {
	t.Helper()

	store, err := NewSqliteStore(&SqliteConfig{
		DatabaseFileName: filepath.Join(t.TempDir(), "cache.db"),
	}, clock)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}
