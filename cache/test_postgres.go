//go:build test_db_postgres
// +build test_db_postgres

package cache

import (
	"testing"

	"github.com/lightningnetwork/lnd/clock"
)

var (
	testDBType = "postgres"
)

// NewTestDB is a helper function that creates a Postgres database for
// testing.
func NewTestDB(t *testing.T, clock clock.Clock) Store {
	return NewTestPostgresDB(t, clock)
}
