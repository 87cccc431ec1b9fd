package cache

import (
	"database/sql"
	"io"
	"net"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	_ "github.com/lib/pq" // Register the driver used to probe the server.
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

// startTestPostgres runs an embedded postgres server on a free local port
// until the test ends and returns the config to reach it.
func startTestPostgres(t *testing.T) *PostgresConfig {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	cfg := &PostgresConfig{
		Host:     "127.0.0.1",
		Port:     port,
		User:     "swapwatch",
		Password: "swapwatch",
		DBName:   "swapwatch",
	}

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Version(embeddedpostgres.V15).
			Database(cfg.DBName).
			Username(cfg.User).
			Password(cfg.Password).
			Port(uint32(port)).
			RuntimePath(t.TempDir()).
			Logger(io.Discard),
	)
	require.NoError(t, pg.Start())
	t.Cleanup(func() {
		require.NoError(t, pg.Stop())
	})

	db, err := sql.Open("postgres", cfg.DSN(false))
	require.NoError(t, err)
	defer db.Close()

	require.Eventually(t, func() bool {
		return db.Ping() == nil
	}, 10*time.Second, 100*time.Millisecond)

	return cfg
}

// NewTestPostgresDB returns a postgres backed cache on a fresh embedded
// server.
func NewTestPostgresDB(t *testing.T, clock clock.Clock) *PostgresStore {
	t.Helper()

	store, err := NewPostgresStore(startTestPostgres(t), clock)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}
