//go:build integration

// Package integration runs the report pipeline against a real PostgreSQL
// started with testcontainers.
package integration

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/posreports/backend/internal/infrastructure/config"
	"github.com/posreports/backend/internal/infrastructure/migration"
	"github.com/posreports/backend/internal/infrastructure/persistence"
)

const (
	testDBName   = "pos_reports_test"
	testUser     = "postgres"
	testPassword = "postgres"
)

// TestDB is a migrated PostgreSQL database in its own container
type TestDB struct {
	*persistence.Conn
	Config    config.DatabaseConfig
	Container testcontainers.Container
	t         *testing.T
}

// NewTestDB starts a fresh container and applies the report migrations
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase(testDBName),
		tcpostgres.WithUsername(testUser),
		tcpostgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Driver:       config.DriverPostgres,
		Host:         host,
		Port:         port.Int(),
		User:         testUser,
		Password:     testPassword,
		DBName:       testDBName,
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	db, err := persistence.Open(&cfg)
	require.NoError(t, err, "Failed to connect to PostgreSQL")
	t.Cleanup(func() { _ = db.Close() })

	tdb := &TestDB{Conn: db, Config: cfg, Container: container, t: t}
	tdb.Migrate()
	return tdb
}

// Migrate applies every pending migration
func (tdb *TestDB) Migrate() {
	tdb.t.Helper()
	m := tdb.Migrator()
	defer m.Close()
	require.NoError(tdb.t, m.Up(), "Failed to run migrations")
}

// Migrator opens a migrator on its own connection; the caller closes it
func (tdb *TestDB) Migrator() *migration.Migrator {
	tdb.t.Helper()
	m, err := migration.NewFromURL(tdb.Config.DSN(), zaptest.NewLogger(tdb.t), migration.FromDir(migrationsPath(tdb.t)))
	require.NoError(tdb.t, err)
	return m
}

// Exec runs statements in order and fails the test on the first error
func (tdb *TestDB) Exec(stmts ...string) {
	tdb.t.Helper()
	for _, stmt := range stmts {
		require.NoError(tdb.t, tdb.DB.Exec(stmt).Error, stmt)
	}
}

func migrationsPath(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "Failed to locate test source")
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}
