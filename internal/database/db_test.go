package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenDefaultsToSQLite(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.True(t, db.Migrator().HasTable("users"))
	require.True(t, db.Migrator().HasTable("contacts"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "contactly",
		Password: "secret",
		Name:     "contactly",
		Host:     "db.internal",
		Port:     5433,
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=db.internal")
	require.Contains(t, dsn, "port=5433")
	require.Contains(t, dsn, "sslmode=disable")

	_, err = buildPostgresDSN(Config{Driver: "postgres"})
	require.Error(t, err)
}

func TestBuildSQLiteDSN(t *testing.T) {
	dsn, err := buildSQLiteDSN(Config{})
	require.NoError(t, err)
	require.Contains(t, dsn, ":memory:")
	require.Contains(t, dsn, "_foreign_keys=1")

	dsn, err = buildSQLiteDSN(Config{Path: filepath.Join(t.TempDir(), "contactly.db")})
	require.NoError(t, err)
	require.Contains(t, dsn, "_journal_mode=WAL")
	require.Contains(t, dsn, "_busy_timeout=5000")

	dsn, err = buildSQLiteDSN(Config{DSN: "file:custom.db"})
	require.NoError(t, err)
	require.Equal(t, "file:custom.db", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User: "contactly",
		Name: "contactly",
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "contactly@tcp(127.0.0.1:3306)/contactly")
	require.Contains(t, dsn, "parseTime=True")
}
