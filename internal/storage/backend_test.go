package storage_test

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	appconfig "github.com/kindred-labs/genealogy-enrich/internal/config"
	"github.com/kindred-labs/genealogy-enrich/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func parsePostgresDSN(t *testing.T, dsn string) (host string, port int, user, password, name string) {
	t.Helper()

	u, err := url.Parse(dsn)
	require.NoError(t, err)

	host = u.Hostname()
	port, err = strconv.Atoi(u.Port())
	require.NoError(t, err)

	user = u.User.Username()
	password, _ = u.User.Password()
	name = strings.TrimPrefix(u.Path, "/")

	return host, port, user, password, name
}

func TestRebindSQLitePassesThrough(t *testing.T) {
	cfg := storage.FromAppConfig(appconfig.Database{
		Type:       storage.TypeEmbedded,
		SQLitePath: filepath.Join(t.TempDir(), "rebind.db"),
	})

	be, err := storage.Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = be.Close() })

	assert.Equal(t, "SELECT * FROM search_log WHERE person_id = ?", be.Rebind("SELECT * FROM search_log WHERE person_id = ?"))
}

func TestOpenEmbeddedCreatesSchema(t *testing.T) {
	cfg := storage.FromAppConfig(appconfig.Database{
		Type:       storage.TypeEmbedded,
		SQLitePath: filepath.Join(t.TempDir(), "enrich.db"),
	})

	be, err := storage.Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = be.Close() })

	assert.Equal(t, storage.DialectSQLite, be.Dialect())

	for _, table := range []string{"search_log", "staged_findings", "error_log"} {
		row := be.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table)
		var count int
		require.NoError(t, row.Scan(&count))
		assert.Zero(t, count)
	}
}

func TestOpenNetworkedFallsBackWhenUnreachable(t *testing.T) {
	cfg := storage.FromAppConfig(appconfig.Database{
		Type:       storage.TypeNetworked,
		Host:       "127.0.0.1",
		Port:       1, // nothing listens here
		Name:       "genealogy_enrich_test",
		User:       "test",
		Password:   "test",
		SQLitePath: filepath.Join(t.TempDir(), "fallback.db"),
	})

	be, err := storage.Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = be.Close() })

	assert.Equal(t, storage.DialectSQLite, be.Dialect())
}

func TestOpenNetworkedAgainstRealPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := appconfig.SetupTestDatabase(ctx, t)
	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	connStr, err := testDB.Container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	host, port, user, password, name := parsePostgresDSN(t, connStr)

	cfg := storage.FromAppConfig(appconfig.Database{
		Type:     storage.TypeNetworked,
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
	})

	be, err := storage.Open(ctx, cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = be.Close() })

	assert.Equal(t, storage.DialectPostgres, be.Dialect())
	assert.Equal(t, "SELECT $1", be.Rebind("SELECT ?"))
}
