// Package testutil provides a PostgreSQL database with the fixture schema
// for nestql integration tests.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

//go:embed testdata/schema.sql
var schemaSQL string

// Singleton server and template state, shared by every test in the binary.
var (
	serverOnce sync.Once
	serverDSN  string
	serverErr  error

	templateOnce sync.Once
	templateErr  error
)

const templateName = "nestql_template"

// ensureServer returns the admin DSN of the test server: the configured
// database when NESTQL_TEST_DATABASE_URL or DATABASE_URL is set, otherwise
// a PostgreSQL container started on first use.
func ensureServer() (string, error) {
	serverOnce.Do(func() {
		if cfg := GetDatabaseConfig(); cfg.URL != "" {
			serverDSN = cfg.URL
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_INITDB_ARGS": "--auth-host=trust",
			}),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			serverErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			serverErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		// The container is left running; ryuk removes it when the process exits.
		serverDSN = dsn
	})
	return serverDSN, serverErr
}

// ensureTemplate creates the template database holding the fixture schema.
func ensureTemplate(adminDSN string) error {
	templateOnce.Do(func() {
		if err := exec(adminDSN, "DROP DATABASE IF EXISTS "+templateName); err != nil {
			templateErr = fmt.Errorf("drop stale template: %w", err)
			return
		}
		if err := exec(adminDSN, "CREATE DATABASE "+templateName); err != nil {
			templateErr = fmt.Errorf("create template database: %w", err)
			return
		}
		if err := exec(replaceDBName(adminDSN, templateName), schemaSQL); err != nil {
			templateErr = fmt.Errorf("apply fixture schema: %w", err)
			return
		}
		// Non-fatal: copying works without the flag, just slower.
		_ = exec(adminDSN, "ALTER DATABASE "+templateName+" WITH is_template = true")
	})
	return templateErr
}

// DB returns a connection to a fresh database with the fixture schema and
// no rows. Each call gets its own database, dropped when the test ends.
// Integration tests are skipped in -short mode.
func DB(tb testing.TB) *sql.DB {
	tb.Helper()
	db, _ := open(tb, true)
	return db
}

// DSN is DB for callers that open their own connection, for example with
// another driver. The returned database is already created.
func DSN(tb testing.TB) string {
	tb.Helper()
	_, dsn := open(tb, true)
	return dsn
}

// EmptyDB returns a fresh database without the fixture schema.
func EmptyDB(tb testing.TB) *sql.DB {
	tb.Helper()
	db, _ := open(tb, false)
	return db
}

func open(tb testing.TB, withSchema bool) (*sql.DB, string) {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping integration test in short mode")
	}

	adminDSN, err := ensureServer()
	require.NoError(tb, err, "failed to start PostgreSQL")

	name := uniqueDBName("test")
	create := "CREATE DATABASE " + name
	if withSchema {
		require.NoError(tb, ensureTemplate(adminDSN), "failed to create template database")
		create += " WITH TEMPLATE " + templateName
	}
	require.NoError(tb, exec(adminDSN, create), "failed to create test database")

	dsn := replaceDBName(adminDSN, name)
	db, err := sql.Open("pgx", dsn)
	require.NoError(tb, err, "failed to connect to test database")
	require.NoError(tb, db.Ping(), "failed to ping test database")

	tb.Cleanup(func() {
		_ = db.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = dropDatabase(ctx, adminDSN, name)
	})
	return db, dsn
}

func uniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// exec runs statements on a short-lived connection to dsn.
func exec(dsn, statements string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = db.ExecContext(ctx, statements)
	return err
}

func dropDatabase(ctx context.Context, adminDSN, name string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+name+" WITH (FORCE)")
	return err
}

// replaceDBName swaps the database path of a postgres:// URL.
func replaceDBName(dsn, name string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	u.Path = "/" + name
	return u.String()
}

// SchemaSQL returns the fixture schema DDL.
func SchemaSQL() string {
	return schemaSQL
}
