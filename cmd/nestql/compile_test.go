package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/nestql/internal/cli"
)

const usersQuery = `
roots:
  - table: users
    fields: [id, name]
    where:
      - {field: name, op: "=", value: "O'Brien"}
      - {field: age, op: ">", value: 30}
`

func queryFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCompile_SQL(t *testing.T) {
	var out bytes.Buffer
	err := runCompile(&out, queryFile(t, usersQuery), compileOptions{params: true, format: "sql"})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "WITH root_users AS (")
	assert.Contains(t, out.String(), "WHERE t1.name = $1::text AND t1.age > $2::int")
	assert.Contains(t, out.String(), "-- $1 = 'O''Brien'\n-- $2 = 30\n")
}

func TestRunCompile_WithoutParams(t *testing.T) {
	var out bytes.Buffer
	err := runCompile(&out, queryFile(t, usersQuery), compileOptions{format: "sql"})
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "-- $1")
}

func TestRunCompile_JSON(t *testing.T) {
	var out bytes.Buffer
	err := runCompile(&out, queryFile(t, usersQuery), compileOptions{params: true, format: "json"})
	require.NoError(t, err)

	var got struct {
		SQL    string `json:"sql"`
		Params []any  `json:"params"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Contains(t, got.SQL, "FROM users AS t1")
	assert.Equal(t, []any{"O'Brien", float64(30)}, got.Params)
}

func TestRunCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		format string
		code   int
	}{
		{"unparseable document", "roots: [", "sql", cli.ExitQueryParse},
		{"invalid relation", "roots:\n  - table: users\n    fields: [id, id]\n", "sql", cli.ExitQueryParse},
		{"unknown format", usersQuery, "xml", cli.ExitConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runCompile(&bytes.Buffer{}, queryFile(t, tt.query), compileOptions{format: tt.format})
			require.Error(t, err)
			assert.Equal(t, tt.code, cli.ExitCode(err))
		})
	}

	err := runCompile(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.yaml"), compileOptions{format: "sql"})
	assert.Equal(t, cli.ExitQueryParse, cli.ExitCode(err))
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "NULL", literal(nil))
	assert.Equal(t, "'it''s'", literal("it's"))
	assert.Equal(t, "true", literal(true))
	assert.Equal(t, "1.5", literal(1.5))
}

func TestRunQuery_Errors(t *testing.T) {
	path := queryFile(t, usersQuery)
	ctx := context.Background()

	t.Run("unknown driver", func(t *testing.T) {
		err := runQuery(ctx, &bytes.Buffer{}, path, "postgres://x", runOptions{driver: "mysql"})
		assert.Equal(t, cli.ExitConfig, cli.ExitCode(err))
	})

	t.Run("compile error before connecting", func(t *testing.T) {
		bad := queryFile(t, "roots:\n  - table: users\n    where: [{field: a, op: '~', value: 1}]\n")
		err := runQuery(ctx, &bytes.Buffer{}, bad, "postgres://x", runOptions{driver: "postgres"})
		assert.Equal(t, cli.ExitQueryParse, cli.ExitCode(err))
	})

	for _, driver := range []string{"postgres", "pgx"} {
		t.Run("unreachable database "+driver, func(t *testing.T) {
			dsn := "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"
			err := runQuery(ctx, &bytes.Buffer{}, path, dsn, runOptions{driver: driver, timeout: 5 * time.Second})
			assert.Equal(t, cli.ExitDBConnect, cli.ExitCode(err))
		})
	}
}
