package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
	"github.com/spf13/cobra"

	"github.com/pthm/nestql/internal/cli"
)

var (
	runDB      string
	runDriver  string
	runTimeout time.Duration
	runPretty  bool
)

var runCmd = &cobra.Command{
	Use:   "run <query.yaml>",
	Short: "Run a query document and print its JSON",
	Long:  `Compile a query document, run it on PostgreSQL, and print the resulting JSON document.`,
	Example: `  # Run against a database
  nestql run users.yaml --db postgres://localhost/app

  # Use the pgx driver and compact output
  nestql run users.yaml --driver pgx --pretty=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(runDB)
		if err != nil {
			return err
		}
		opts := runOptions{
			driver:  resolveString(runDriver, cfg.Run.Driver),
			timeout: cfg.Run.Timeout,
			pretty:  cfg.Run.Pretty,
		}
		if cmd.Flags().Changed("timeout") {
			opts.timeout = runTimeout
		}
		if cmd.Flags().Changed("pretty") {
			opts.pretty = runPretty
		}
		return runQuery(cmd.Context(), cmd.OutOrStdout(), args[0], dsn, opts)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runDB, "db", "", "database URL")
	f.StringVar(&runDriver, "driver", "", "database/sql driver: postgres or pgx")
	f.DurationVar(&runTimeout, "timeout", 30*time.Second, "query timeout (0 disables)")
	f.BoolVar(&runPretty, "pretty", true, "indent the JSON output")
}

type runOptions struct {
	driver  string
	timeout time.Duration
	pretty  bool
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	return dsn, nil
}

func runQuery(ctx context.Context, w io.Writer, path, dsn string, opts runOptions) error {
	switch opts.driver {
	case "postgres", "pgx":
	default:
		return cli.ConfigError("run.driver", fmt.Errorf("unknown driver %q (want postgres or pgx)", opts.driver))
	}

	q, err := loadQuery(path)
	if err != nil {
		return err
	}
	if _, _, err := q.Build(); err != nil {
		return cli.QueryParseError("compiling "+path, err)
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	db, err := sql.Open(opts.driver, dsn)
	if err != nil {
		return cli.DBConnectError("opening database", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	logger.Debug("connected", "driver", opts.driver)

	start := time.Now()
	raw, err := q.FetchJSON(ctx, db)
	if err != nil {
		return cli.QueryError("running "+path, err)
	}
	logger.Info("query finished", "bytes", len(raw), "elapsed", time.Since(start))

	if opts.pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			raw = buf.Bytes()
		}
	}
	if _, err := fmt.Fprintf(w, "%s\n", raw); err != nil {
		return cli.GeneralError("writing output", err)
	}
	return nil
}
