package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pthm/nestql/internal/cli"
	"github.com/pthm/nestql/internal/doctor"
	"github.com/pthm/nestql/internal/querydoc"
)

var (
	doctorDB     string
	doctorDriver string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor <query.yaml>",
	Short: "Check a query document against a database",
	Long: `Check that a query document compiles and that every table, column and
join key it reads exists in the database. Join keys without an index are
reported as warnings.`,
	Example: `  # Check a query document
  nestql doctor users.yaml --db postgres://localhost/app

  # Show the compiled SQL and other details
  nestql doctor users.yaml -v`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(doctorDB)
		if err != nil {
			return err
		}
		driver := resolveString(doctorDriver, cfg.Run.Driver)
		return runDoctor(cmd.Context(), cmd.OutOrStdout(), args[0], dsn, driver, verbose > 0)
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.StringVar(&doctorDriver, "driver", "", "database/sql driver: postgres or pgx")
}

func runDoctor(ctx context.Context, w io.Writer, path, dsn, driver string, details bool) error {
	doc, err := querydoc.Load(path)
	if err != nil {
		return cli.QueryParseError("loading query", err)
	}
	roots, err := doc.Relations()
	if err != nil {
		return cli.QueryParseError(path, err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return cli.DBConnectError("opening database", err)
	}
	defer func() { _ = db.Close() }()

	if !quiet {
		_, _ = fmt.Fprintln(w, newStyles(w).comment.Render("nestql doctor - "+path))
	}

	report, err := doctor.New(db, roots).Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}
	report.Print(w, details)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}
	return nil
}
