package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/nestql"
	"github.com/pthm/nestql/internal/cli"
	"github.com/pthm/nestql/internal/querydoc"
)

var (
	compileParams bool
	compileFormat string
)

var compileCmd = &cobra.Command{
	Use:   "compile <query.yaml>",
	Short: "Print the SQL for a query document",
	Long:  `Compile a query document and print the statement and its positional parameters.`,
	Example: `  # Print SQL with parameters as trailing comments
  nestql compile users.yaml

  # SQL and parameters as a JSON object
  nestql compile users.yaml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := compileOptions{
			params: cfg.Compile.Params,
			format: resolveString(compileFormat, cfg.Compile.Format),
		}
		if cmd.Flags().Changed("params") {
			opts.params = compileParams
		}
		return runCompile(cmd.OutOrStdout(), args[0], opts)
	},
}

func init() {
	f := compileCmd.Flags()
	f.BoolVar(&compileParams, "params", true, "print parameters after the statement")
	f.StringVar(&compileFormat, "format", "", "output format: sql or json")
}

type compileOptions struct {
	params bool
	format string
}

// loadQuery parses a query document into a query logging to the CLI logger.
func loadQuery(path string) (*nestql.Query, error) {
	doc, err := querydoc.Load(path)
	if err != nil {
		return nil, cli.QueryParseError("loading query", err)
	}
	q, err := doc.Query()
	if err != nil {
		return nil, cli.QueryParseError(path, err)
	}
	return q.Options(nestql.WithLogger(logger)), nil
}

func runCompile(w io.Writer, path string, opts compileOptions) error {
	q, err := loadQuery(path)
	if err != nil {
		return err
	}
	query, params, err := q.Build()
	if err != nil {
		return cli.QueryParseError("compiling "+path, err)
	}

	switch opts.format {
	case "sql":
		fmt.Fprintln(w, query)
		if opts.params && len(params) > 0 {
			st := newStyles(w)
			for i, p := range params {
				fmt.Fprintf(w, "%s %s\n", st.comment.Render(fmt.Sprintf("-- $%d =", i+1)), st.value.Render(literal(p)))
			}
		}
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		out := struct {
			SQL    string `json:"sql"`
			Params []any  `json:"params,omitempty"`
		}{SQL: query}
		if opts.params {
			out.Params = params
		}
		if err := enc.Encode(out); err != nil {
			return cli.GeneralError("writing output", err)
		}
	default:
		return cli.ConfigError("compile.format", fmt.Errorf("unknown format %q (want sql or json)", opts.format))
	}
	return nil
}

// literal renders a parameter the way it would read inline in SQL.
func literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	default:
		return fmt.Sprint(t)
	}
}
