// Package doctor checks a relation tree against a live database.
//
// It reports whether the tree compiles, whether the database is reachable,
// and whether every table, column and guessed foreign key the compiled
// statement reads exists. Join keys without an index are reported as
// warnings.
//
// Example usage:
//
//	d := doctor.New(db, roots)
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/pthm/nestql/internal/sqlgen"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates an issue that will make the query fail.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "query", "tables", "indexes").
	Category string
	Name     string
	Status   Status
	Message  string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report grouped by category, in the order categories
// were first reported.
func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var order []string
	for _, check := range r.Checks {
		if _, ok := categories[check.Category]; !ok {
			order = append(order, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range order {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Doctor checks a relation tree against the database it will run on.
type Doctor struct {
	db    *sql.DB
	roots []*sqlgen.Relation

	// Populated during Run.
	columns map[string]map[string]bool // table -> column set; nil set = missing table
}

// New creates a Doctor for roots.
func New(db *sql.DB, roots []*sqlgen.Relation) *Doctor {
	return &Doctor{db: db, roots: roots}
}

// Run executes all checks and returns a report. Database checks are
// skipped when the tree does not compile or the database is unreachable.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	if !d.checkCompiles(report) {
		return report, nil
	}
	if !d.checkConnection(ctx, report) {
		return report, nil
	}

	refs := sqlgen.References(d.roots)
	if err := d.checkTables(ctx, report, refs); err != nil {
		return nil, fmt.Errorf("checking tables: %w", err)
	}
	d.checkColumns(report, refs)
	if err := d.checkIndexes(ctx, report, refs); err != nil {
		return nil, fmt.Errorf("checking indexes: %w", err)
	}
	return report, nil
}

func (d *Doctor) checkCompiles(report *Report) bool {
	res, err := sqlgen.Compile(d.roots, sqlgen.Options{})
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "query",
			Name:     "compiles",
			Status:   StatusFail,
			Message:  "Query does not compile",
			Details:  err.Error(),
			FixHint:  "fix the query document; run 'nestql compile' for the full error",
		})
		return false
	}
	report.AddCheck(CheckResult{
		Category: "query",
		Name:     "compiles",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Query compiles (%d parameters)", len(res.Params)),
		Details:  res.SQL,
	})
	return true
}

func (d *Doctor) checkConnection(ctx context.Context, report *Report) bool {
	var version string
	if err := d.db.QueryRowContext(ctx, "SHOW server_version").Scan(&version); err != nil {
		report.AddCheck(CheckResult{
			Category: "database",
			Name:     "connection",
			Status:   StatusFail,
			Message:  "Database is not reachable",
			Details:  err.Error(),
			FixHint:  "check database.url or --db",
		})
		return false
	}
	report.AddCheck(CheckResult{
		Category: "database",
		Name:     "connection",
		Status:   StatusPass,
		Message:  "Connected to PostgreSQL " + version,
	})
	return true
}

// checkTables loads the columns of every referenced table.
func (d *Doctor) checkTables(ctx context.Context, report *Report, refs []sqlgen.ColumnRef) error {
	d.columns = make(map[string]map[string]bool)
	for _, ref := range refs {
		if _, seen := d.columns[ref.Table]; seen {
			continue
		}
		cols, err := d.tableColumns(ctx, ref.Table)
		if err != nil {
			return err
		}
		d.columns[ref.Table] = cols

		if cols == nil {
			report.AddCheck(CheckResult{
				Category: "tables",
				Name:     ref.Table,
				Status:   StatusFail,
				Message:  fmt.Sprintf("Table %s not found", ref.Table),
				FixHint:  "check the table name and the connection's search_path",
			})
			continue
		}
		report.AddCheck(CheckResult{
			Category: "tables",
			Name:     ref.Table,
			Status:   StatusPass,
			Message:  fmt.Sprintf("Table %s (%d columns)", ref.Table, len(cols)),
		})
	}
	return nil
}

func (d *Doctor) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	var schema any
	name := table
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = coalesce($1::text, current_schema())
		  AND table_name = $2
	`, schema, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cols map[string]bool
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		if cols == nil {
			cols = make(map[string]bool)
		}
		cols[col] = true
	}
	return cols, rows.Err()
}

// checkColumns reports referenced columns missing from tables that exist.
// Missing tables were already reported.
func (d *Doctor) checkColumns(report *Report, refs []sqlgen.ColumnRef) {
	var missing int
	for _, ref := range refs {
		cols := d.columns[ref.Table]
		if cols == nil || cols[ref.Column] {
			continue
		}
		missing++
		check := CheckResult{
			Category: "columns",
			Name:     ref.Table + "." + ref.Column,
			Status:   StatusFail,
			Message:  fmt.Sprintf("Column %s.%s not found", ref.Table, ref.Column),
		}
		if ref.Key {
			check.Message = fmt.Sprintf("Join column %s.%s not found", ref.Table, ref.Column)
			check.FixHint = "declare the key with foreignKey (WithForeignKey in Go)"
		}
		report.AddCheck(check)
	}
	if missing == 0 {
		report.AddCheck(CheckResult{
			Category: "columns",
			Name:     "all",
			Status:   StatusPass,
			Message:  fmt.Sprintf("All %d referenced columns exist", len(refs)),
		})
	}
}

// checkIndexes warns about join keys that are not the leading column of
// any index. Primary keys named id are assumed indexed.
func (d *Doctor) checkIndexes(ctx context.Context, report *Report, refs []sqlgen.ColumnRef) error {
	var checked, unindexed int
	for _, ref := range refs {
		if !ref.Key || ref.Column == "id" || !d.columns[ref.Table][ref.Column] {
			continue
		}
		checked++

		var indexed bool
		err := d.db.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1
				FROM pg_index i
				JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = i.indkey[0]
				WHERE i.indrelid = to_regclass($1::text)
				  AND a.attname = $2
			)
		`, ref.Table, ref.Column).Scan(&indexed)
		if err != nil {
			return err
		}
		if indexed {
			continue
		}
		unindexed++
		report.AddCheck(CheckResult{
			Category: "indexes",
			Name:     ref.Table + "." + ref.Column,
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Join column %s.%s has no index", ref.Table, ref.Column),
			FixHint:  fmt.Sprintf("CREATE INDEX ON %s (%s)", ref.Table, ref.Column),
		})
	}
	if checked > 0 && unindexed == 0 {
		report.AddCheck(CheckResult{
			Category: "indexes",
			Name:     "all",
			Status:   StatusPass,
			Message:  fmt.Sprintf("All %d join columns are indexed", checked),
		})
	}
	return nil
}
