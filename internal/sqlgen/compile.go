package sqlgen

import (
	"log/slog"

	"github.com/pthm/nestql/internal/sqlgen/sqldsl"
)

// Options configure a compilation.
type Options struct {
	// Logger receives debug records for every compiled relation.
	// Nil discards them.
	Logger *slog.Logger
}

// Result is a compiled statement and its positional parameters.
type Result struct {
	SQL    string
	Params []any
}

// Compile lowers root relations into a single SELECT returning one row with
// one JSON column, data, keyed by each root's output name.
func Compile(roots []*Relation, opts Options) (Result, error) {
	stmt, bc, err := Plan(roots, opts)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: sqldsl.SQL(stmt), Params: bc.Params()}, nil
}

// Plan compiles the relation tree into its IR without rendering it.
func Plan(roots []*Relation, opts Options) (*sqldsl.Select, *BuildContext, error) {
	bc := NewBuildContext()
	ctx := newContext(bc, opts.Logger)
	stmt := &sqldsl.Select{}

	for _, rel := range roots {
		ctx.Relations++
		if err := compileRelation(ctx, stmt, rel); err != nil {
			return nil, nil, err
		}
	}
	if _, ok := stmt.Field(DataField); !ok {
		stmt.AddField(sqldsl.Func{Name: sqldsl.JSONBuildObject}, DataField)
	}
	ctx.logger.Debug("compiled query", "roots", ctx.Relations, "params", len(bc.params))
	return stmt, bc, nil
}
