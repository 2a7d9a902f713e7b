package nestql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pthm/nestql/internal/sqlgen"
	"github.com/pthm/nestql/internal/sqlgen/sqldsl"
)

type (
	// Relation is one node of the relation tree. Build it with From, Many
	// or One and extend it with its fluent methods.
	Relation = sqlgen.Relation

	// Item is anything a relation can be declared with: fields, values,
	// filters, ordering, aggregates, nested relations and pagination.
	Item = sqlgen.Item

	// Predicate is a filter built with Where and its And/Or chain.
	Predicate = sqlgen.Predicate

	// Op is a comparison operator.
	Op = sqlgen.Op

	// AggFunc is one aggregate of an Aggregate group.
	AggFunc = sqlgen.AggFunc
)

// Comparison operators accepted by Where.
const (
	Eq    Op = sqldsl.OpEq
	Ne    Op = sqldsl.OpNe
	Gt    Op = sqldsl.OpGt
	Lt    Op = sqldsl.OpLt
	Gte   Op = sqldsl.OpGte
	Lte   Op = sqldsl.OpLte
	Is    Op = sqldsl.OpIs
	IsNot Op = sqldsl.OpIsNot
	In    Op = sqldsl.OpIn
	NotIn Op = sqldsl.OpNotIn
	Like  Op = sqldsl.OpLike
)

// From declares a root relation. Its rows are returned as a JSON array
// under the table name, or the name given with As.
func From(table string) *Relation {
	return &Relation{Table: table, Kind: sqlgen.KindRoot}
}

// Many declares a nested relation rendered as an array of objects.
func Many(table string) *Relation {
	return &Relation{Table: table, Kind: sqlgen.KindMany}
}

// One declares a nested relation rendered as an object, or null when no
// row matches.
func One(table string) *Relation {
	return &Relation{Table: table, Kind: sqlgen.KindOne}
}

// Fields projects columns under their own names.
func Fields(columns ...string) Item {
	fs := make(sqlgen.Fields, len(columns))
	for i, c := range columns {
		fs[i] = sqlgen.Field{Column: c}
	}
	return fs
}

// Field projects a column under a different JSON key.
func Field(column, as string) Item {
	return sqlgen.Field{Column: column, As: as}
}

// Value injects a constant into every row's object. Scalars are sent as
// typed parameters; maps, slices and structs are sent as jsonb.
func Value(name string, v any) Item {
	return sqlgen.Value{Name: name, Value: v}
}

// Raw embeds a SQL expression as a comparison operand or a Value, for
// example Raw("now()"). It is never parameterized.
func Raw(sql string) any {
	return sqldsl.Raw{SQL: sql}
}

// Where starts a filter on a column of the relation it is declared on.
func Where(field string, op Op, value any) *Predicate {
	return sqlgen.Where(field, op, value)
}

// WhereGroup starts a filter with a parenthesized group.
func WhereGroup(p *Predicate) *Predicate {
	return sqlgen.WhereGroup(p)
}

// OrderBy sorts a relation's rows by column, ascending.
func OrderBy(column string) Item {
	return sqlgen.Order{Column: column}
}

// OrderByDesc sorts a relation's rows by column, descending.
func OrderByDesc(column string) Item {
	return sqlgen.Order{Column: column, Desc: true}
}

// Aggregate adds an object of aggregates next to the relation's data,
// keyed by function name. On a nested relation it appears in the parent
// as <relation><Name>.
func Aggregate(name string, funcs ...AggFunc) Item {
	return sqlgen.Aggregate{Name: name, Funcs: funcs}
}

// Count counts the relation's rows.
func Count() AggFunc { return AggFunc{Name: "count"} }

// Sum sums a column.
func Sum(column string) AggFunc { return AggFunc{Name: "sum", Column: column} }

// Avg averages a column.
func Avg(column string) AggFunc { return AggFunc{Name: "avg", Column: column} }

// Min is the smallest value of a column.
func Min(column string) AggFunc { return AggFunc{Name: "min", Column: column} }

// Max is the largest value of a column.
func Max(column string) AggFunc { return AggFunc{Name: "max", Column: column} }

// Paginate pages a root relation by number. Pages start at 1; non-positive
// values fall back to page 1 of 30 rows.
func Paginate(page, pageSize int) Item {
	return sqlgen.Paginate{Strategy: sqlgen.OffsetLimit{Page: page, PageSize: pageSize}}
}

// Keyset pages a root relation by cursor. Pass "" for the first page and
// the previous page's pagination.next afterwards.
func Keyset(cursor string, pageSize int) Item {
	return sqlgen.Paginate{Strategy: sqlgen.Keyset{Cursor: cursor, PageSize: pageSize}}
}

// DecodeCursor returns the column values a keyset cursor points at.
func DecodeCursor(cursor string) (map[string]any, error) {
	return sqlgen.DecodeCursor(cursor)
}

// EncodeCursor builds a keyset cursor from column values, in the format
// the generated SQL emits.
func EncodeCursor(values map[string]any) (string, error) {
	return sqlgen.EncodeCursor(values)
}

// Option configures a Query.
type Option func(*Query)

// WithLogger routes compilation debug records to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Query) {
		q.logger = logger
	}
}

// Query is a set of root relations compiled together into one statement.
// A Query is immutable once built and safe to share; Build compiles it
// from scratch on every call.
type Query struct {
	roots  []*Relation
	logger *slog.Logger
}

// NewQuery creates a query over the given roots.
func NewQuery(roots ...*Relation) *Query {
	return &Query{roots: roots}
}

// Options returns a copy of q with opts applied.
func (q *Query) Options(opts ...Option) *Query {
	c := *q
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Build compiles the query to SQL and its positional parameters.
func (q *Query) Build() (string, []any, error) {
	res, err := sqlgen.Compile(q.roots, sqlgen.Options{Logger: q.logger})
	if err != nil {
		return "", nil, err
	}
	return res.SQL, res.Params, nil
}

// FetchJSON runs the query and returns its JSON document.
func (q *Query) FetchJSON(ctx context.Context, db Querier) (json.RawMessage, error) {
	query, params, err := q.Build()
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := db.QueryRowContext(ctx, query, params...).Scan(&raw); err != nil {
		return nil, mapError(err)
	}
	return json.RawMessage(raw), nil
}

// Fetch runs the query and decodes its JSON document into dest.
func (q *Query) Fetch(ctx context.Context, db Querier, dest any) error {
	raw, err := q.FetchJSON(ctx, db)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
