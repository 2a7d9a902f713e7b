package sqlgen

import (
	"log/slog"
	"math"
	"slices"
	"strconv"

	"github.com/pthm/nestql/internal/sqlgen/sqldsl"
)

// BuildContext owns the placeholder parameter list of one compilation.
// Index i of Params corresponds to $i+1 in the emitted SQL.
type BuildContext struct {
	params []any
}

// NewBuildContext creates an empty build context.
func NewBuildContext() *BuildContext {
	return &BuildContext{}
}

// Param appends v and returns a placeholder cast by v's runtime type.
func (b *BuildContext) Param(v any) sqldsl.Placeholder {
	return b.ParamCast(v, inferCast(v))
}

// ParamCast appends v and returns a placeholder with an explicit cast.
// An empty cast leaves the type to the server.
func (b *BuildContext) ParamCast(v any, cast string) sqldsl.Placeholder {
	b.params = append(b.params, v)
	return sqldsl.Placeholder{Index: len(b.params), Cast: cast}
}

// Params returns a copy of the parameters in placeholder order.
func (b *BuildContext) Params() []any {
	return slices.Clone(b.params)
}

// inferCast maps a Go value to the cast its placeholder carries.
func inferCast(v any) string {
	switch v := v.(type) {
	case string:
		return "text"
	case bool:
		return "bool"
	case float32, float64:
		return "float8"
	case int8, int16, uint8, uint16:
		return "int"
	case int:
		return intCast(int64(v))
	case int32:
		return intCast(int64(v))
	case int64:
		return intCast(v)
	case uint:
		return uintCast(uint64(v))
	case uint32:
		return uintCast(uint64(v))
	case uint64:
		return uintCast(v)
	default:
		return ""
	}
}

func intCast(v int64) string {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return "bigint"
	}
	return "int"
}

func uintCast(v uint64) string {
	if v > math.MaxInt32 {
		return "bigint"
	}
	return "int"
}

// Aliases hands out table aliases for one compilation. Every branch of the
// relation tree allocates from the same counter, so aliases are unique
// across the whole statement.
type Aliases struct {
	n int
}

// Next returns a fresh alias: t1, t2, ...
func (a *Aliases) Next() string {
	a.n++
	return "t" + strconv.Itoa(a.n)
}

// TableRef names a table and the alias it is addressed by.
type TableRef struct {
	Name  string
	Alias string
}

// Context is the per-branch state while walking the relation tree.
type Context struct {
	Table     TableRef
	Depth     int
	Relations int

	aliases *Aliases
	build   *BuildContext
	logger  *slog.Logger
}

func newContext(build *BuildContext, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Context{aliases: &Aliases{}, build: build, logger: logger}
}

// Sub derives a child context positioned on table. The child shares the
// alias counter and build context; the receiver is left untouched.
func (c *Context) Sub(table TableRef) *Context {
	return &Context{
		Table:   table,
		Depth:   c.Depth + 1,
		aliases: c.aliases,
		build:   c.build,
		logger:  c.logger,
	}
}

// GenTableAlias returns an alias unique within the compilation.
func (c *Context) GenTableAlias() string {
	return c.aliases.Next()
}

// Build returns the compilation's build context.
func (c *Context) Build() *BuildContext {
	return c.build
}
