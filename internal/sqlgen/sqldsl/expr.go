package sqldsl

import (
	"strconv"
	"strings"
)

// Function names the compiler treats specially.
const (
	JSONBuildObject = "json_build_object"
	JSONBAgg        = "jsonb_agg"
	Coalesce        = "coalesce"
)

func (Raw) node()         {}
func (Lit) node()         {}
func (Placeholder) node() {}
func (Table) node()       {}
func (TableAs) node()     {}
func (Column) node()      {}
func (Star) node()        {}
func (Func) node()        {}
func (Agg) node()         {}
func (FilterAgg) node()   {}
func (Window) node()      {}
func (Tuple) node()       {}
func (BinaryOp) node()    {}
func (Group) node()       {}
func (Cast) node()        {}
func (Case) node()        {}

// Raw is an escape hatch for arbitrary SQL, with an optional cast.
type Raw struct {
	SQL  string
	Cast string
}

// Common raw literals.
var (
	Null       = Raw{SQL: "NULL"}
	True       = Raw{SQL: "TRUE"}
	False      = Raw{SQL: "FALSE"}
	EmptyArray = Raw{SQL: "'[]'", Cast: "jsonb"}
)

// Render writes the raw SQL.
func (r Raw) Render(ctx *RenderContext) {
	ctx.F.Write(r.SQL)
	writeCast(ctx, r.Cast)
}

// Int creates a raw integer literal.
func Int(i int) Raw {
	return Raw{SQL: strconv.Itoa(i)}
}

// Lit is a string literal, quoted with single quotes.
type Lit string

// Render writes the literal, escaping embedded quotes.
func (l Lit) Render(ctx *RenderContext) {
	ctx.F.Write("'" + strings.ReplaceAll(string(l), "'", "''") + "'")
}

// Placeholder is a positional parameter ($n) with an optional cast.
type Placeholder struct {
	Index int
	Cast  string
}

// Render writes $n[::cast].
func (p Placeholder) Render(ctx *RenderContext) {
	ctx.F.Write("$" + strconv.Itoa(p.Index))
	writeCast(ctx, p.Cast)
}

// Table references a table or CTE by name.
type Table struct {
	Name string
}

// Render writes the table name.
func (t Table) Render(ctx *RenderContext) {
	ctx.F.Write(t.Name)
}

// TableAs references a table under an alias (name AS alias).
type TableAs struct {
	Name  string
	Alias string
}

// Render writes name AS alias.
func (t TableAs) Render(ctx *RenderContext) {
	ctx.F.Write(t.Name)
	if t.Alias != "" {
		ctx.F.Write(" AS " + t.Alias)
	}
}

// Column references a column. An empty Table resolves against the
// rendering context's default table.
type Column struct {
	Table string
	Name  string
	Cast  string
}

// Col creates a qualified column reference.
func Col(table, name string) Column {
	return Column{Table: table, Name: name}
}

// Render writes table.name[::cast].
func (c Column) Render(ctx *RenderContext) {
	table := c.Table
	if table == "" {
		table = ctx.DefaultTable
	}
	if table != "" {
		ctx.F.Write(table + ".")
	}
	ctx.F.Write(c.Name)
	writeCast(ctx, c.Cast)
}

// Star is the all-columns wildcard, optionally qualified.
type Star struct {
	Table string
}

// Render writes * or table.*.
func (s Star) Render(ctx *RenderContext) {
	if s.Table != "" {
		ctx.F.Write(s.Table + ".")
	}
	ctx.F.Write("*")
}

// Func is a function call.
type Func struct {
	Name string
	Args []Node
}

// Render writes name(args). json_build_object calls with arguments break
// onto an indented block with one key/value pair per line.
func (f Func) Render(ctx *RenderContext) {
	if f.Name != JSONBuildObject || len(f.Args) == 0 {
		ctx.F.Write(f.Name + "(")
		renderAll(ctx, f.Args, ", ")
		ctx.F.Write(")")
		return
	}
	ctx.F.Write(f.Name + "(")
	ctx.F.Indent()
	for i := 0; i < len(f.Args); i += 2 {
		ctx.F.Break()
		f.Args[i].Render(ctx)
		if i+1 < len(f.Args) {
			ctx.F.Write(", ")
			f.Args[i+1].Render(ctx)
		}
		if i+2 < len(f.Args) {
			ctx.F.Write(",")
		}
	}
	ctx.F.Dedent()
	ctx.F.WriteLine(")")
}

// Agg is an aggregate call with an optional ORDER BY inside the call.
type Agg struct {
	Name    string
	Args    []Node
	OrderBy []OrderCol
}

// Render writes name(args [ORDER BY ...]).
func (a Agg) Render(ctx *RenderContext) {
	ctx.F.Write(a.Name + "(")
	renderAll(ctx, a.Args, ", ")
	if len(a.OrderBy) > 0 {
		ctx.F.Write(" ORDER BY ")
		renderOrder(ctx, a.OrderBy)
	}
	ctx.F.Write(")")
}

// FilterAgg restricts an aggregate to rows matching Where.
type FilterAgg struct {
	Agg   Node
	Where Node
}

// Render writes agg FILTER (WHERE cond).
func (f FilterAgg) Render(ctx *RenderContext) {
	f.Agg.Render(ctx)
	ctx.F.Write(" FILTER (WHERE ")
	f.Where.Render(ctx)
	ctx.F.Write(")")
}

// Window is a window function call over an ordering.
type Window struct {
	Func    Node
	OrderBy []OrderCol
}

// Render writes fn OVER (ORDER BY ...).
func (w Window) Render(ctx *RenderContext) {
	w.Func.Render(ctx)
	ctx.F.Write(" OVER (")
	if len(w.OrderBy) > 0 {
		ctx.F.Write("ORDER BY ")
		renderOrder(ctx, w.OrderBy)
	}
	ctx.F.Write(")")
}

// Tuple is a row constructor: (a, b, c).
type Tuple struct {
	Items []Node
}

// Render writes the parenthesized items.
func (t Tuple) Render(ctx *RenderContext) {
	ctx.F.Write("(")
	renderAll(ctx, t.Items, ", ")
	ctx.F.Write(")")
}

// BinaryOp is an infix operator expression (e.g. +, /, ||).
type BinaryOp struct {
	Op    string
	Left  Node
	Right Node
}

// Render writes left op right.
func (b BinaryOp) Render(ctx *RenderContext) {
	b.Left.Render(ctx)
	ctx.F.Write(" " + b.Op + " ")
	b.Right.Render(ctx)
}

// Group wraps an expression in parentheses.
type Group struct {
	Inner Node
}

// Render writes (inner).
func (g Group) Render(ctx *RenderContext) {
	ctx.F.Write("(")
	g.Inner.Render(ctx)
	ctx.F.Write(")")
}

// Cast applies a type cast to an arbitrary expression.
type Cast struct {
	Inner Node
	Type  string
}

// Render writes inner::type.
func (c Cast) Render(ctx *RenderContext) {
	c.Inner.Render(ctx)
	writeCast(ctx, c.Type)
}

// Case is a single-branch CASE expression.
type Case struct {
	When Node
	Then Node
	Else Node
}

// Render writes CASE WHEN ... THEN ... ELSE ... END.
func (c Case) Render(ctx *RenderContext) {
	ctx.F.Write("CASE WHEN ")
	c.When.Render(ctx)
	ctx.F.Write(" THEN ")
	c.Then.Render(ctx)
	if c.Else != nil {
		ctx.F.Write(" ELSE ")
		c.Else.Render(ctx)
	}
	ctx.F.Write(" END")
}

func writeCast(ctx *RenderContext, cast string) {
	if cast != "" {
		ctx.F.Write("::" + cast)
	}
}
