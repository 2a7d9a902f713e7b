package sqldsl

// Node is one variant of the SQL IR.
// The set of variants is closed: the unexported marker method keeps
// implementations inside this package, and every type switch over Node
// lists the variants it accepts and fails on anything else.
//
//sumtype:decl
type Node interface {
	// Render writes the node's SQL to the context's formatter.
	Render(ctx *RenderContext)
	node()
}

// RenderContext carries the formatter and the default table used to resolve
// unqualified column references.
type RenderContext struct {
	F            *Formatter
	DefaultTable string
}

// NewRenderContext creates a context writing to a fresh formatter.
func NewRenderContext() *RenderContext {
	return &RenderContext{F: NewFormatter()}
}

// WithTable derives a context that resolves unqualified columns against
// table. The formatter is shared.
func (c *RenderContext) WithTable(table string) *RenderContext {
	return &RenderContext{F: c.F, DefaultTable: table}
}

// SQL renders a node with a fresh formatter and returns the text.
func SQL(n Node) string {
	ctx := NewRenderContext()
	n.Render(ctx)
	return ctx.F.String()
}

// renderAll writes nodes separated by sep on the current line.
func renderAll(ctx *RenderContext, nodes []Node, sep string) {
	ctx.F.JoinInline(len(nodes), sep, func(i int) {
		nodes[i].Render(ctx)
	})
}

// renderBlock writes a parenthesized, indented statement:
//
//	(
//	  SELECT ...
//	)
func renderBlock(ctx *RenderContext, s *Select) {
	ctx.F.Write("(")
	ctx.F.Indent()
	ctx.F.Break()
	s.Render(ctx)
	ctx.F.Dedent()
	ctx.F.WriteLine(")")
}
