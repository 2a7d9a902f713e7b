package sqldsl

// JoinKind is the join keyword written before the joined source.
type JoinKind string

// Supported join kinds.
const (
	LeftJoin         JoinKind = "LEFT JOIN"
	InnerJoin        JoinKind = "INNER JOIN"
	CrossJoin        JoinKind = "CROSS JOIN"
	LeftJoinLateral  JoinKind = "LEFT JOIN LATERAL"
	CrossJoinLateral JoinKind = "CROSS JOIN LATERAL"
)

func (Join) node()     {}
func (Derived) node()  {}
func (Subquery) node() {}

// Join is a JOIN clause. CROSS joins never render an ON clause.
type Join struct {
	Kind   JoinKind
	Source Node
	On     Node
}

// Render writes KIND source [ON cond].
func (j Join) Render(ctx *RenderContext) {
	ctx.F.Write(string(j.Kind) + " ")
	j.Source.Render(ctx)
	if j.On == nil || j.Kind == CrossJoin || j.Kind == CrossJoinLateral {
		return
	}
	ctx.F.Write(" ON ")
	j.On.Render(ctx)
}

// Alias returns the name the joined source is addressed by.
func (j Join) Alias() string {
	return sourceAlias(j.Source)
}

// Derived is an inline subquery used as a FROM or JOIN source.
type Derived struct {
	Select *Select
	Alias  string
}

// Render writes (select) AS alias.
func (d Derived) Render(ctx *RenderContext) {
	renderBlock(ctx, d.Select)
	ctx.F.Write(" AS " + d.Alias)
}

// Subquery is a parenthesized statement used as an expression.
type Subquery struct {
	Select *Select
}

// Render writes (select).
func (s Subquery) Render(ctx *RenderContext) {
	renderBlock(ctx, s.Select)
}

// sourceAlias returns the name a FROM source is addressed by.
func sourceAlias(n Node) string {
	switch src := n.(type) {
	case TableAs:
		if src.Alias != "" {
			return src.Alias
		}
		return src.Name
	case Table:
		return src.Name
	case Derived:
		return src.Alias
	default:
		return ""
	}
}
