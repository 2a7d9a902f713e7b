package sqldsl

// CompareOp is a comparison operator.
type CompareOp string

// Comparison operators accepted by Compare.
const (
	OpEq    CompareOp = "="
	OpNe    CompareOp = "!="
	OpGt    CompareOp = ">"
	OpLt    CompareOp = "<"
	OpGte   CompareOp = ">="
	OpLte   CompareOp = "<="
	OpIs    CompareOp = "IS"
	OpIsNot CompareOp = "IS NOT"
	OpIn    CompareOp = "IN"
	OpNotIn CompareOp = "NOT IN"
	OpLike  CompareOp = "LIKE"
)

// Valid reports whether op belongs to the operator vocabulary.
func (op CompareOp) Valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpLt, OpGte, OpLte, OpIs, OpIsNot, OpIn, OpNotIn, OpLike:
		return true
	}
	return false
}

func (Compare) node() {}
func (And) node()     {}
func (Or) node()      {}
func (InList) node()  {}

// Compare is a binary comparison.
type Compare struct {
	Left  Node
	Op    CompareOp
	Right Node
}

// Render writes left op right.
func (c Compare) Render(ctx *RenderContext) {
	c.Left.Render(ctx)
	ctx.F.Write(" " + string(c.Op) + " ")
	c.Right.Render(ctx)
}

// And is a logical AND. Operands are rendered as-is; use Group to force
// precedence.
type And struct {
	Left  Node
	Right Node
}

// Render writes left AND right.
func (a And) Render(ctx *RenderContext) {
	a.Left.Render(ctx)
	ctx.F.Write(" AND ")
	a.Right.Render(ctx)
}

// Or is a logical OR. Operands are rendered as-is; use Group to force
// precedence.
type Or struct {
	Left  Node
	Right Node
}

// Render writes left OR right.
func (o Or) Render(ctx *RenderContext) {
	o.Left.Render(ctx)
	ctx.F.Write(" OR ")
	o.Right.Render(ctx)
}

// InList is an IN / NOT IN membership test against a list of values.
type InList struct {
	Left   Node
	Values []Node
	Not    bool
}

// Render writes left [NOT] IN (values). An empty list renders the constant
// result, since "IN ()" is not valid SQL.
func (i InList) Render(ctx *RenderContext) {
	if len(i.Values) == 0 {
		if i.Not {
			ctx.F.Write("TRUE")
		} else {
			ctx.F.Write("FALSE")
		}
		return
	}
	i.Left.Render(ctx)
	if i.Not {
		ctx.F.Write(" NOT IN (")
	} else {
		ctx.F.Write(" IN (")
	}
	renderAll(ctx, i.Values, ", ")
	ctx.F.Write(")")
}

// AndAll folds nodes left to right with AND, skipping nils. When more than
// one operand remains, operands containing a bare OR are grouped so the
// combined tree keeps each operand's meaning.
func AndAll(nodes ...Node) Node {
	operands := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			operands = append(operands, n)
		}
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	var out Node
	for _, n := range operands {
		if hasBareOr(n) {
			n = Group{Inner: n}
		}
		if out == nil {
			out = n
			continue
		}
		out = And{Left: out, Right: n}
	}
	return out
}

// hasBareOr reports whether n contains an OR that is not inside a Group.
func hasBareOr(n Node) bool {
	switch n := n.(type) {
	case Or:
		return true
	case And:
		return hasBareOr(n.Left) || hasBareOr(n.Right)
	default:
		return false
	}
}
