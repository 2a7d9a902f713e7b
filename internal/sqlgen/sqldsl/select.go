package sqldsl

// Field is one entry of a SELECT list.
type Field struct {
	Node  Node
	Alias string
}

func (f Field) render(ctx *RenderContext) {
	f.Node.Render(ctx)
	if f.Alias != "" {
		ctx.F.Write(" AS " + f.Alias)
	}
}

// OrderCol is one ORDER BY entry.
type OrderCol struct {
	Node Node
	Desc bool
}

func renderOrder(ctx *RenderContext, cols []OrderCol) {
	ctx.F.JoinInline(len(cols), ", ", func(i int) {
		cols[i].Node.Render(ctx)
		if cols[i].Desc {
			ctx.F.Write(" DESC")
		}
	})
}

func (*Select) node() {}

// Select is a SELECT statement under construction.
//
// A statement is mutated only by the code compiling its own branch. Once it
// is embedded in an ancestor (as a CTE or derived table) the ancestor reads
// its field aliases and never changes it.
type Select struct {
	Fields  []Field
	From    Node
	Joins   []Join
	CTEs    []CTE
	Where   Node
	GroupBy []Node
	Having  Node
	OrderBy []OrderCol
	Limit   Node
	Offset  Node
}

// AddField appends a field. Duplicate aliases are allowed; only the most
// recent one is addressable by name.
func (s *Select) AddField(n Node, alias string) {
	s.Fields = append(s.Fields, Field{Node: n, Alias: alias})
}

// Field returns the most recently added field under alias.
func (s *Select) Field(alias string) (Node, bool) {
	for i := len(s.Fields) - 1; i >= 0; i-- {
		if s.Fields[i].Alias == alias {
			return s.Fields[i].Node, true
		}
	}
	return nil, false
}

// SetField replaces the most recent field under alias, or adds it.
func (s *Select) SetField(alias string, n Node) {
	for i := len(s.Fields) - 1; i >= 0; i-- {
		if s.Fields[i].Alias == alias {
			s.Fields[i].Node = n
			return
		}
	}
	s.AddField(n, alias)
}

// FieldAliases returns the distinct non-empty aliases in order of first
// appearance.
func (s *Select) FieldAliases() []string {
	seen := make(map[string]bool, len(s.Fields))
	var out []string
	for _, f := range s.Fields {
		if f.Alias == "" || seen[f.Alias] {
			continue
		}
		seen[f.Alias] = true
		out = append(out, f.Alias)
	}
	return out
}

// AndWhere AND-combines pred into the WHERE tree.
func (s *Select) AndWhere(pred Node) {
	s.Where = AndAll(s.Where, pred)
}

// AddJoin appends a join clause.
func (s *Select) AddJoin(kind JoinKind, source, on Node) {
	s.Joins = append(s.Joins, Join{Kind: kind, Source: source, On: on})
}

// SourceAlias returns the name unqualified columns resolve against.
func (s *Select) SourceAlias() string {
	return sourceAlias(s.From)
}

// Clone returns a shallow copy whose slices can be modified independently.
// Nodes are shared; they are never mutated after construction.
func (s *Select) Clone() *Select {
	c := *s
	c.Fields = append([]Field(nil), s.Fields...)
	c.Joins = append([]Join(nil), s.Joins...)
	c.CTEs = append([]CTE(nil), s.CTEs...)
	c.GroupBy = append([]Node(nil), s.GroupBy...)
	c.OrderBy = append([]OrderCol(nil), s.OrderBy...)
	return &c
}

// Render writes the statement. Clauses resolve unqualified columns against
// the statement's own source.
func (s *Select) Render(parent *RenderContext) {
	ctx := parent.WithTable(s.SourceAlias())
	f := ctx.F

	if len(s.CTEs) > 0 {
		f.Write("WITH ")
		for i, c := range s.CTEs {
			if i > 0 {
				f.Write(", ")
			}
			c.Render(ctx)
		}
		f.Break()
	}

	f.Write("SELECT")
	f.Indent()
	if len(s.Fields) == 0 {
		f.WriteLine("*")
	}
	f.JoinLines(len(s.Fields), ",", func(i int) {
		s.Fields[i].render(ctx)
	})
	f.Dedent()

	if s.From != nil {
		f.WriteLine("FROM ")
		s.From.Render(ctx)
	}
	for _, j := range s.Joins {
		f.Break()
		j.Render(ctx)
	}
	if s.Where != nil {
		f.WriteLine("WHERE ")
		s.Where.Render(ctx)
	}
	if len(s.GroupBy) > 0 {
		f.WriteLine("GROUP BY ")
		renderAll(ctx, s.GroupBy, ", ")
	}
	if s.Having != nil {
		f.WriteLine("HAVING ")
		s.Having.Render(ctx)
	}
	if len(s.OrderBy) > 0 {
		f.WriteLine("ORDER BY ")
		renderOrder(ctx, s.OrderBy)
	}
	if s.Limit != nil {
		f.WriteLine("LIMIT ")
		s.Limit.Render(ctx)
	}
	if s.Offset != nil {
		f.WriteLine("OFFSET ")
		s.Offset.Render(ctx)
	}
}

// Count returns count(arg), using * when arg is nil.
func Count(arg Node) Func {
	if arg == nil {
		arg = Raw{SQL: "*"}
	}
	return Func{Name: "count", Args: []Node{arg}}
}

// Limit1 is the LIMIT used by correlated single-row lookups.
var Limit1 = Int(1)
