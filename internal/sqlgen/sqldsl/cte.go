package sqldsl

func (CTE) node() {}

// CTE is a single common table expression definition.
type CTE struct {
	Name   string
	Select *Select
}

// Render writes name AS (select).
func (c CTE) Render(ctx *RenderContext) {
	ctx.F.Write(c.Name + " AS ")
	renderBlock(ctx, c.Select)
}

// SetCTE registers a CTE on the statement. Insertion order is preserved; a
// definition under an existing name replaces it in place and replaced is
// true.
func (s *Select) SetCTE(name string, sel *Select) (replaced bool) {
	for i := range s.CTEs {
		if s.CTEs[i].Name == name {
			s.CTEs[i].Select = sel
			return true
		}
	}
	s.CTEs = append(s.CTEs, CTE{Name: name, Select: sel})
	return false
}

// CTE returns the statement registered under name.
func (s *Select) CTE(name string) (*Select, bool) {
	for _, c := range s.CTEs {
		if c.Name == name {
			return c.Select, true
		}
	}
	return nil, false
}
