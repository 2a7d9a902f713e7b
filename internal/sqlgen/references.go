package sqlgen

// ColumnRef is a column the compiled statement reads.
type ColumnRef struct {
	Table  string
	Column string
	// Key marks columns used to join a relation to its parent.
	Key bool
}

// References lists the columns a relation tree reads, in declaration order
// and without duplicates. Join columns follow the same foreign-key rules as
// Compile, so guessed keys are listed under the names Compile will use.
func References(roots []*Relation) []ColumnRef {
	var c refCollector
	for _, rel := range roots {
		c.relation("", rel)
	}
	return c.refs
}

type refCollector struct {
	refs  []ColumnRef
	index map[[2]string]int
}

func (c *refCollector) add(table, column string, key bool) {
	if table == "" || column == "" {
		return
	}
	if c.index == nil {
		c.index = make(map[[2]string]int)
	}
	k := [2]string{table, column}
	if i, ok := c.index[k]; ok {
		c.refs[i].Key = c.refs[i].Key || key
		return
	}
	c.index[k] = len(c.refs)
	c.refs = append(c.refs, ColumnRef{Table: table, Column: column, Key: key})
}

func (c *refCollector) relation(parent string, rel *Relation) {
	if rel == nil {
		return
	}
	c.add(rel.Table, "id", true)

	if parent != "" {
		prev := parent
		hops := append(rel.Through[:len(rel.Through):len(rel.Through)], Hop{
			Table:      rel.Table,
			Kind:       rel.linkKind(),
			ForeignKey: rel.ForeignKey,
		})
		for _, h := range hops {
			c.link(prev, h)
			prev = h.Table
		}
	}

	for _, it := range rel.Items {
		switch it := it.(type) {
		case Field:
			c.add(rel.Table, it.Column, false)
		case Fields:
			for _, f := range it {
				c.add(rel.Table, f.Column, false)
			}
		case *Predicate:
			c.predicate(rel.Table, it)
		case Order:
			c.add(rel.Table, it.Column, false)
		case Aggregate:
			for _, fn := range it.Funcs {
				c.add(rel.Table, fn.Column, false)
			}
		case *Relation:
			c.relation(rel.Table, it)
		}
	}
}

// link records both sides of the join from prev into h.
func (c *refCollector) link(prev string, h Hop) {
	switch h.Kind {
	case KindMany:
		fk := h.ForeignKey
		if fk == "" {
			fk = guessForeignKey(prev)
		}
		c.add(h.Table, fk, true)
		c.add(prev, "id", true)
	case KindOne:
		fk := h.ForeignKey
		if fk == "" {
			fk = guessForeignKey(h.Table)
		}
		c.add(h.Table, "id", true)
		c.add(prev, fk, true)
	}
}

func (c *refCollector) predicate(table string, p *Predicate) {
	if p == nil {
		return
	}
	for _, t := range p.terms {
		if t.group != nil {
			c.predicate(table, t.group)
			continue
		}
		c.add(table, t.leaf.field, false)
	}
}
