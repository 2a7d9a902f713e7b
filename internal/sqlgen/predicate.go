package sqlgen

import (
	"fmt"
	"reflect"

	"github.com/pthm/nestql/internal/sqlgen/sqldsl"
)

// Op is a comparison operator.
type Op = sqldsl.CompareOp

// Predicate is a chain of comparisons and nested predicates. Terms fold
// strictly left to right: AND does not bind tighter than OR.
type Predicate struct {
	terms []term
}

type term struct {
	or    bool
	leaf  leaf
	group *Predicate
}

type leaf struct {
	field string
	op    Op
	value any
}

// Where starts a predicate with a comparison.
func Where(field string, op Op, value any) *Predicate {
	return (&Predicate{}).add(false, term{leaf: leaf{field: field, op: op, value: value}})
}

// WhereGroup starts a predicate with a nested predicate.
func WhereGroup(p *Predicate) *Predicate {
	return (&Predicate{}).add(false, term{group: p})
}

// And combines a comparison with AND.
func (p *Predicate) And(field string, op Op, value any) *Predicate {
	return p.add(false, term{leaf: leaf{field: field, op: op, value: value}})
}

// Or combines a comparison with OR.
func (p *Predicate) Or(field string, op Op, value any) *Predicate {
	return p.add(true, term{leaf: leaf{field: field, op: op, value: value}})
}

// AndGroup combines a parenthesized predicate with AND.
func (p *Predicate) AndGroup(g *Predicate) *Predicate {
	return p.add(false, term{group: g})
}

// OrGroup combines a parenthesized predicate with OR.
func (p *Predicate) OrGroup(g *Predicate) *Predicate {
	return p.add(true, term{group: g})
}

func (p *Predicate) add(or bool, t term) *Predicate {
	t.or = or
	p.terms = append(p.terms, t)
	return p
}

// compile lowers the predicate against the table alias its fields belong
// to. An empty predicate compiles to nil.
func (p *Predicate) compile(alias string, bc *BuildContext) (sqldsl.Node, error) {
	var out sqldsl.Node
	for _, t := range p.terms {
		var n sqldsl.Node
		if t.group != nil {
			inner, err := t.group.compile(alias, bc)
			if err != nil {
				return nil, err
			}
			if inner == nil {
				continue
			}
			n = sqldsl.Group{Inner: inner}
		} else {
			var err error
			if n, err = t.leaf.compile(alias, bc); err != nil {
				return nil, err
			}
		}

		switch {
		case out == nil:
			out = n
		case t.or:
			out = sqldsl.Or{Left: out, Right: n}
		default:
			out = sqldsl.And{Left: out, Right: n}
		}
	}

	if g, ok := out.(sqldsl.Group); ok && len(p.terms) == 1 {
		return g.Inner, nil
	}
	return out, nil
}

func (l leaf) compile(alias string, bc *BuildContext) (sqldsl.Node, error) {
	if !l.op.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOperator, l.op)
	}
	col := sqldsl.Col(alias, l.field)

	if l.op == sqldsl.OpIn || l.op == sqldsl.OpNotIn {
		if n, ok := l.value.(sqldsl.Node); ok {
			return sqldsl.Compare{Left: col, Op: l.op, Right: n}, nil
		}
		values, err := listOperands(l.value, bc)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", l.field, l.op, err)
		}
		return sqldsl.InList{Left: col, Values: values, Not: l.op == sqldsl.OpNotIn}, nil
	}

	if l.op == sqldsl.OpIs || l.op == sqldsl.OpIsNot {
		right, err := isOperand(l.value)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", l.field, l.op, err)
		}
		return sqldsl.Compare{Left: col, Op: l.op, Right: right}, nil
	}

	return sqldsl.Compare{Left: col, Op: l.op, Right: operand(l.value, bc)}, nil
}

// isOperand renders the right side of IS and IS NOT, which PostgreSQL only
// accepts as a keyword, never as a placeholder.
func isOperand(v any) (sqldsl.Node, error) {
	switch v := v.(type) {
	case nil:
		return sqldsl.Null, nil
	case bool:
		if v {
			return sqldsl.True, nil
		}
		return sqldsl.False, nil
	case sqldsl.Node:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: want nil, a bool or an expression, got %T", ErrInvalidOperand, v)
	}
}

// operand passes IR nodes through, renders nil as NULL and turns anything
// else into a placeholder.
func operand(v any, bc *BuildContext) sqldsl.Node {
	switch v := v.(type) {
	case nil:
		return sqldsl.Null
	case sqldsl.Node:
		return v
	default:
		return bc.Param(v)
	}
}

func listOperands(v any, bc *BuildContext) ([]sqldsl.Node, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: got %T", ErrInvalidOperand, v)
	}
	out := make([]sqldsl.Node, rv.Len())
	for i := range out {
		out[i] = operand(rv.Index(i).Interface(), bc)
	}
	return out, nil
}

// WalkWhere calls fn for every node of a WHERE tree, parents first.
// Nodes outside the predicate set are reported as ErrInvalidWhereNode.
func WalkWhere(n sqldsl.Node, fn func(sqldsl.Node) error) error {
	switch n := n.(type) {
	case nil:
		return nil
	case sqldsl.Compare, sqldsl.InList, sqldsl.Raw:
		return fn(n)
	case sqldsl.And:
		if err := fn(n); err != nil {
			return err
		}
		if err := WalkWhere(n.Left, fn); err != nil {
			return err
		}
		return WalkWhere(n.Right, fn)
	case sqldsl.Or:
		if err := fn(n); err != nil {
			return err
		}
		if err := WalkWhere(n.Left, fn); err != nil {
			return err
		}
		return WalkWhere(n.Right, fn)
	case sqldsl.Group:
		if err := fn(n); err != nil {
			return err
		}
		return WalkWhere(n.Inner, fn)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidWhereNode, n)
	}
}

// whereTables returns the table qualifiers referenced by comparisons in a
// WHERE tree.
func whereTables(where sqldsl.Node) (map[string]bool, error) {
	tables := make(map[string]bool)
	mark := func(n sqldsl.Node) {
		if c, ok := n.(sqldsl.Column); ok && c.Table != "" {
			tables[c.Table] = true
		}
	}
	err := WalkWhere(where, func(n sqldsl.Node) error {
		switch n := n.(type) {
		case sqldsl.Compare:
			mark(n.Left)
			mark(n.Right)
		case sqldsl.InList:
			mark(n.Left)
		}
		return nil
	})
	return tables, err
}
