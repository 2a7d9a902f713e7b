package sqlgen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pthm/nestql/internal/sqlgen/sqldsl"
)

// groupField is the hidden field a many relation's derived table is
// grouped and joined on.
const groupField = "_group"

// compileRelation lowers rel into parent under ctx, the context of the
// element rel hangs off.
func compileRelation(ctx *Context, parent *sqldsl.Select, rel *Relation) error {
	if rel == nil {
		return fmt.Errorf("%w: nil relation", ErrInvalidRelation)
	}
	if err := rel.validate(); err != nil {
		return err
	}

	if ctx.Depth == 0 && rel.Kind != KindRoot {
		return fmt.Errorf("%w: %s: %s relation declared at the top level", ErrInvalidRelation, rel.Table, rel.Kind)
	}

	var err error
	switch rel.Kind {
	case KindRoot:
		if ctx.Depth > 0 {
			return fmt.Errorf("%w: %s: root relation nested under %s", ErrInvalidRelation, rel.Table, ctx.Table.Name)
		}
		err = compileRoot(ctx, parent, rel)
	case KindMany:
		err = compileMany(ctx, parent, rel)
	case KindOne:
		if len(rel.Through) > 0 {
			err = compileOneThrough(ctx, parent, rel)
		} else {
			err = compileOne(ctx, parent, rel)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %s", ErrInvalidRelation, rel.Table, rel.Kind)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", rel.OutputName(), err)
	}
	return nil
}

// compileItems lowers rel's items into stmt. ctx is positioned on rel's
// target table.
func compileItems(ctx *Context, stmt *sqldsl.Select, rel *Relation) error {
	alias := ctx.Table.Alias
	paginated := false
	for _, it := range orderedItems(rel.Items) {
		switch it := it.(type) {
		case Field:
			if err := AddField(stmt, DataField, it.Key(), sqldsl.Col(alias, it.Column)); err != nil {
				return err
			}
		case Fields:
			for _, f := range it {
				if err := AddField(stmt, DataField, f.Key(), sqldsl.Col(alias, f.Column)); err != nil {
					return err
				}
			}
		case Value:
			if err := AddField(stmt, DataField, it.Name, valueNode(ctx.build, it.Value)); err != nil {
				return err
			}
		case *Predicate:
			where, err := it.compile(alias, ctx.build)
			if err != nil {
				return err
			}
			stmt.AndWhere(where)
		case Order:
			// A one relation joined directly has exactly one row to order;
			// through hops, the order picks which row is kept.
			if rel.Kind == KindOne && len(rel.Through) == 0 {
				return fmt.Errorf("%w: order by %s on a one relation", ErrInvalidRelation, it.Column)
			}
			stmt.OrderBy = append(stmt.OrderBy, sqldsl.OrderCol{Node: sqldsl.Col(alias, it.Column), Desc: it.Desc})
		case Aggregate:
			if rel.Kind == KindOne {
				return fmt.Errorf("%w: aggregate %q on a one relation", ErrInvalidRelation, it.Name)
			}
			if err := addAggregate(stmt, alias, it); err != nil {
				return err
			}
		case *Relation:
			ctx.Relations++
			if err := compileRelation(ctx, stmt, it); err != nil {
				return err
			}
		case Paginate:
			if rel.Kind != KindRoot {
				return ErrPaginationScope
			}
			if paginated {
				return fmt.Errorf("%w: pagination declared twice", ErrInvalidRelation)
			}
			paginated = true
			if err := paginate(ctx, stmt, it.Strategy); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unsupported item %T", ErrInvalidRelation, it)
		}
	}
	return nil
}

// valueNode renders an injected constant. Scalars become cast
// placeholders; composite values are sent as jsonb.
func valueNode(bc *BuildContext, v any) sqldsl.Node {
	if v == nil {
		return sqldsl.Null
	}
	if n, ok := v.(sqldsl.Node); ok {
		return n
	}
	if inferCast(v) != "" {
		return bc.Param(v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return bc.Param(v)
	}
	return bc.ParamCast(string(raw), "jsonb")
}

func addAggregate(stmt *sqldsl.Select, alias string, agg Aggregate) error {
	if agg.Name == "" || strings.HasPrefix(agg.Name, hiddenPrefix) || agg.Name == DataField {
		return fmt.Errorf("%w: aggregate group name %q", ErrInvalidRelation, agg.Name)
	}
	for _, fn := range agg.Funcs {
		var arg sqldsl.Node
		if fn.Column != "" {
			arg = sqldsl.Col(alias, fn.Column)
		}
		call := sqldsl.Count(arg)
		if fn.Name != "count" {
			if arg == nil {
				return fmt.Errorf("%w: %s requires a column", ErrInvalidRelation, fn.Name)
			}
			call = sqldsl.Func{Name: fn.Name, Args: []sqldsl.Node{arg}}
		}
		if err := AddField(stmt, agg.Name, fn.Name, call); err != nil {
			return err
		}
	}
	return nil
}

// ensureData gives a statement without projected fields a data object so
// that it still aggregates to one array entry per row.
func ensureData(stmt *sqldsl.Select) {
	if _, ok := stmt.Field(DataField); !ok {
		stmt.AddField(sqldsl.Func{Name: sqldsl.JSONBuildObject}, DataField)
	}
}

func compileRoot(ctx *Context, parent *sqldsl.Select, rel *Relation) error {
	cte := "root_" + rel.OutputName()
	if _, exists := parent.CTE(cte); exists {
		return fmt.Errorf("%w: root %q declared twice", ErrDuplicateName, rel.OutputName())
	}

	alias := ctx.GenTableAlias()
	sub := ctx.Sub(TableRef{Name: rel.Table, Alias: alias})
	stmt := &sqldsl.Select{From: sqldsl.TableAs{Name: rel.Table, Alias: alias}}

	if err := compileItems(sub, stmt, rel); err != nil {
		return err
	}
	ensureData(stmt)
	if err := ConvertDataFieldsToAgg(stmt, nil); err != nil {
		return err
	}
	if rel.MinCount > 0 {
		stmt.Having = sqldsl.Compare{
			Left:  sqldsl.Count(nil),
			Op:    sqldsl.OpGte,
			Right: ctx.build.Param(rel.MinCount),
		}
	}

	parent.SetCTE(cte, stmt)
	ctx.logger.Debug("compiled relation", "kind", rel.Kind, "table", rel.Table, "alias", alias, "cte", cte)

	// A root whose HAVING fails yields no row; it must not take the
	// statement's single row, or its sibling roots, with it.
	if rel.MinCount > 0 {
		if parent.From == nil {
			parent.From = oneRow()
		}
		parent.AddJoin(sqldsl.LeftJoin, sqldsl.Table{Name: cte}, sqldsl.True)
		return AddReferencesToChildFields(parent, cte, stmt, rel.OutputName(), true)
	}

	if parent.From == nil {
		parent.From = sqldsl.Table{Name: cte}
	} else {
		parent.AddJoin(sqldsl.CrossJoin, sqldsl.Table{Name: cte}, nil)
	}
	return AddReferencesToChildFields(parent, cte, stmt, rel.OutputName(), false)
}

// oneRowAlias names the single-row source of a statement whose first root
// may produce no row.
const oneRowAlias = "one_row"

func oneRow() sqldsl.Node {
	sel := &sqldsl.Select{}
	sel.AddField(sqldsl.Int(1), "")
	return sqldsl.Derived{Select: sel, Alias: oneRowAlias}
}

// compileMany embeds an array of related rows through a derived table
// grouped by the column that ties each row back to the parent.
func compileMany(ctx *Context, parent *sqldsl.Select, rel *Relation) error {
	alias := ctx.GenTableAlias()
	target := TableRef{Name: rel.Table, Alias: alias}
	sub := ctx.Sub(target)
	stmt := &sqldsl.Select{From: sqldsl.TableAs{Name: rel.Table, Alias: alias}}

	group, parentCol, err := joinChainReversed(ctx, stmt, rel, target)
	if err != nil {
		return err
	}
	if err := compileItems(sub, stmt, rel); err != nil {
		return err
	}
	ensureData(stmt)
	if err := ConvertDataFieldsToAgg(stmt, nil); err != nil {
		return err
	}
	stmt.AddField(group, groupField)
	stmt.GroupBy = append(stmt.GroupBy, group)

	kind := sqldsl.LeftJoin
	switch {
	case rel.MinCount == 1:
		kind = sqldsl.InnerJoin
	case rel.MinCount > 1:
		stmt.Having = sqldsl.AndAll(stmt.Having, sqldsl.Compare{
			Left:  sqldsl.Count(nil),
			Op:    sqldsl.OpGte,
			Right: ctx.build.Param(rel.MinCount),
		})
	}

	derived := ctx.GenTableAlias()
	parent.AddJoin(kind, sqldsl.Derived{Select: stmt, Alias: derived}, sqldsl.Compare{
		Left:  sqldsl.Col(derived, groupField),
		Op:    sqldsl.OpEq,
		Right: parentCol,
	})
	ctx.logger.Debug("compiled relation", "kind", rel.Kind, "table", rel.Table, "alias", alias,
		"derived", derived, "through", len(rel.Through), "depth", ctx.Depth)
	return AddReferencesToChildFields(parent, derived, stmt, rel.OutputName(), true)
}

// compileOne joins the target directly onto the parent. Filters declared
// on the relation become filters of the parent.
func compileOne(ctx *Context, parent *sqldsl.Select, rel *Relation) error {
	alias := ctx.GenTableAlias()
	target := TableRef{Name: rel.Table, Alias: alias}
	sub := ctx.Sub(target)
	scratch := &sqldsl.Select{From: sqldsl.TableAs{Name: rel.Table, Alias: alias}}

	if err := compileItems(sub, scratch, rel); err != nil {
		return err
	}
	ensureData(scratch)

	next, prev, err := link(ctx.Table, target, rel.linkKind(), rel.ForeignKey)
	if err != nil {
		return err
	}
	kind := sqldsl.LeftJoin
	if rel.MinCount > 0 {
		kind = sqldsl.InnerJoin
	}
	parent.AddJoin(kind, sqldsl.TableAs{Name: rel.Table, Alias: alias},
		sqldsl.Compare{Left: next, Op: sqldsl.OpEq, Right: prev})
	parent.Joins = append(parent.Joins, scratch.Joins...)
	parent.AndWhere(scratch.Where)

	data, _ := scratch.Field(DataField)
	ctx.logger.Debug("compiled relation", "kind", rel.Kind, "table", rel.Table, "alias", alias, "depth", ctx.Depth)
	return AddField(parent, DataField, rel.OutputName(), sqldsl.Case{
		When: sqldsl.Compare{Left: sqldsl.Col(alias, "id"), Op: sqldsl.OpIs, Right: sqldsl.Null},
		Then: sqldsl.Null,
		Else: data,
	})
}

// compileOneThrough embeds a single row reached through intermediate tables
// as a correlated lateral subquery.
func compileOneThrough(ctx *Context, parent *sqldsl.Select, rel *Relation) error {
	chain := hopLinks(ctx, rel)
	target := TableRef{Name: rel.Table, Alias: ctx.GenTableAlias()}
	chain = append(chain, targetLink(rel, target))
	first := chain[0]

	inner := &sqldsl.Select{From: sqldsl.TableAs{Name: first.ref.Name, Alias: first.ref.Alias}}
	next, prev, err := link(ctx.Table, first.ref, first.kind, first.fk)
	if err != nil {
		return err
	}
	inner.AndWhere(sqldsl.Compare{Left: next, Op: sqldsl.OpEq, Right: prev})
	for i := 1; i < len(chain); i++ {
		cond, err := linkCond(chain[i-1].ref, chain[i])
		if err != nil {
			return err
		}
		inner.AddJoin(sqldsl.InnerJoin, sqldsl.TableAs{Name: chain[i].ref.Name, Alias: chain[i].ref.Alias}, cond)
	}

	sub := ctx.Sub(target)
	if err := compileItems(sub, inner, rel); err != nil {
		return err
	}
	ensureData(inner)
	inner.Limit = sqldsl.Limit1

	lateral := ctx.GenTableAlias()
	kind := sqldsl.LeftJoinLateral
	if rel.MinCount > 0 {
		kind = sqldsl.CrossJoinLateral
	}
	parent.AddJoin(kind, sqldsl.Derived{Select: inner, Alias: lateral}, sqldsl.True)
	ctx.logger.Debug("compiled relation", "kind", rel.Kind, "table", rel.Table, "alias", target.Alias,
		"lateral", lateral, "through", len(rel.Through), "depth", ctx.Depth)
	return AddField(parent, DataField, rel.OutputName(), sqldsl.Col(lateral, DataField))
}

// chainLink is one element of a through-chain together with the link that
// leads into it from the element before.
type chainLink struct {
	ref  TableRef
	kind Kind
	fk   string
}

// hopLinks allocates aliases for rel's hops in declaration order.
func hopLinks(ctx *Context, rel *Relation) []chainLink {
	chain := make([]chainLink, 0, len(rel.Through)+1)
	for _, h := range rel.Through {
		chain = append(chain, chainLink{
			ref:  TableRef{Name: h.Table, Alias: ctx.GenTableAlias()},
			kind: h.Kind,
			fk:   h.ForeignKey,
		})
	}
	return chain
}

func targetLink(rel *Relation, target TableRef) chainLink {
	return chainLink{ref: target, kind: rel.linkKind(), fk: rel.ForeignKey}
}

// joinChainReversed inner-joins rel's hops onto stmt, walking from the
// target back towards the parent. It returns the column of the element
// adjacent to the parent that identifies the parent row, and the parent
// column it must equal.
func joinChainReversed(ctx *Context, stmt *sqldsl.Select, rel *Relation, target TableRef) (group, parentCol sqldsl.Column, err error) {
	chain := append(hopLinks(ctx, rel), targetLink(rel, target))
	for i := len(chain) - 2; i >= 0; i-- {
		cond, err := linkCond(chain[i].ref, chain[i+1])
		if err != nil {
			return group, parentCol, err
		}
		stmt.AddJoin(sqldsl.InnerJoin, sqldsl.TableAs{Name: chain[i].ref.Name, Alias: chain[i].ref.Alias}, cond)
	}
	return link(ctx.Table, chain[0].ref, chain[0].kind, chain[0].fk)
}

// link applies the foreign-key rule between prev and next. For a many link
// next holds the key (next.fk = prev.id, fk defaulting to prev_id); for a
// one link prev holds it (prev.fk = next.id, fk defaulting to next_id).
// It returns the next-side and prev-side columns of the comparison.
func link(prev, next TableRef, kind Kind, fk string) (nextCol, prevCol sqldsl.Column, err error) {
	switch kind {
	case KindMany:
		if fk == "" {
			fk = guessForeignKey(prev.Name)
		}
		return sqldsl.Col(next.Alias, fk), sqldsl.Col(prev.Alias, "id"), nil
	case KindOne:
		if fk == "" {
			fk = guessForeignKey(next.Name)
		}
		return sqldsl.Col(next.Alias, "id"), sqldsl.Col(prev.Alias, fk), nil
	default:
		return nextCol, prevCol, fmt.Errorf("%w: %s -> %s: link kind %s", ErrInvalidRelation, prev.Name, next.Name, kind)
	}
}

func linkCond(prev TableRef, next chainLink) (sqldsl.Node, error) {
	n, p, err := link(prev, next.ref, next.kind, next.fk)
	if err != nil {
		return nil, err
	}
	return sqldsl.Compare{Left: n, Op: sqldsl.OpEq, Right: p}, nil
}

// guessForeignKey derives the conventional key column pointing at table.
// A schema qualifier is dropped.
func guessForeignKey(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	return strings.ToLower(table) + "_id"
}
