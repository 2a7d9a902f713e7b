package sqlgen

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/pthm/nestql/internal/sqlgen/sqldsl"
)

// Pagination defaults.
const (
	DefaultPage     = 1
	DefaultPageSize = 30
)

// PaginationField is the JSON group pagination metadata renders under.
const PaginationField = "pagination"

// Keyset pagination CTE names.
const (
	cteConstants = "pagination_constants"
	cteFiltered  = "pagination_filtered"
	ctePlusOne   = "pagination_page_plus_one"
	cteCursor    = "pagination_next_cursor"
	rowNumber    = "_row_number"
)

// paginate rewrites a compiled root statement. It runs after every other
// item, while the statement still carries its ORDER BY.
func paginate(ctx *Context, stmt *sqldsl.Select, s Strategy) error {
	switch s := s.(type) {
	case OffsetLimit:
		return paginateOffset(ctx, stmt, s)
	case Keyset:
		return paginateKeyset(ctx, stmt, s)
	default:
		return fmt.Errorf("%w: unsupported pagination strategy %T", ErrInvalidRelation, s)
	}
}

// filterJoins returns the joins a statement's row set depends on: all of
// them when any join filters rows or the WHERE tree references a joined
// table, none otherwise.
func filterJoins(stmt *sqldsl.Select) ([]sqldsl.Join, error) {
	if len(stmt.Joins) == 0 {
		return nil, nil
	}
	tables, err := whereTables(stmt.Where)
	if err != nil {
		return nil, err
	}
	for _, j := range stmt.Joins {
		if j.Kind == sqldsl.InnerJoin || j.Kind == sqldsl.CrossJoinLateral || tables[j.Alias()] {
			return slices.Clone(stmt.Joins), nil
		}
	}
	return nil, nil
}

// paginateOffset replaces the statement's source with a window of one page
// under the same alias and adds page metadata computed over the filtered,
// unpaged rows.
func paginateOffset(ctx *Context, stmt *sqldsl.Select, s OffsetLimit) error {
	page, size := s.Page, s.PageSize
	if page <= 0 {
		page = DefaultPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	alias := stmt.SourceAlias()
	if len(stmt.OrderBy) == 0 {
		stmt.OrderBy = []sqldsl.OrderCol{{Node: sqldsl.Col(alias, "id")}}
	}

	joins, err := filterJoins(stmt)
	if err != nil {
		return err
	}
	bc := ctx.build
	sizeP := bc.Param(size)
	offsetP := bc.Param((page - 1) * size)
	pageP := bc.Param(page)

	window := &sqldsl.Select{
		From:    stmt.From,
		Joins:   joins,
		Where:   stmt.Where,
		OrderBy: slices.Clone(stmt.OrderBy),
		Limit:   sizeP,
		Offset:  offsetP,
	}
	window.AddField(sqldsl.Star{Table: alias}, "")

	filtered := func(field sqldsl.Node) sqldsl.Node {
		sel := &sqldsl.Select{From: stmt.From, Joins: joins, Where: stmt.Where}
		sel.AddField(field, "")
		return sqldsl.Subquery{Select: sel}
	}
	pageCount := sqldsl.Cast{
		Inner: sqldsl.Func{Name: "ceil", Args: []sqldsl.Node{
			sqldsl.BinaryOp{Op: "/", Left: sqldsl.Cast{Inner: sqldsl.Count(nil), Type: "float8"}, Right: sizeP},
		}},
		Type: "int",
	}

	for _, f := range []struct {
		key  string
		node sqldsl.Node
	}{
		{"pageCount", filtered(pageCount)},
		{"rowCount", filtered(sqldsl.Count(nil))},
		{"page", pageP},
		{"pageSize", sizeP},
	} {
		if err := AddField(stmt, PaginationField, f.key, f.node); err != nil {
			return err
		}
	}

	stmt.From = sqldsl.Derived{Select: window, Alias: alias}
	stmt.Where = nil
	ctx.logger.Debug("applied offset pagination", "alias", alias, "page", page, "pageSize", size)
	return nil
}

// keysetOrder derives the ordering key from the statement's first ORDER BY
// column plus an id tiebreaker. Pages are cut on the key alone, so the
// statement's ordering is replaced by the key and any further declared
// columns are dropped.
func keysetOrder(stmt *sqldsl.Select) (keys []string, desc bool) {
	alias := stmt.SourceAlias()
	if len(stmt.OrderBy) > 0 {
		if c, ok := stmt.OrderBy[0].Node.(sqldsl.Column); ok && (c.Table == "" || c.Table == alias) {
			keys = append(keys, c.Name)
			desc = stmt.OrderBy[0].Desc
		}
	}
	if !slices.Contains(keys, "id") {
		keys = append(keys, "id")
	}

	order := make([]sqldsl.OrderCol, len(keys))
	for i, k := range keys {
		order[i] = sqldsl.OrderCol{Node: sqldsl.Col(alias, k), Desc: desc}
	}
	stmt.OrderBy = order
	return keys, desc
}

// paginateKeyset restricts the statement to one page starting at the
// cursor row and exposes the cursor of the following page.
func paginateKeyset(ctx *Context, stmt *sqldsl.Select, s Keyset) error {
	size := max(s.PageSize, 1)
	alias := stmt.SourceAlias()
	source, ok := stmt.From.(sqldsl.TableAs)
	if !ok {
		return fmt.Errorf("%w: keyset pagination needs a table source", ErrInvalidRelation)
	}

	keys, desc := keysetOrder(stmt)
	var cursor map[string]any
	if s.Cursor != "" {
		var err error
		if cursor, err = DecodeCursor(s.Cursor); err != nil {
			return err
		}
		for _, k := range keys {
			if _, ok := cursor[k]; !ok {
				return fmt.Errorf("%w: missing key %q", ErrInvalidCursor, k)
			}
		}
	}

	joins, err := filterJoins(stmt)
	if err != nil {
		return err
	}
	bc := ctx.build

	constants := &sqldsl.Select{}
	constants.AddField(bc.Param(size), "page_size")
	stmt.SetCTE(cteConstants, constants)

	base := source.Name
	if stmt.Where != nil || len(joins) > 0 {
		filtered := &sqldsl.Select{From: stmt.From, Joins: joins, Where: stmt.Where}
		filtered.AddField(sqldsl.Star{Table: alias}, "")
		stmt.SetCTE(cteFiltered, filtered)
		base = cteFiltered
	}

	p := ctx.GenTableAlias()
	order := make([]sqldsl.OrderCol, len(keys))
	keyCols := make([]sqldsl.Node, len(keys))
	for i, k := range keys {
		keyCols[i] = sqldsl.Col(p, k)
		order[i] = sqldsl.OrderCol{Node: keyCols[i], Desc: desc}
	}

	plusOne := &sqldsl.Select{
		From:    sqldsl.TableAs{Name: base, Alias: p},
		OrderBy: order,
		Limit:   constant(sqldsl.BinaryOp{Op: "+", Left: sqldsl.Column{Name: "page_size"}, Right: sqldsl.Int(1)}),
	}
	plusOne.AddField(sqldsl.Star{Table: p}, "")
	plusOne.AddField(sqldsl.Window{Func: sqldsl.Func{Name: "row_number"}, OrderBy: order}, rowNumber)
	if cursor != nil {
		values := make([]sqldsl.Node, len(keys))
		for i, k := range keys {
			values[i] = bc.ParamCast(cursor[k], "")
		}
		op := sqldsl.OpGte
		if desc {
			op = sqldsl.OpLte
		}
		plusOne.Where = sqldsl.Compare{Left: sqldsl.Tuple{Items: keyCols}, Op: op, Right: sqldsl.Tuple{Items: values}}
	}
	stmt.SetCTE(ctePlusOne, plusOne)

	pairs := make([]sqldsl.Node, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, sqldsl.Lit(k), sqldsl.Col(p, k))
	}
	next := &sqldsl.Select{
		From: sqldsl.TableAs{Name: ctePlusOne, Alias: p},
		Where: sqldsl.Compare{
			Left:  sqldsl.Col(p, rowNumber),
			Op:    sqldsl.OpEq,
			Right: constant(sqldsl.BinaryOp{Op: "+", Left: sqldsl.Column{Name: "page_size"}, Right: sqldsl.Int(1)}),
		},
	}
	next.AddField(encodeCursor(sqldsl.Func{Name: sqldsl.JSONBuildObject, Args: pairs}), "cursor")
	stmt.SetCTE(cteCursor, next)

	pageRows := &sqldsl.Select{
		From: sqldsl.Table{Name: ctePlusOne},
		Where: sqldsl.Compare{
			Left:  sqldsl.Column{Name: rowNumber},
			Op:    sqldsl.OpLte,
			Right: constant(sqldsl.Column{Name: "page_size"}),
		},
	}
	stmt.From = sqldsl.Derived{Select: pageRows, Alias: alias}
	stmt.Where = nil

	var prev sqldsl.Node = sqldsl.Cast{Inner: sqldsl.Null, Type: "text"}
	if s.Cursor != "" {
		prev = bc.ParamCast(s.Cursor, "text")
	}
	nextCursor := &sqldsl.Select{From: sqldsl.Table{Name: cteCursor}}
	nextCursor.AddField(sqldsl.Column{Name: "cursor"}, "")
	rowCount := &sqldsl.Select{From: sqldsl.Table{Name: base}}
	rowCount.AddField(sqldsl.Count(nil), "")

	for _, f := range []struct {
		key  string
		node sqldsl.Node
	}{
		{"next", sqldsl.Subquery{Select: nextCursor}},
		{"prev", prev},
		{"rowCount", sqldsl.Subquery{Select: rowCount}},
	} {
		if err := AddField(stmt, PaginationField, f.key, f.node); err != nil {
			return err
		}
	}
	ctx.logger.Debug("applied keyset pagination", "alias", alias, "keys", keys, "desc", desc, "pageSize", size)
	return nil
}

// constant reads an expression over pagination_constants.
func constant(expr sqldsl.Node) sqldsl.Node {
	sel := &sqldsl.Select{From: sqldsl.Table{Name: cteConstants}}
	sel.AddField(expr, "")
	return sqldsl.Subquery{Select: sel}
}

// encodeCursor renders base64(utf8(obj::text)) without line breaks.
func encodeCursor(obj sqldsl.Node) sqldsl.Node {
	utf8 := sqldsl.Func{Name: "convert_to", Args: []sqldsl.Node{
		sqldsl.Cast{Inner: obj, Type: "text"},
		sqldsl.Lit("utf8"),
	}}
	encoded := sqldsl.Func{Name: "encode", Args: []sqldsl.Node{utf8, sqldsl.Lit("base64")}}
	return sqldsl.Func{Name: "replace", Args: []sqldsl.Node{encoded, sqldsl.Raw{SQL: `E'\n'`}, sqldsl.Lit("")}}
}

// DecodeCursor decodes a keyset cursor into its ordering-key values.
// Integral numbers decode as int64 and other numbers as float64.
func DecodeCursor(cursor string) (map[string]any, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(cursor), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if values == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidCursor)
	}
	for k, v := range values {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			values[k] = i
		} else if f, err := n.Float64(); err == nil {
			values[k] = f
		}
	}
	return values, nil
}

// EncodeCursor is the client-side counterpart of the cursor the
// statement emits.
func EncodeCursor(values map[string]any) (string, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
