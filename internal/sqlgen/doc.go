// Package sqlgen compiles a declared relation tree into a single PostgreSQL
// SELECT that returns one JSON document.
//
// # Overview
//
// Callers declare root relations with child items: field projections,
// injected values, predicates, ordering, aggregate groups, nested relations
// and a pagination strategy. Compile walks the tree depth first; each
// relation lowers itself into the sqldsl IR against a Context positioned on
// its table, and the finished statement is rendered once at the end.
//
//	users := &Relation{Table: "users", Kind: KindRoot}
//	users.Select("id", "name").With(
//	    Where("age", sqldsl.OpGte, 18),
//	    (&Relation{Table: "posts", Kind: KindMany}).Select("title"),
//	)
//	res, err := Compile([]*Relation{users}, Options{})
//
// # Relation Kinds
//
//   - Root: compiled into a CTE named root_<name>; several roots are
//     CROSS JOINed into the top-level statement.
//   - Many: compiled into a derived table grouped by the column tying each
//     row to its parent, joined on that column and aggregated into an
//     array that is [] when nothing matches.
//   - One: LEFT JOINed directly onto the parent and rendered as an object
//     or null. With a through-chain it becomes a LEFT JOIN LATERAL
//     subquery limited to one row.
//
// # Foreign Keys
//
// A many link is next.fk = prev.id with fk defaulting to <prev>_id; a one
// link is prev.fk = next.id with fk defaulting to <next>_id. Through-chains
// apply the rule hop by hop.
//
// # Pagination
//
// Pagination is allowed on roots only and runs after all other items.
// OffsetLimit windows the root's source; Keyset adds the
// pagination_constants, pagination_filtered, pagination_page_plus_one and
// pagination_next_cursor CTEs to the root statement.
package sqlgen
