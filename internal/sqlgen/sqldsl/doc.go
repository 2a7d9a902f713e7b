// Package sqldsl provides the SQL intermediate representation used by the
// nestql compiler.
//
// # Overview
//
// Rather than concatenating SQL strings, the compiler builds a tree of typed
// nodes and renders it once at the end. Every node implements Node and writes
// itself to a shared Formatter through a RenderContext; rendering is a pure
// traversal, so the same tree always produces the same text.
//
// # Expression Types
//
//	Col("t1", "id")                       // t1.id
//	Column{Name: "id"}                    // <default table>.id
//	Lit("users")                          // 'users'
//	Placeholder{Index: 1, Cast: "text"}   // $1::text
//	Raw{SQL: "'[]'", Cast: "jsonb"}       // '[]'::jsonb
//	Func{Name: "coalesce", Args: ...}     // coalesce(...)
//	Agg{Name: "jsonb_agg", OrderBy: ...}  // jsonb_agg(... ORDER BY ...)
//	Compare{Left, OpEq, Right}            // left = right
//	Or{Left, Right}, And{Left, Right}     // no implicit parentheses
//	Group{Inner}                          // (inner)
//
// # Statements
//
// Select is the only statement. It owns its fields, source, joins, CTEs and
// clauses as growable slices:
//
//	s := &Select{From: TableAs{Name: "users", Alias: "t1"}}
//	s.AddField(Col("t1", "id"), "id")
//	s.AddJoin(LeftJoin, TableAs{Name: "profiles", Alias: "t2"},
//	    Compare{Left: Col("t1", "profiles_id"), Op: OpEq, Right: Col("t2", "id")})
//	sql := SQL(s)
//
// Unqualified columns resolve against the default table of the statement
// being rendered (its FROM alias).
package sqldsl
