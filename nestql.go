// Package nestql compiles a tree of related tables into a single PostgreSQL
// SELECT that returns one row with one JSON column.
//
// A query is declared as a tree of relations. Each root becomes a CTE that
// aggregates its rows into a JSON array; nested relations are joined in and
// rendered as arrays (many) or objects (one) inside their parent's rows.
//
// # Basic Usage
//
//	q := nestql.NewQuery(
//	    nestql.From("users").With(
//	        nestql.Fields("id", "name"),
//	        nestql.Where("active", nestql.Eq, true),
//	        nestql.Many("posts").With(
//	            nestql.Fields("id", "title"),
//	            nestql.OrderByDesc("created_at"),
//	        ),
//	    ),
//	)
//	sql, params, err := q.Build()
//
// The statement returns a single column named data:
//
//	{"users": [{"id": 1, "name": "ada", "posts": [{"id": 3, "title": "hi"}]}]}
//
// Empty many relations render as [] and missing one relations as null.
//
// # Foreign Keys
//
// Join columns are guessed from table names: a many relation from users to
// posts joins posts.users_id to users.id, and a one relation from posts to
// users joins users.id to posts.users_id. Override the guess with
// WithForeignKey, or walk intermediate tables with ThroughMany and
// ThroughOne.
//
// # Pagination
//
// Roots accept Paginate (page number) or Keyset (cursor) items. Both add a
// pagination object next to the root's array, keyed <root>Pagination:
//
//	nestql.From("users").With(nestql.Fields("id"), nestql.Paginate(2, 20))
//
// # Executing
//
// Fetch runs the statement on any database/sql querier and decodes the JSON
// document:
//
//	var out struct{ Users []User `json:"users"` }
//	err := q.Fetch(ctx, db, &out)
package nestql

import (
	"context"
	"database/sql"
)

// Querier executes queries against PostgreSQL.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
