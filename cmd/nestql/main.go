// Command nestql compiles YAML query documents into a single PostgreSQL
// statement returning JSON, and optionally runs them.
//
// Usage:
//
//	nestql [flags] <command>
//
// compile only reads the query document; run also needs a database from
// --db, database.url in nestql.yaml, or NESTQL_DATABASE_URL.
package main

func main() {
	Execute()
}
