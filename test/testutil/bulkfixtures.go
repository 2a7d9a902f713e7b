package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// BulkFixtures loads large fixture sets with COPY FROM, which is much faster
// than INSERT for benchmark-sized data. It needs a pgx-backed *sql.DB.
type BulkFixtures struct {
	db  *sql.DB
	ctx context.Context
}

// NewBulkFixtures creates a BulkFixtures writing to db.
func NewBulkFixtures(ctx context.Context, db *sql.DB) *BulkFixtures {
	return &BulkFixtures{db: db, ctx: ctx}
}

// copyFrom streams tab-delimited rows into table.
func (bf *BulkFixtures) copyFrom(table string, columns []string, data io.Reader) error {
	conn, err := bf.db.Conn(bf.ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var pgxConn *pgx.Conn
	err = conn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("not a pgx connection (got %T)", driverConn)
		}
		pgxConn = c.Conn()
		return nil
	})
	if err != nil {
		return fmt.Errorf("access pgx connection: %w", err)
	}

	query := fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT text)", table, strings.Join(columns, ", "))
	if _, err := pgxConn.PgConn().CopyFrom(bf.ctx, data, query); err != nil {
		return fmt.Errorf("COPY FROM %s: %w", table, err)
	}
	return nil
}

// CreateUsers loads n users named bulk_user_<i> and returns their IDs in
// ascending order.
func (bf *BulkFixtures) CreateUsers(n int) ([]int64, error) {
	if n == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	for i := range n {
		fmt.Fprintf(&buf, "bulk_user_%d\t%d\n", i, 18+i%60)
	}
	if err := bf.copyFrom("users", []string{"username", "age"}, &buf); err != nil {
		return nil, err
	}
	return bf.ids("users", n)
}

// CreatePosts loads perUser posts for every user.
func (bf *BulkFixtures) CreatePosts(userIDs []int64, perUser int) error {
	var buf bytes.Buffer
	for _, u := range userIDs {
		for i := range perUser {
			fmt.Fprintf(&buf, "%d\tpost %d of %d\t%d\n", u, i, u, i%10)
		}
	}
	return bf.copyFrom("posts", []string{"users_id", "title", "score"}, &buf)
}

// ids returns the last n IDs of table in ascending order.
func (bf *BulkFixtures) ids(table string, n int) ([]int64, error) {
	rows, err := bf.db.QueryContext(bf.ctx,
		"SELECT id FROM (SELECT id FROM "+table+" ORDER BY id DESC LIMIT $1) AS t ORDER BY id", n)
	if err != nil {
		return nil, fmt.Errorf("fetch %s IDs: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0, n)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
