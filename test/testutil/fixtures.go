package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Fixtures inserts rows into the fixture schema.
type Fixtures struct {
	db  *sql.DB
	ctx context.Context
}

// NewFixtures creates a Fixtures writing to db.
func NewFixtures(ctx context.Context, db *sql.DB) *Fixtures {
	return &Fixtures{db: db, ctx: ctx}
}

func (f *Fixtures) insert(query string, args ...any) (int64, error) {
	var id int64
	err := f.db.QueryRowContext(f.ctx, query+" RETURNING id", args...).Scan(&id)
	return id, err
}

// CreateUser inserts a user. A zero age is stored as NULL.
func (f *Fixtures) CreateUser(username string, age int) (int64, error) {
	var a any
	if age != 0 {
		a = age
	}
	return f.insert("INSERT INTO users (username, age) VALUES ($1, $2)", username, a)
}

// CreateProfile inserts the profile of a user.
func (f *Fixtures) CreateProfile(userID int64, bio string) (int64, error) {
	return f.insert("INSERT INTO profiles (users_id, bio) VALUES ($1, $2)", userID, bio)
}

// CreatePost inserts a post by a user.
func (f *Fixtures) CreatePost(userID int64, title string, score int) (int64, error) {
	return f.insert("INSERT INTO posts (users_id, title, score) VALUES ($1, $2, $3)", userID, title, score)
}

// CreateComment inserts a comment on a post.
func (f *Fixtures) CreateComment(postID, authorID int64, body string) (int64, error) {
	return f.insert("INSERT INTO comments (posts_id, author_id, body) VALUES ($1, $2, $3)", postID, authorID, body)
}

// CreateTag inserts a tag.
func (f *Fixtures) CreateTag(name string) (int64, error) {
	return f.insert("INSERT INTO tags (name) VALUES ($1)", name)
}

// TagPost links a post to a tag.
func (f *Fixtures) TagPost(postID, tagID int64) error {
	_, err := f.insert("INSERT INTO post_tags (posts_id, tags_id) VALUES ($1, $2)", postID, tagID)
	return err
}

// CreateUsers inserts n users named user_<i> and returns their IDs in
// insertion order.
func (f *Fixtures) CreateUsers(n int) ([]int64, error) {
	ids := make([]int64, 0, n)
	const batchSize = 1000
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		batch, err := f.insertUsersBatch(start, end)
		if err != nil {
			return nil, fmt.Errorf("insert users batch %d-%d: %w", start, end, err)
		}
		ids = append(ids, batch...)
	}
	return ids, nil
}

func (f *Fixtures) insertUsersBatch(start, end int) ([]int64, error) {
	var query strings.Builder
	query.WriteString("INSERT INTO users (username) VALUES ")
	args := make([]any, 0, end-start)
	for i := start; i < end; i++ {
		if i > start {
			query.WriteString(", ")
		}
		fmt.Fprintf(&query, "($%d)", i-start+1)
		args = append(args, fmt.Sprintf("user_%d", i))
	}
	query.WriteString(" RETURNING id")

	rows, err := f.db.QueryContext(f.ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0, end-start)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
