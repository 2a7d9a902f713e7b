package test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/nestql"
	"github.com/pthm/nestql/test/testutil"
)

// seed creates five users a..e. a has a profile and two posts with
// comments and tags; c has one post; the rest have nothing.
func seed(t *testing.T, db *sql.DB) map[string]int64 {
	t.Helper()
	f := testutil.NewFixtures(context.Background(), db)
	ids := make(map[string]int64)

	for i, name := range []string{"a", "b", "c", "d", "e"} {
		id, err := f.CreateUser(name, 20+i)
		require.NoError(t, err)
		ids[name] = id
	}
	_, err := f.CreateProfile(ids["a"], "first user")
	require.NoError(t, err)

	p1, err := f.CreatePost(ids["a"], "hello", 5)
	require.NoError(t, err)
	p2, err := f.CreatePost(ids["a"], "again", 9)
	require.NoError(t, err)
	_, err = f.CreatePost(ids["c"], "mine", 1)
	require.NoError(t, err)

	_, err = f.CreateComment(p1, ids["b"], "nice")
	require.NoError(t, err)
	_, err = f.CreateComment(p1, ids["c"], "agreed")
	require.NoError(t, err)

	goTag, err := f.CreateTag("go")
	require.NoError(t, err)
	sqlTag, err := f.CreateTag("sql")
	require.NoError(t, err)
	require.NoError(t, f.TagPost(p1, goTag))
	require.NoError(t, f.TagPost(p1, sqlTag))
	require.NoError(t, f.TagPost(p2, sqlTag))

	return ids
}

func fetch(t *testing.T, db *sql.DB, roots ...*nestql.Relation) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, nestql.NewQuery(roots...).Fetch(context.Background(), db, &out))
	return out
}

func rows(t *testing.T, v any) []map[string]any {
	t.Helper()
	list, ok := v.([]any)
	require.True(t, ok, "expected a JSON array, got %T", v)
	out := make([]map[string]any, len(list))
	for i, e := range list {
		out[i], ok = e.(map[string]any)
		require.True(t, ok, "expected objects, got %T", e)
	}
	return out
}

func usernames(t *testing.T, v any) []string {
	t.Helper()
	var names []string
	for _, r := range rows(t, v) {
		names = append(names, r["username"].(string))
	}
	return names
}

func TestFetch_EmptyShapes(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)

	out := fetch(t, db, nestql.From("users").With(
		nestql.Fields("username"),
		nestql.Where("username", nestql.Eq, "b"),
		nestql.Many("posts").With(nestql.Fields("title")),
		nestql.One("profiles").As("profile").LinkMany().With(nestql.Fields("bio")),
	))

	users := rows(t, out["users"])
	require.Len(t, users, 1)
	assert.Equal(t, []any{}, users[0]["posts"], "no posts renders []")
	assert.Contains(t, users[0], "profile")
	assert.Nil(t, users[0]["profile"], "no profile renders null")

	out = fetch(t, db, nestql.From("users").With(nestql.Where("username", nestql.Eq, "nobody")))
	assert.Equal(t, []any{}, out["users"], "an empty root renders []")

	out = fetch(t, db)
	assert.Empty(t, out)
}

func TestFetch_Tree(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)

	type comment struct {
		Body   string `json:"body"`
		Author struct {
			Username string `json:"username"`
		} `json:"author"`
	}
	type post struct {
		Title    string    `json:"title"`
		Comments []comment `json:"comments"`
		Tags     []struct {
			Name string `json:"name"`
		} `json:"tags"`
	}
	type user struct {
		Username string `json:"username"`
		Kind     string `json:"kind"`
		Posts    []post `json:"posts"`
		Profile  *struct {
			Bio string `json:"bio"`
		} `json:"profile"`
	}
	var out struct {
		Users []user `json:"users"`
	}

	q := nestql.NewQuery(nestql.From("users").With(
		nestql.Fields("username"),
		nestql.Value("kind", "person"),
		nestql.Where("username", nestql.In, []string{"a", "c"}),
		nestql.OrderBy("username"),
		nestql.One("profiles").As("profile").LinkMany().With(nestql.Fields("bio")),
		nestql.Many("posts").With(
			nestql.Fields("title"),
			nestql.OrderByDesc("score"),
			nestql.Many("comments").With(
				nestql.Fields("body"),
				nestql.OrderBy("id"),
				nestql.One("users").As("author").WithForeignKey("author_id").With(nestql.Fields("username")),
			),
			nestql.Many("tags").ThroughMany("post_tags").LinkOne().With(
				nestql.Fields("name"),
				nestql.OrderBy("name"),
			),
		),
	))
	require.NoError(t, q.Fetch(context.Background(), db, &out))

	require.Len(t, out.Users, 2)
	a, c := out.Users[0], out.Users[1]

	assert.Equal(t, "a", a.Username)
	assert.Equal(t, "person", a.Kind)
	require.NotNil(t, a.Profile)
	assert.Equal(t, "first user", a.Profile.Bio)
	require.Len(t, a.Posts, 2)
	assert.Equal(t, "again", a.Posts[0].Title, "ordered by score descending")
	assert.Empty(t, a.Posts[0].Comments)
	require.Len(t, a.Posts[1].Comments, 2)
	assert.Equal(t, "nice", a.Posts[1].Comments[0].Body)
	assert.Equal(t, "b", a.Posts[1].Comments[0].Author.Username)
	require.Len(t, a.Posts[1].Tags, 2)
	assert.Equal(t, "go", a.Posts[1].Tags[0].Name)

	assert.Equal(t, "c", c.Username)
	assert.Nil(t, c.Profile)
	require.Len(t, c.Posts, 1)
	assert.Empty(t, c.Posts[0].Tags)
}

func TestFetch_ExistenceFiltering(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)

	out := fetch(t, db, nestql.From("users").With(
		nestql.Fields("username"),
		nestql.OrderBy("username"),
		nestql.Many("posts").AtLeast(1),
	))
	assert.Equal(t, []string{"a", "c"}, usernames(t, out["users"]))

	out = fetch(t, db, nestql.From("users").With(
		nestql.Fields("username"),
		nestql.Many("posts").AtLeast(2),
	))
	assert.Equal(t, []string{"a"}, usernames(t, out["users"]))

	out = fetch(t, db, nestql.From("users").With(
		nestql.Fields("username"),
		nestql.OrderBy("username"),
		nestql.One("profiles").LinkMany().AtLeast(1),
	))
	assert.Equal(t, []string{"a"}, usernames(t, out["users"]))
}

func TestFetch_RootExistenceFiltering(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)

	out := fetch(t, db,
		nestql.From("users").AtLeast(10).With(nestql.Fields("username")),
		nestql.From("posts").With(nestql.Fields("title")),
	)
	assert.Equal(t, []any{}, out["users"], "a root below its minimum renders []")
	assert.Len(t, rows(t, out["posts"]), 3, "sibling roots are unaffected")

	out = fetch(t, db, nestql.From("users").AtLeast(5).With(
		nestql.Fields("username"),
		nestql.OrderBy("username"),
	))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, usernames(t, out["users"]))
}

func TestFetch_IsComparisons(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)
	_, err := db.Exec("UPDATE users SET active = false WHERE username IN ('b', 'd')")
	require.NoError(t, err)

	out := fetch(t, db, nestql.From("users").With(
		nestql.Fields("username"),
		nestql.Where("active", nestql.Is, false).And("age", nestql.IsNot, nil),
		nestql.OrderBy("username"),
	))
	assert.Equal(t, []string{"b", "d"}, usernames(t, out["users"]))
}

func TestFetch_Aggregates(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)

	out := fetch(t, db, nestql.From("users").With(
		nestql.Fields("username"),
		nestql.Where("username", nestql.Eq, "a"),
		nestql.Aggregate("stats", nestql.Count()),
		nestql.Many("posts").With(
			nestql.Aggregate("stats", nestql.Count(), nestql.Sum("score"), nestql.Max("score")),
		),
	))

	assert.Equal(t, map[string]any{"count": float64(1)}, out["usersStats"])
	users := rows(t, out["users"])
	require.Len(t, users, 1)
	assert.Equal(t, map[string]any{"count": float64(2), "sum": float64(14), "max": float64(9)}, users[0]["postsStats"])
}

func TestFetch_OffsetPagination(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)

	page := func(n int) map[string]any {
		return fetch(t, db, nestql.From("users").With(
			nestql.Fields("username"),
			nestql.OrderBy("username"),
			nestql.Paginate(n, 2),
		))
	}

	first := page(1)
	assert.Equal(t, []string{"a", "b"}, usernames(t, first["users"]))
	assert.Equal(t, map[string]any{
		"pageCount": float64(3),
		"rowCount":  float64(5),
		"page":      float64(1),
		"pageSize":  float64(2),
	}, first["usersPagination"])

	last := page(3)
	assert.Equal(t, []string{"e"}, usernames(t, last["users"]))

	past := page(4)
	assert.Equal(t, []any{}, past["users"])
	assert.Equal(t, float64(5), past["usersPagination"].(map[string]any)["rowCount"])
}

func TestFetch_OffsetPaginationCountsFilteredRows(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)

	out := fetch(t, db, nestql.From("users").With(
		nestql.Fields("username"),
		nestql.Where("age", nestql.Gte, 22),
		nestql.Paginate(1, 10),
	))
	assert.Len(t, rows(t, out["users"]), 3)
	assert.Equal(t, float64(3), out["usersPagination"].(map[string]any)["rowCount"])
}

func TestFetch_KeysetPagination(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)

	page := func(cursor string) (names []string, next, prev any, total any) {
		out := fetch(t, db, nestql.From("users").With(
			nestql.Fields("username"),
			nestql.OrderBy("username"),
			nestql.Keyset(cursor, 2),
		))
		p := out["usersPagination"].(map[string]any)
		return usernames(t, out["users"]), p["next"], p["prev"], p["rowCount"]
	}

	names, next, prev, total := page("")
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Nil(t, prev)
	assert.Equal(t, float64(5), total)
	require.IsType(t, "", next)

	values, err := nestql.DecodeCursor(next.(string))
	require.NoError(t, err)
	assert.Equal(t, "c", values["username"], "the cursor points at the first row of the next page")

	names, next2, prev, _ := page(next.(string))
	assert.Equal(t, []string{"c", "d"}, names)
	assert.Equal(t, next, prev)

	names, next3, _, _ := page(next2.(string))
	assert.Equal(t, []string{"e"}, names)
	assert.Nil(t, next3, "the last page has no next cursor")
}

func TestFetch_KeysetWithFilter(t *testing.T) {
	db := testutil.DB(t)
	seed(t, db)

	out := fetch(t, db, nestql.From("users").With(
		nestql.Fields("username"),
		nestql.Where("age", nestql.Gte, 21),
		nestql.OrderByDesc("username"),
		nestql.Keyset("", 3),
		nestql.Many("posts").With(nestql.Fields("title")),
	))
	assert.Equal(t, []string{"e", "d", "c"}, usernames(t, out["users"]))
	p := out["usersPagination"].(map[string]any)
	assert.Equal(t, float64(4), p["rowCount"])
	assert.NotNil(t, p["next"])
}

func TestFetch_Drivers(t *testing.T) {
	dsn := testutil.DSN(t)

	for _, driver := range []string{"pgx", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			db, err := sql.Open(driver, dsn)
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })

			q := nestql.NewQuery(nestql.From("users").With(nestql.Fields("id")))
			raw, err := q.FetchJSON(context.Background(), db)
			require.NoError(t, err)
			assert.JSONEq(t, `{"users": []}`, string(raw))
		})
	}
}

func TestFetch_ErrorMapping(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	err := nestql.NewQuery(nestql.From("missing")).Fetch(ctx, db, &json.RawMessage{})
	assert.True(t, nestql.IsUndefinedTableErr(err), "got %v", err)

	err = nestql.NewQuery(nestql.From("users").With(nestql.Many("tags"))).Fetch(ctx, db, &json.RawMessage{})
	assert.True(t, nestql.IsUndefinedColumnErr(err), "guessed key tags.users_id does not exist: %v", err)

	err = nestql.NewQuery(nestql.From("users").With(nestql.Where("id", "~", 1))).Fetch(ctx, db, &json.RawMessage{})
	assert.True(t, nestql.IsInvalidOperatorErr(err))
}
