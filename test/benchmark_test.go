package test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pthm/nestql"
	"github.com/pthm/nestql/test/testutil"
)

// BenchmarkScale defines the data magnitude for a benchmark run.
type BenchmarkScale struct {
	Name         string
	Users        int
	PostsPerUser int
}

var benchmarkScales = []BenchmarkScale{
	{Name: "1K", Users: 100, PostsPerUser: 10},
	{Name: "10K", Users: 1000, PostsPerUser: 10},
	{Name: "100K", Users: 5000, PostsPerUser: 20},
}

func setupBenchmarkData(b *testing.B, scale BenchmarkScale) *sql.DB {
	b.Helper()

	db := testutil.DB(b)
	bulk := testutil.NewBulkFixtures(context.Background(), db)

	users, err := bulk.CreateUsers(scale.Users)
	if err != nil {
		b.Fatalf("create users: %v", err)
	}
	if err := bulk.CreatePosts(users, scale.PostsPerUser); err != nil {
		b.Fatalf("create posts: %v", err)
	}
	if _, err := db.Exec("ANALYZE"); err != nil {
		b.Fatalf("analyze: %v", err)
	}
	return db
}

func BenchmarkBuild(b *testing.B) {
	q := nestql.NewQuery(nestql.From("users").With(
		nestql.Fields("id", "username"),
		nestql.Where("age", nestql.Gte, 21).And("active", nestql.Eq, true),
		nestql.OrderBy("username"),
		nestql.Paginate(1, 20),
		nestql.Many("posts").With(
			nestql.Fields("title", "score"),
			nestql.OrderByDesc("score"),
			nestql.Aggregate("stats", nestql.Count(), nestql.Avg("score")),
		),
	))

	b.ReportAllocs()
	for b.Loop() {
		if _, _, err := q.Build(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFetch(b *testing.B) {
	for _, scale := range benchmarkScales {
		b.Run(scale.Name, func(b *testing.B) {
			db := setupBenchmarkData(b, scale)
			ctx := context.Background()

			b.Run("OffsetPage", func(b *testing.B) {
				q := nestql.NewQuery(nestql.From("users").With(
					nestql.Fields("id", "username"),
					nestql.OrderBy("username"),
					nestql.Paginate(scale.Users/40, 20),
					nestql.Many("posts").With(nestql.Fields("title"), nestql.OrderByDesc("score")),
				))
				b.ResetTimer()
				for b.Loop() {
					if _, err := q.FetchJSON(ctx, db); err != nil {
						b.Fatal(err)
					}
				}
			})

			b.Run("KeysetPage", func(b *testing.B) {
				q := nestql.NewQuery(nestql.From("users").With(
					nestql.Fields("id", "username"),
					nestql.OrderBy("id"),
					nestql.Keyset("", 20),
					nestql.Many("posts").With(nestql.Fields("title")),
				))
				b.ResetTimer()
				for b.Loop() {
					if _, err := q.FetchJSON(ctx, db); err != nil {
						b.Fatal(err)
					}
				}
			})

			b.Run("ExistenceFilter", func(b *testing.B) {
				q := nestql.NewQuery(nestql.From("users").With(
					nestql.Fields("id"),
					nestql.Where("age", nestql.Lt, 25),
					nestql.Many("posts").AtLeast(1).With(nestql.Aggregate("stats", nestql.Sum("score"))),
				))
				b.ResetTimer()
				for b.Loop() {
					if _, err := q.FetchJSON(ctx, db); err != nil {
						b.Fatal(err)
					}
				}
			})
		})
	}
}
