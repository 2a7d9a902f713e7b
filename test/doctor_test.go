package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/nestql"
	"github.com/pthm/nestql/internal/doctor"
	"github.com/pthm/nestql/test/testutil"
)

func runDoctor(t *testing.T, roots ...*nestql.Relation) *doctor.Report {
	t.Helper()
	report, err := doctor.New(testutil.DB(t), roots).Run(context.Background())
	require.NoError(t, err)
	return report
}

func checksIn(report *doctor.Report, category string) []doctor.CheckResult {
	var out []doctor.CheckResult
	for _, c := range report.Checks {
		if c.Category == category {
			out = append(out, c)
		}
	}
	return out
}

func TestDoctor_Healthy(t *testing.T) {
	report := runDoctor(t, nestql.From("users").With(
		nestql.Fields("username", "age"),
		nestql.One("profiles").LinkMany().With(nestql.Fields("bio")),
		nestql.Many("posts").With(
			nestql.Fields("title"),
			nestql.Many("comments").With(nestql.Fields("body")),
		),
	))

	assert.False(t, report.HasErrors())
	assert.Zero(t, report.Warnings)
	assert.Len(t, checksIn(report, "tables"), 4)
	indexes := checksIn(report, "indexes")
	require.Len(t, indexes, 1)
	assert.Equal(t, "All 3 join columns are indexed", indexes[0].Message)
}

func TestDoctor_UnindexedJoinColumns(t *testing.T) {
	report := runDoctor(t, nestql.From("posts").With(
		nestql.Many("tags").ThroughMany("post_tags").LinkOne().With(nestql.Fields("name")),
		nestql.Many("comments").With(
			nestql.One("users").As("author").WithForeignKey("author_id"),
		),
	))

	assert.False(t, report.HasErrors())
	var names []string
	for _, c := range checksIn(report, "indexes") {
		assert.Equal(t, doctor.StatusWarn, c.Status)
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"post_tags.tags_id", "comments.author_id"}, names)
}

func TestDoctor_MissingObjects(t *testing.T) {
	report := runDoctor(t,
		nestql.From("missing"),
		nestql.From("users").With(
			nestql.Fields("nope"),
			nestql.Many("tags"),
		),
	)

	assert.True(t, report.HasErrors())

	tables := checksIn(report, "tables")
	require.NotEmpty(t, tables)
	assert.Equal(t, "missing", tables[0].Name)
	assert.Equal(t, doctor.StatusFail, tables[0].Status)

	byName := make(map[string]doctor.CheckResult)
	for _, c := range checksIn(report, "columns") {
		byName[c.Name] = c
	}
	require.Contains(t, byName, "users.nope")
	assert.Empty(t, byName["users.nope"].FixHint)
	require.Contains(t, byName, "tags.users_id")
	assert.Contains(t, byName["tags.users_id"].Message, "Join column")
	assert.NotEmpty(t, byName["tags.users_id"].FixHint)
	assert.NotContains(t, byName, "missing.id", "columns of missing tables are not reported twice")
}
