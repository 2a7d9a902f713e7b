package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/nestql/internal/sqlgen/sqldsl"
)

func TestAddField(t *testing.T) {
	stmt := &sqldsl.Select{From: sqldsl.TableAs{Name: "users", Alias: "t1"}}

	require.NoError(t, AddField(stmt, DataField, "id", sqldsl.Col("t1", "id")))
	require.NoError(t, AddField(stmt, DataField, "name", sqldsl.Col("t1", "name")))
	require.NoError(t, AddField(stmt, "stats", "count", sqldsl.Count(nil)))

	assert.Equal(t, []string{"data", "stats"}, stmt.FieldAliases())
	data, ok := stmt.Field(DataField)
	require.True(t, ok)
	assert.Equal(t, "json_build_object(\n  'id', t1.id,\n  'name', t1.name\n)", sqldsl.SQL(data))
}

func TestAddField_DuplicateKey(t *testing.T) {
	stmt := &sqldsl.Select{}
	require.NoError(t, AddField(stmt, DataField, "id", sqldsl.Col("t1", "id")))

	err := AddField(stmt, DataField, "id", sqldsl.Col("t1", "other"))
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestAddField_AfterAggregation(t *testing.T) {
	stmt := &sqldsl.Select{}
	require.NoError(t, AddField(stmt, DataField, "id", sqldsl.Col("t1", "id")))
	require.NoError(t, ConvertDataFieldsToAgg(stmt, nil))

	err := AddField(stmt, DataField, "name", sqldsl.Col("t1", "name"))
	require.ErrorIs(t, err, ErrAlreadyAggregated)
}

func TestConvertDataFieldsToAgg(t *testing.T) {
	stmt := &sqldsl.Select{From: sqldsl.TableAs{Name: "posts", Alias: "t2"}}
	require.NoError(t, AddField(stmt, DataField, "id", sqldsl.Col("t2", "id")))
	stmt.OrderBy = []sqldsl.OrderCol{{Node: sqldsl.Col("t2", "created_at"), Desc: true}}

	require.NoError(t, ConvertDataFieldsToAgg(stmt, nil))

	data, _ := stmt.Field(DataField)
	assert.Equal(t,
		"coalesce(jsonb_agg(json_build_object(\n  'id', t2.id\n) ORDER BY t2.created_at DESC), '[]'::jsonb)",
		sqldsl.SQL(data))
	assert.Empty(t, stmt.OrderBy, "ordering moves into the aggregate")

	err := ConvertDataFieldsToAgg(stmt, nil)
	require.ErrorIs(t, err, ErrAlreadyAggregated)
}

func TestConvertDataFieldsToAgg_Marker(t *testing.T) {
	stmt := &sqldsl.Select{}
	require.NoError(t, AddField(stmt, DataField, "id", sqldsl.Col("t2", "id")))

	require.NoError(t, ConvertDataFieldsToAgg(stmt, sqldsl.Col("t2", "id")))

	data, _ := stmt.Field(DataField)
	assert.Equal(t,
		"coalesce(jsonb_agg(json_build_object(\n  'id', t2.id\n)) FILTER (WHERE t2.id IS NOT NULL), '[]'::jsonb)",
		sqldsl.SQL(data))
}

func TestConvertDataFieldsToAgg_NoDataField(t *testing.T) {
	stmt := &sqldsl.Select{}
	require.NoError(t, ConvertDataFieldsToAgg(stmt, nil))
	assert.Empty(t, stmt.Fields)
}

func TestAddReferencesToChildFields(t *testing.T) {
	child := &sqldsl.Select{}
	require.NoError(t, AddField(child, DataField, "id", sqldsl.Col("t2", "id")))
	require.NoError(t, AddField(child, "stats", "count", sqldsl.Count(nil)))
	child.AddField(sqldsl.Col("t2", "user_id"), "_group")

	parent := &sqldsl.Select{}
	require.NoError(t, AddReferencesToChildFields(parent, "t3", child, "posts", true))

	data, ok := parent.Field(DataField)
	require.True(t, ok)
	assert.Equal(t,
		"json_build_object(\n  'posts', coalesce(t3.data, '[]'::jsonb),\n  'postsStats', t3.stats\n)",
		sqldsl.SQL(data))

	err := AddReferencesToChildFields(parent, "t4", child, "posts", false)
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestCapitalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"stats", "Stats"},
		{"pagination", "Pagination"},
		{"Already", "Already"},
		{"éclair", "Éclair"},
		{"x", "X"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Capitalize(tt.in), "Capitalize(%q)", tt.in)
	}
}
