package sqlgen

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pthm/nestql/internal/sqlgen/sqldsl"
)

// DataField is the alias of the JSON group holding a relation's rows.
const DataField = "data"

// hiddenPrefix marks bookkeeping fields that are never re-projected.
const hiddenPrefix = "_"

// AddField appends key/value to the json_build_object field registered
// under group, creating an empty call on first use.
func AddField(stmt *sqldsl.Select, group, key string, value sqldsl.Node) error {
	obj := sqldsl.Func{Name: sqldsl.JSONBuildObject}
	if n, ok := stmt.Field(group); ok {
		f, ok := n.(sqldsl.Func)
		if !ok || f.Name != sqldsl.JSONBuildObject {
			return fmt.Errorf("%w: cannot add %q to %q", ErrAlreadyAggregated, key, group)
		}
		obj = f
	}
	for i := 0; i < len(obj.Args); i += 2 {
		if lit, ok := obj.Args[i].(sqldsl.Lit); ok && string(lit) == key {
			return fmt.Errorf("%w: key %q in %q", ErrDuplicateName, key, group)
		}
	}
	obj.Args = append(slices.Clone(obj.Args), sqldsl.Lit(key), value)
	stmt.SetField(group, obj)
	return nil
}

// ConvertDataFieldsToAgg turns the row-shaped data object into an array
// aggregate, moving the statement's ORDER BY into the aggregate and
// defaulting to an empty array. A non-nil marker restricts the aggregate to
// rows where the marker is not null. Statements without a data field are
// left alone.
func ConvertDataFieldsToAgg(stmt *sqldsl.Select, marker sqldsl.Node) error {
	n, ok := stmt.Field(DataField)
	if !ok {
		return nil
	}
	obj, ok := n.(sqldsl.Func)
	if !ok || obj.Name != sqldsl.JSONBuildObject {
		return ErrAlreadyAggregated
	}

	var agg sqldsl.Node = sqldsl.Agg{
		Name:    sqldsl.JSONBAgg,
		Args:    []sqldsl.Node{obj},
		OrderBy: stmt.OrderBy,
	}
	if marker != nil {
		agg = sqldsl.FilterAgg{
			Agg:   agg,
			Where: sqldsl.Compare{Left: marker, Op: sqldsl.OpIsNot, Right: sqldsl.Null},
		}
	}
	stmt.SetField(DataField, sqldsl.Func{Name: sqldsl.Coalesce, Args: []sqldsl.Node{agg, sqldsl.EmptyArray}})
	stmt.OrderBy = nil
	return nil
}

// AddReferencesToChildFields re-projects the exposed fields of child,
// addressed as source, into parent's data group. The child's data field
// lands under prefix; any other group under prefix + Capitalize(alias).
// With wrapData a missing child row renders its data as an empty array.
func AddReferencesToChildFields(parent *sqldsl.Select, source string, child *sqldsl.Select, prefix string, wrapData bool) error {
	for _, alias := range child.FieldAliases() {
		if strings.HasPrefix(alias, hiddenPrefix) {
			continue
		}
		var ref sqldsl.Node = sqldsl.Col(source, alias)
		key := prefix
		if alias == DataField {
			if wrapData {
				ref = sqldsl.Func{Name: sqldsl.Coalesce, Args: []sqldsl.Node{ref, sqldsl.EmptyArray}}
			}
		} else {
			key = prefix + Capitalize(alias)
		}
		if err := AddField(parent, DataField, key, ref); err != nil {
			return err
		}
	}
	return nil
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	_, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return cases.Upper(language.Und).String(s[:size]) + s[size:]
}
