// Package querydoc loads relation trees from YAML query documents.
//
// A document lists root relations; each relation may nest many and one
// relations to any depth:
//
//	roots:
//	  - table: users
//	    fields: [id, name, {column: email, as: contact}]
//	    where:
//	      - {field: active, op: "=", value: true}
//	      - {or: true, group: [{field: role, op: IN, value: [admin, staff]}]}
//	    orderBy: [name, -created_at]
//	    paginate: {page: 1, pageSize: 20}
//	    many:
//	      - table: posts
//	        foreignKey: author_id
//	        fields: [id, title]
//
// Within a relation, many relations are declared before one relations, so
// their keys come first in each JSON object.
package querydoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/pthm/nestql"
	"github.com/pthm/nestql/internal/sqlgen"
)

// ErrInvalidDocument is returned when a document cannot be parsed or
// declares something no relation can express.
var ErrInvalidDocument = errors.New("querydoc: invalid document")

// Document is a parsed query document.
type Document struct {
	Roots []Relation `json:"roots"`
}

// Relation declares one node of the tree.
type Relation struct {
	Table      string               `json:"table"`
	As         string               `json:"as,omitempty"`
	ForeignKey string               `json:"foreignKey,omitempty"`
	Through    []Hop                `json:"through,omitempty"`
	Link       string               `json:"link,omitempty"`
	AtLeast    int                  `json:"atLeast,omitempty"`
	Fields     []Field              `json:"fields,omitempty"`
	Values     map[string]any       `json:"values,omitempty"`
	Where      []Condition          `json:"where,omitempty"`
	OrderBy    []Order              `json:"orderBy,omitempty"`
	Aggregates map[string][]AggFunc `json:"aggregates,omitempty"`
	Many       []Relation           `json:"many,omitempty"`
	One        []Relation           `json:"one,omitempty"`
	Paginate   *Paginate            `json:"paginate,omitempty"`
	Keyset     *Keyset              `json:"keyset,omitempty"`
}

// Hop is an intermediate table of a through-chain.
type Hop struct {
	Table      string `json:"table"`
	Kind       string `json:"kind"`
	ForeignKey string `json:"foreignKey,omitempty"`
}

// Field is a projected column. It is written either as the bare column
// name or as {column, as}.
type Field struct {
	Column string `json:"column"`
	As     string `json:"as,omitempty"`
}

// UnmarshalJSON accepts a string or an object.
func (f *Field) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = Field{Column: s}
		return nil
	}
	type plain Field
	return json.Unmarshal(b, (*plain)(f))
}

// Order is a sort column. As a string, a leading "-" sorts descending.
type Order struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// UnmarshalJSON accepts a string or an object.
func (o *Order) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		col, desc := strings.CutPrefix(s, "-")
		*o = Order{Column: col, Desc: desc}
		return nil
	}
	type plain Order
	return json.Unmarshal(b, (*plain)(o))
}

// Condition is one term of a filter. Or joins it to the previous term with
// OR instead of AND. A condition carries either a comparison or a group.
type Condition struct {
	Or    bool        `json:"or,omitempty"`
	Field string      `json:"field,omitempty"`
	Op    string      `json:"op,omitempty"`
	Value any         `json:"value,omitempty"`
	Group []Condition `json:"group,omitempty"`
}

// AggFunc is one aggregate: count takes no column.
type AggFunc struct {
	Func   string `json:"func"`
	Column string `json:"column,omitempty"`
}

// Paginate pages a root by number.
type Paginate struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Keyset pages a root by cursor.
type Keyset struct {
	Cursor   string `json:"cursor,omitempty"`
	PageSize int    `json:"pageSize"`
}

// Load reads and parses a document file.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// Parse parses a YAML or JSON document. Unknown keys are rejected. Numbers
// decode as int64 when integral and float64 otherwise.
func Parse(b []byte) (*Document, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	var doc Document
	if err := yaml.UnmarshalStrict(b, &doc, useNumber); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &doc, nil
}

func useNumber(d *json.Decoder) *json.Decoder {
	d.UseNumber()
	return d
}

// Query builds the document's relations into a query.
func (d *Document) Query() (*nestql.Query, error) {
	roots, err := d.Relations()
	if err != nil {
		return nil, err
	}
	return nestql.NewQuery(roots...), nil
}

// Relations converts the document's roots into relation declarations.
func (d *Document) Relations() ([]*nestql.Relation, error) {
	roots := make([]*nestql.Relation, 0, len(d.Roots))
	for i, r := range d.Roots {
		rel, err := r.build(nestql.From(r.Table))
		if err != nil {
			return nil, fmt.Errorf("roots[%d]: %w", i, err)
		}
		roots = append(roots, rel)
	}
	return roots, nil
}

func (r Relation) build(rel *nestql.Relation) (*nestql.Relation, error) {
	if r.Table == "" {
		return nil, fmt.Errorf("%w: relation without table", ErrInvalidDocument)
	}
	if r.As != "" {
		rel.As(r.As)
	}
	if r.ForeignKey != "" {
		rel.WithForeignKey(r.ForeignKey)
	}
	for _, h := range r.Through {
		kind, err := sqlgen.ParseKind(h.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: through %s: %v", ErrInvalidDocument, h.Table, err)
		}
		rel.Through = append(rel.Through, sqlgen.Hop{Table: h.Table, Kind: kind, ForeignKey: h.ForeignKey})
	}
	if r.Link != "" {
		kind, err := sqlgen.ParseKind(r.Link)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, r.Table, err)
		}
		rel.Link = kind
	}
	if r.AtLeast > 0 {
		rel.AtLeast(r.AtLeast)
	}

	for _, f := range r.Fields {
		rel.With(nestql.Field(f.Column, f.As))
	}
	for _, name := range slices.Sorted(maps.Keys(r.Values)) {
		rel.With(nestql.Value(name, normalize(r.Values[name])))
	}
	if len(r.Where) > 0 {
		p, err := predicate(r.Where)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rel.OutputName(), err)
		}
		rel.With(p)
	}
	for _, o := range r.OrderBy {
		if o.Desc {
			rel.With(nestql.OrderByDesc(o.Column))
		} else {
			rel.With(nestql.OrderBy(o.Column))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(r.Aggregates)) {
		funcs, err := aggFuncs(r.Aggregates[name])
		if err != nil {
			return nil, fmt.Errorf("%s: aggregate %s: %w", rel.OutputName(), name, err)
		}
		rel.With(nestql.Aggregate(name, funcs...))
	}

	for _, c := range r.Many {
		child, err := c.build(nestql.Many(c.Table))
		if err != nil {
			return nil, err
		}
		rel.With(child)
	}
	for _, c := range r.One {
		child, err := c.build(nestql.One(c.Table))
		if err != nil {
			return nil, err
		}
		rel.With(child)
	}

	if r.Paginate != nil && r.Keyset != nil {
		return nil, fmt.Errorf("%w: %s: paginate and keyset are exclusive", ErrInvalidDocument, rel.OutputName())
	}
	if r.Paginate != nil {
		rel.With(nestql.Paginate(r.Paginate.Page, r.Paginate.PageSize))
	}
	if r.Keyset != nil {
		rel.With(nestql.Keyset(r.Keyset.Cursor, r.Keyset.PageSize))
	}
	return rel, nil
}

func predicate(conds []Condition) (*nestql.Predicate, error) {
	var p *nestql.Predicate
	for i, c := range conds {
		if c.Group != nil && c.Field != "" {
			return nil, fmt.Errorf("%w: where[%d]: field and group are exclusive", ErrInvalidDocument, i)
		}
		if c.Group == nil && c.Field == "" {
			return nil, fmt.Errorf("%w: where[%d]: condition needs a field or a group", ErrInvalidDocument, i)
		}

		if c.Group != nil {
			g, err := predicate(c.Group)
			if err != nil {
				return nil, err
			}
			switch {
			case p == nil:
				p = nestql.WhereGroup(g)
			case c.Or:
				p.OrGroup(g)
			default:
				p.AndGroup(g)
			}
			continue
		}

		op := nestql.Op(strings.ToUpper(strings.TrimSpace(c.Op)))
		value := normalize(c.Value)
		switch {
		case p == nil:
			p = nestql.Where(c.Field, op, value)
		case c.Or:
			p.Or(c.Field, op, value)
		default:
			p.And(c.Field, op, value)
		}
	}
	if p == nil {
		return nil, fmt.Errorf("%w: empty group", ErrInvalidDocument)
	}
	return p, nil
}

func aggFuncs(specs []AggFunc) ([]nestql.AggFunc, error) {
	funcs := make([]nestql.AggFunc, 0, len(specs))
	for _, s := range specs {
		switch strings.ToLower(s.Func) {
		case "count":
			funcs = append(funcs, nestql.Count())
		case "sum":
			funcs = append(funcs, nestql.Sum(s.Column))
		case "avg":
			funcs = append(funcs, nestql.Avg(s.Column))
		case "min":
			funcs = append(funcs, nestql.Min(s.Column))
		case "max":
			funcs = append(funcs, nestql.Max(s.Column))
		default:
			return nil, fmt.Errorf("%w: unknown aggregate %q", ErrInvalidDocument, s.Func)
		}
	}
	return funcs, nil
}

// normalize replaces json.Number with int64 or float64, recursively.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}
