package sqlgen

import (
	"fmt"
	"strings"
)

// Kind is the cardinality of a relation relative to its parent.
type Kind int

// Relation kinds.
const (
	KindRoot Kind = iota + 1
	KindMany
	KindOne
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindMany:
		return "many"
	case KindOne:
		return "one"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "many" or "one". Roots are never declared by name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "many":
		return KindMany, nil
	case "one":
		return KindOne, nil
	default:
		return 0, fmt.Errorf("%w: unknown link kind %q", ErrInvalidRelation, s)
	}
}

// Hop is an intermediate table of a through-chain. Kind describes how the
// hop relates to the element before it; ForeignKey overrides the guessed
// key column of that link.
type Hop struct {
	Table      string
	ForeignKey string
	Kind       Kind
}

// Relation is one declared node of the relation tree.
type Relation struct {
	Table      string
	Name       string
	Kind       Kind
	ForeignKey string
	Through    []Hop
	// Link is the kind of the final link into Table. Zero means Kind.
	Link     Kind
	MinCount int
	Items    []Item
}

// OutputName is the JSON key the relation renders under.
func (r *Relation) OutputName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Table
}

// As overrides the JSON output name.
func (r *Relation) As(name string) *Relation {
	r.Name = name
	return r
}

// WithForeignKey overrides the guessed key column of the link into Table.
func (r *Relation) WithForeignKey(column string) *Relation {
	r.ForeignKey = column
	return r
}

// ThroughMany appends a hop that the previous element has many of.
func (r *Relation) ThroughMany(table string, foreignKey ...string) *Relation {
	return r.through(table, KindMany, foreignKey)
}

// ThroughOne appends a hop that the previous element points to.
func (r *Relation) ThroughOne(table string, foreignKey ...string) *Relation {
	return r.through(table, KindOne, foreignKey)
}

func (r *Relation) through(table string, kind Kind, foreignKey []string) *Relation {
	hop := Hop{Table: table, Kind: kind}
	if len(foreignKey) > 0 {
		hop.ForeignKey = foreignKey[0]
	}
	r.Through = append(r.Through, hop)
	return r
}

// LinkMany declares that Table holds the key pointing at the element
// before it.
func (r *Relation) LinkMany() *Relation {
	r.Link = KindMany
	return r
}

// LinkOne declares that the element before Table holds the key pointing
// at it.
func (r *Relation) LinkOne() *Relation {
	r.Link = KindOne
	return r
}

// AtLeast keeps only parents with at least n related rows.
func (r *Relation) AtLeast(n int) *Relation {
	r.MinCount = n
	return r
}

// With appends child items.
func (r *Relation) With(items ...Item) *Relation {
	r.Items = append(r.Items, items...)
	return r
}

// Select appends plain field projections.
func (r *Relation) Select(columns ...string) *Relation {
	for _, c := range columns {
		r.Items = append(r.Items, Field{Column: c})
	}
	return r
}

func (r *Relation) linkKind() Kind {
	if r.Link != 0 {
		return r.Link
	}
	return r.Kind
}

func (r *Relation) validate() error {
	if r.Table == "" {
		return fmt.Errorf("%w: empty table name", ErrInvalidRelation)
	}
	for _, h := range r.Through {
		if h.Table == "" {
			return fmt.Errorf("%w: %s: empty hop table name", ErrInvalidRelation, r.Table)
		}
	}
	return nil
}

// Item is a child of a relation. The variant set is closed.
//
//sumtype:decl
type Item interface {
	item()
}

func (Field) item()      {}
func (Fields) item()     {}
func (Value) item()      {}
func (*Predicate) item() {}
func (Order) item()      {}
func (Aggregate) item()  {}
func (*Relation) item()  {}
func (Paginate) item()   {}

// Field projects a column into the relation's JSON object, under As when
// set.
type Field struct {
	Column string
	As     string
}

// Key is the JSON key of the field.
func (f Field) Key() string {
	if f.As != "" {
		return f.As
	}
	return f.Column
}

// Fields projects several columns under their own names.
type Fields []Field

// Value injects a constant under Name in every row's JSON object.
type Value struct {
	Name  string
	Value any
}

// Order sorts the relation's rows by a column.
type Order struct {
	Column string
	Desc   bool
}

// AggFunc is one aggregate of an Aggregate group. An empty Column counts
// rows.
type AggFunc struct {
	Name   string
	Column string
}

// Aggregate renders a JSON object of aggregates keyed by function name.
type Aggregate struct {
	Name  string
	Funcs []AggFunc
}

// Paginate applies a pagination strategy. It always runs after the
// relation's other items.
type Paginate struct {
	Strategy Strategy
}

// Strategy is a pagination strategy. The variant set is closed.
//
//sumtype:decl
type Strategy interface {
	strategy()
}

func (OffsetLimit) strategy() {}
func (Keyset) strategy()      {}

// OffsetLimit pages by number. Non-positive values fall back to page 1 and
// a page size of 30.
type OffsetLimit struct {
	Page     int
	PageSize int
}

// Keyset pages by cursor. An empty Cursor starts at the first row.
type Keyset struct {
	Cursor   string
	PageSize int
}

// orderedItems returns the items with pagination moved after everything
// else, keeping declaration order within each priority.
func orderedItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	var late []Item
	for _, it := range items {
		if _, ok := it.(Paginate); ok {
			late = append(late, it)
			continue
		}
		out = append(out, it)
	}
	return append(out, late...)
}
