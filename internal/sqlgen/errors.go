package sqlgen

import "errors"

// Sentinel errors reported while compiling a relation tree. Every error
// returned by Compile wraps one of these; the root package re-exports them.
var (
	// ErrInvalidOperand is returned when IN or NOT IN is given a value that
	// is neither a slice nor an array.
	ErrInvalidOperand = errors.New("nestql: IN operand must be a slice or array")

	// ErrInvalidOperator is returned for a comparison operator outside the
	// supported vocabulary.
	ErrInvalidOperator = errors.New("nestql: unsupported comparison operator")

	// ErrAlreadyAggregated is returned when a JSON group is modified or
	// aggregated after it has already been wrapped in an aggregate.
	ErrAlreadyAggregated = errors.New("nestql: field already aggregated")

	// ErrInvalidWhereNode is returned when a WHERE tree contains a node that
	// is not part of the predicate node set.
	ErrInvalidWhereNode = errors.New("nestql: invalid where node")

	// ErrDuplicateName is returned when two relations would register the
	// same CTE or the same JSON key.
	ErrDuplicateName = errors.New("nestql: duplicate name")

	// ErrPaginationScope is returned when pagination is declared on a
	// relation that is not a root.
	ErrPaginationScope = errors.New("nestql: pagination is only supported on root relations")

	// ErrInvalidCursor is returned when a keyset cursor cannot be decoded or
	// does not carry every ordering key.
	ErrInvalidCursor = errors.New("nestql: invalid cursor")

	// ErrInvalidRelation is returned for malformed declarations: an empty
	// table name, an unknown relation kind, or a nil item.
	ErrInvalidRelation = errors.New("nestql: invalid relation")
)
