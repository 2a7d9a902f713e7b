package nestql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pthm/nestql/internal/sqlgen"
)

// Sentinel errors returned by Build and Fetch. Compilation errors wrap one
// of these; use errors.Is or the Is*Err helpers to classify them.
var (
	// ErrInvalidRelation is returned for malformed declarations such as an
	// empty table name, a nil item, or pagination declared twice.
	ErrInvalidRelation = sqlgen.ErrInvalidRelation

	// ErrInvalidOperator is returned for a comparison operator outside
	// =, !=, >, <, >=, <=, IS, IS NOT, IN, NOT IN and LIKE.
	ErrInvalidOperator = sqlgen.ErrInvalidOperator

	// ErrInvalidOperand is returned when IN or NOT IN is given a value that
	// is not a slice or array.
	ErrInvalidOperand = sqlgen.ErrInvalidOperand

	// ErrDuplicateName is returned when two roots share an output name, or
	// two items of one relation write the same JSON key.
	ErrDuplicateName = sqlgen.ErrDuplicateName

	// ErrAlreadyAggregated is returned when a JSON group is extended after it
	// was wrapped in an aggregate.
	ErrAlreadyAggregated = sqlgen.ErrAlreadyAggregated

	// ErrInvalidWhereNode is returned when a filter contains an expression
	// that is not a predicate.
	ErrInvalidWhereNode = sqlgen.ErrInvalidWhereNode

	// ErrPaginationScope is returned when Paginate or Keyset is declared on
	// a nested relation.
	ErrPaginationScope = sqlgen.ErrPaginationScope

	// ErrInvalidCursor is returned when a keyset cursor cannot be decoded or
	// lacks one of the ordering columns.
	ErrInvalidCursor = sqlgen.ErrInvalidCursor

	// ErrUndefinedTable is returned by Fetch when PostgreSQL reports that a
	// declared table does not exist.
	ErrUndefinedTable = errors.New("nestql: table not found")

	// ErrUndefinedColumn is returned by Fetch when PostgreSQL reports that a
	// declared column or guessed foreign key does not exist. Declare the key
	// explicitly with WithForeignKey.
	ErrUndefinedColumn = errors.New("nestql: column not found")
)

// IsInvalidRelationErr returns true if err is or wraps ErrInvalidRelation.
func IsInvalidRelationErr(err error) bool {
	return errors.Is(err, ErrInvalidRelation)
}

// IsInvalidOperatorErr returns true if err is or wraps ErrInvalidOperator.
func IsInvalidOperatorErr(err error) bool {
	return errors.Is(err, ErrInvalidOperator)
}

// IsInvalidOperandErr returns true if err is or wraps ErrInvalidOperand.
func IsInvalidOperandErr(err error) bool {
	return errors.Is(err, ErrInvalidOperand)
}

// IsDuplicateNameErr returns true if err is or wraps ErrDuplicateName.
func IsDuplicateNameErr(err error) bool {
	return errors.Is(err, ErrDuplicateName)
}

// IsPaginationScopeErr returns true if err is or wraps ErrPaginationScope.
func IsPaginationScopeErr(err error) bool {
	return errors.Is(err, ErrPaginationScope)
}

// IsInvalidCursorErr returns true if err is or wraps ErrInvalidCursor.
func IsInvalidCursorErr(err error) bool {
	return errors.Is(err, ErrInvalidCursor)
}

// IsUndefinedTableErr returns true if err is or wraps ErrUndefinedTable.
func IsUndefinedTableErr(err error) bool {
	return errors.Is(err, ErrUndefinedTable)
}

// IsUndefinedColumnErr returns true if err is or wraps ErrUndefinedColumn.
func IsUndefinedColumnErr(err error) bool {
	return errors.Is(err, ErrUndefinedColumn)
}

// PostgreSQL error codes mapped to sentinels by Fetch.
const (
	pgUndefinedTable  = "42P01" // undefined_table
	pgUndefinedColumn = "42703" // undefined_column
)

// mapError maps driver errors to sentinel errors, keeping the driver error
// in the message.
func mapError(err error) error {
	switch sqlState(err) {
	case pgUndefinedTable:
		return fmt.Errorf("%w: %v", ErrUndefinedTable, err)
	case pgUndefinedColumn:
		return fmt.Errorf("%w: %v", ErrUndefinedColumn, err)
	}
	return fmt.Errorf("fetch: %w", err)
}

// sqlState extracts the SQLSTATE code from a PostgreSQL error. Both
// pgx/pgconn and lib/pq errors expose SQLState(). Returns "" when the error
// carries no code.
func sqlState(err error) string {
	var se interface{ SQLState() string }
	if errors.As(err, &se) {
		return se.SQLState()
	}

	msg := err.Error()
	for _, prefix := range []string{"SQLSTATE ", "SQLSTATE: "} {
		if idx := strings.Index(msg, prefix); idx >= 0 {
			start := idx + len(prefix)
			if start+5 <= len(msg) {
				return msg[start : start+5]
			}
		}
	}
	return ""
}
