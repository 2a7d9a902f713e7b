// Package cli holds configuration, logging and exit-code handling shared by
// the nestql commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Process exit codes.
const (
	ExitSuccess    = 0
	ExitGeneral    = 1
	ExitConfig     = 2
	ExitQueryParse = 3
	ExitDBConnect  = 4
	ExitQuery      = 5
)

// ExitError carries the exit code a failed command should terminate with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the code err should exit with: the ExitError code when
// one is wrapped, ExitGeneral for any other error, ExitSuccess for nil.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitGeneral
}

// ReportError prints err to w and returns its exit code.
func ReportError(w io.Writer, err error) int {
	fmt.Fprintln(w, "Error:", err)
	return ExitCode(err)
}

// ExitWithError prints the error and exits with its code.
func ExitWithError(err error) {
	os.Exit(ReportError(os.Stderr, err))
}

// ConfigError reports an unreadable or incomplete configuration.
func ConfigError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Err: err}
}

// QueryParseError reports a query document that does not parse or does not
// compile.
func QueryParseError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitQueryParse, Message: msg, Err: err}
}

// DBConnectError reports a database that cannot be reached.
func DBConnectError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitDBConnect, Message: msg, Err: err}
}

// QueryError reports a statement that PostgreSQL rejected or that failed
// while running.
func QueryError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitQuery, Message: msg, Err: err}
}

// GeneralError wraps any other failure.
func GeneralError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitGeneral, Message: msg, Err: err}
}
