package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means a table or column could not be located. Recoverable by
	// re-linking the data source.
	ErrNotFound = errors.New("not found")
	// ErrBackendUnreachable is a transient storage failure. Retried by the adapter, not here.
	ErrBackendUnreachable = errors.New("backend unreachable")
	// ErrLLMFailure covers timeouts and responses that contain no usable SQL.
	ErrLLMFailure = errors.New("llm failure")
	// ErrSQLRejected is a security-boundary violation. Never executed.
	ErrSQLRejected = errors.New("sql rejected")
	// ErrSQLExecution means the backend rejected the rewritten SQL.
	ErrSQLExecution = errors.New("sql execution failed")
	// ErrValidationFail blocks an ETL step pending explicit user override.
	ErrValidationFail = errors.New("transformation validation failed")
)

// QueryError carries the diagnostic context a user needs to understand a failed
// query: the resolved table and the SQL that was rejected or failed.
type QueryError struct {
	Kind   error  // One of the sentinel errors above
	Table  string // Resolved physical table name, if known
	SQL    string // Offending SQL, if any
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	var parts []string
	parts = append(parts, e.Kind.Error())
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("table=%q", e.Table))
	}
	if e.SQL != "" {
		parts = append(parts, fmt.Sprintf("sql=%q", e.SQL))
	}
	msg := strings.Join(parts, ": ")
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Is lets errors.Is match the sentinel kind.
func (e *QueryError) Is(target error) bool {
	return e.Kind == target
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a QueryError of the given kind.
func NewQueryError(kind error, table, sql, reason string, cause error) *QueryError {
	return &QueryError{
		Kind:   kind,
		Table:  table,
		SQL:    sql,
		Reason: reason,
		Cause:  cause,
	}
}
