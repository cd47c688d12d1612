package tools

import (
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidParameters  = "invalid_parameters"
	CodeNotFound           = "not_found"
	CodeBackendUnreachable = "backend_unreachable"
	CodeLLMFailure         = "llm_failure"
	CodeSQLRejected        = "sql_rejected"
	CodeExecutionError     = "execution_error"
	CodeValidationFailed   = "validation_failed"
)

// ErrorResponse represents a structured error in tool results.
// Returning it as a tool result keeps the details visible to the client
// instead of being swallowed as a protocol error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (bad parameters, unknown data
// source, rejected SQL). Internal failures should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// queryErrorDetails is the diagnostic context attached to failed questions.
type queryErrorDetails struct {
	Table    string `json:"table,omitempty"`
	SQL      string `json:"sql,omitempty"`
	Reason   string `json:"reason,omitempty"`
	SQLState string `json:"sqlstate,omitempty"`
}

// ErrorCode maps a pipeline error to its tool error code. It returns ""
// for errors that are not one of the known kinds.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, apperrors.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, apperrors.ErrSQLRejected):
		return CodeSQLRejected
	case errors.Is(err, apperrors.ErrBackendUnreachable):
		return CodeBackendUnreachable
	case errors.Is(err, apperrors.ErrLLMFailure):
		return CodeLLMFailure
	case errors.Is(err, apperrors.ErrSQLExecution):
		return CodeExecutionError
	case errors.Is(err, apperrors.ErrValidationFail):
		return CodeValidationFailed
	}
	return ""
}

// toolError converts a pipeline error into a structured tool result.
// Errors of an unknown kind are returned unchanged as Go errors.
func toolError(err error) (*mcp.CallToolResult, error) {
	code := ErrorCode(err)
	if code == "" {
		return nil, err
	}

	var qErr *apperrors.QueryError
	if !errors.As(err, &qErr) {
		return NewErrorResult(code, err.Error()), nil
	}

	details := queryErrorDetails{
		Table:  qErr.Table,
		SQL:    qErr.SQL,
		Reason: qErr.Reason,
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		details.SQLState = pgErr.Code
	}
	return NewErrorResultWithDetails(code, err.Error(), details), nil
}
