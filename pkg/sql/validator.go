// Package sql provides the SQL text passes applied to model-generated queries:
// extraction, alias rewriting, syntax repair and the read-only guard.
package sql

import (
	"errors"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	// ErrEmptyQuery indicates nothing was left after normalization.
	ErrEmptyQuery = errors.New("empty query")
)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing semicolon.
//
// The validation order is:
// 1. Strip trailing semicolons and whitespace (normalize)
// 2. Check for multiple statements (any remaining semicolons outside quotes)
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)
	if sqlQuery == "" {
		return ValidationResult{Error: ErrEmptyQuery}
	}

	normalized := stripTrailingSemicolon(sqlQuery)
	if normalized == "" {
		return ValidationResult{Error: ErrEmptyQuery}
	}

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of literals, quoted identifiers and comments.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	for _, tok := range Tokenize(sqlQuery) {
		if tok.Kind == TokenPunct && tok.Text == ";" {
			return true
		}
	}
	return false
}

// stripTrailingSemicolon removes trailing semicolons and any whitespace around them.
func stripTrailingSemicolon(sqlQuery string) string {
	for {
		trimmed := strings.TrimRight(sqlQuery, " \t\n\r")
		if !strings.HasSuffix(trimmed, ";") {
			return trimmed
		}
		sqlQuery = strings.TrimSuffix(trimmed, ";")
	}
}
