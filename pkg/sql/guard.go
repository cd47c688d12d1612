package sql

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/apperrors"
)

// forbiddenKeywords are statement verbs that may never appear outside quotes
// in a read-only query, including inside CTE bodies.
var forbiddenKeywords = map[string]bool{
	"INSERT":     true,
	"UPDATE":     true,
	"DELETE":     true,
	"MERGE":      true,
	"UPSERT":     true,
	"DROP":       true,
	"CREATE":     true,
	"ALTER":      true,
	"TRUNCATE":   true,
	"GRANT":      true,
	"REVOKE":     true,
	"ATTACH":     true,
	"DETACH":     true,
	"COPY":       true,
	"EXPORT":     true,
	"IMPORT":     true,
	"INSTALL":    true,
	"LOAD":       true,
	"PRAGMA":     true,
	"CALL":       true,
	"EXEC":       true,
	"EXECUTE":    true,
	"VACUUM":     true,
	"CHECKPOINT": true,
}

// ReasonUnbalancedParens is the GuardError reason for mismatched parentheses.
const ReasonUnbalancedParens = "unbalanced parentheses"

// GuardError describes why a query was refused.
type GuardError struct {
	Reason  string
	Keyword string
}

func (e *GuardError) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Keyword)
	}
	return e.Reason
}

// Is lets errors.Is match apperrors.ErrSQLRejected.
func (e *GuardError) Is(target error) bool {
	return target == apperrors.ErrSQLRejected
}

// Guard checks that a query is a single read-only SELECT or WITH statement
// and returns it normalized. Keywords inside literals and quoted identifiers
// are ignored, so a column named "Update Date" is allowed.
func Guard(query string) (string, error) {
	result := ValidateAndNormalize(query)
	if result.Error != nil {
		return "", &GuardError{Reason: result.Error.Error()}
	}
	normalized := result.NormalizedSQL

	tokens := Tokenize(normalized)

	first := -1
	for i, tok := range tokens {
		if tok.Kind == TokenSpace || (tok.Kind == TokenPunct && tok.Text == "(") {
			continue
		}
		first = i
		break
	}
	if first < 0 {
		return "", &GuardError{Reason: ErrEmptyQuery.Error()}
	}
	if lead := tokens[first]; lead.Kind != TokenWord || (lead.Upper() != "SELECT" && lead.Upper() != "WITH") {
		return "", &GuardError{Reason: "query must start with SELECT or WITH", Keyword: lead.Text}
	}

	for i, tok := range tokens {
		switch tok.Kind {
		case TokenLineComment, TokenBlockComment:
			return "", &GuardError{Reason: "comments are not allowed"}
		case TokenString, TokenQuoted, TokenBacktick:
			if tok.Unterminated {
				return "", &GuardError{Reason: "unterminated quote"}
			}
		case TokenWord:
			if forbiddenKeywords[tok.Upper()] {
				return "", &GuardError{Reason: "forbidden keyword", Keyword: tok.Upper()}
			}
		case TokenPunct:
			// "*/" without an opening "/*"
			if tok.Text == "*" && i+1 < len(tokens) && tokens[i+1].Kind == TokenPunct && tokens[i+1].Text == "/" {
				return "", &GuardError{Reason: "comments are not allowed"}
			}
		}
	}

	if hits := CheckLiterals(normalized); len(hits) > 0 {
		return "", &GuardError{Reason: "injection pattern in literal", Keyword: hits[0].Fingerprint}
	}

	if !parensBalanced(tokens) {
		return "", &GuardError{Reason: ReasonUnbalancedParens}
	}

	return normalized, nil
}

// IsReadOnly reports whether Guard would accept the query.
func IsReadOnly(query string) bool {
	_, err := Guard(query)
	return err == nil
}

func parensBalanced(tokens []Token) bool {
	depth := 0
	for _, tok := range tokens {
		if tok.Kind != TokenPunct {
			continue
		}
		switch tok.Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
