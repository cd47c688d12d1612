package services

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/adapters/datasource"
)

// execFailure classifies a backend error for the one recovery attempt.
type execFailure int

const (
	failureOther execFailure = iota
	failureUnknownColumn
	failureSyntax
	failureUnreachable
)

func (f execFailure) String() string {
	switch f {
	case failureUnknownColumn:
		return "unknown_column"
	case failureSyntax:
		return "syntax"
	case failureUnreachable:
		return "unreachable"
	default:
		return "other"
	}
}

var sqlStateRegex = regexp.MustCompile(`SQLSTATE ([0-9A-Z]{5})`)

// unknownColumnPatterns capture the offending name from DuckDB, PostgreSQL
// and SQL Server messages.
var unknownColumnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)referenced column "([^"]+)" not found`),
	regexp.MustCompile(`(?i)referenced column (\S+) not found`),
	regexp.MustCompile(`(?i)column "([^"]+)" does not exist`),
	regexp.MustCompile(`(?i)column ([\w.]+) does not exist`),
	regexp.MustCompile(`(?i)invalid column name '([^']+)'`),
}

var syntaxMarkers = []string{
	"syntax error",
	"parser error",
	"incorrect syntax",
	"no function matches",
	"conversion error",
	"could not convert",
	"could not choose a best candidate function",
	"is not a recognized built-in function",
}

var undefinedFunction = regexp.MustCompile(`(?i)function .+ does not exist`)

// classifyExecError decides how a failed execution may be recovered. For an
// unknown column it also returns the offending name without any qualifier.
func classifyExecError(err error) (execFailure, string) {
	if err == nil {
		return failureOther, ""
	}
	if datasource.IsConnError(err) {
		return failureUnreachable, ""
	}

	msg := err.Error()
	code := ""
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code = pgErr.Code
		msg = pgErr.Message
	} else if m := sqlStateRegex.FindStringSubmatch(msg); m != nil {
		code = m[1]
	}

	for _, p := range unknownColumnPatterns {
		if m := p.FindStringSubmatch(msg); m != nil {
			return failureUnknownColumn, unqualified(m[1])
		}
	}
	if code == "42703" {
		return failureUnknownColumn, ""
	}

	switch code {
	case "42601", "42883", "22007", "22P02":
		return failureSyntax, ""
	}
	lower := strings.ToLower(msg)
	for _, marker := range syntaxMarkers {
		if strings.Contains(lower, marker) {
			return failureSyntax, ""
		}
	}
	if undefinedFunction.MatchString(msg) {
		return failureSyntax, ""
	}
	return failureOther, ""
}

func unqualified(name string) string {
	name = strings.Trim(name, `"'`)
	if i := strings.LastIndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}
