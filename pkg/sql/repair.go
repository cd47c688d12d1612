package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnbalancedParens is returned when repair cannot balance parentheses.
var ErrUnbalancedParens = errors.New("unbalanced parentheses")

// RepairOptions control the syntax repair pass.
type RepairOptions struct {
	// Aggressive enables rewrites that change expressions, used after the
	// backend reported a syntax or binder error.
	Aggressive bool
	// Columns are the table's actual column names. When set, aggressive
	// repair turns double-quoted words that are not columns into literals.
	Columns []string
	// Dialect is the backend type. Date function rewrites apply only to
	// "duckdb" and the empty default.
	Dialect string
}

// Repairer fixes dialect and formatting mistakes in generated SQL.
type Repairer func(query string, opts RepairOptions) (string, error)

var _ Repairer = Repair

var topClause = regexp.MustCompile(`(?is)^(\s*SELECT\s+(?:DISTINCT\s+)?)TOP\s*\(?\s*(\d+)\s*\)?\s+`)
var limitClause = regexp.MustCompile(`(?i)\bLIMIT\s+\d+\s*$`)

// datePartFunctions are shorthand functions the aggressive pass rewrites to
// date_part over a TRY_CAST so they also work on text columns holding dates.
var datePartFunctions = map[string]string{
	"month":   "month",
	"day":     "day",
	"quarter": "quarter",
}

var comparisonOps = map[string]bool{"=": true, "==": true, "<>": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true}

// Repair normalizes quoting and dialect mistakes:
//   - backtick and typographic quotes become double quotes
//   - runs of double quotes around an identifier collapse to one
//   - SELECT TOP n becomes a trailing LIMIT n, except for "sqlserver"
//   - trailing semicolons are dropped
//   - YEAR(x) and EXTRACT(YEAR FROM x) become strftime(x, '%Y'), and a number
//     compared against them is re-quoted as a string
//
// With opts.Aggressive it also casts the strftime argument through
// TRY_CAST(x AS DATE), rewrites MONTH(x), DAY(x), QUARTER(x) and other
// EXTRACT parts to date_part over the same cast, turns == into =, and turns
// double-quoted non-column comparison values into string literals.
// Repair returns ErrUnbalancedParens when parentheses cannot be matched.
// Applying Repair to its own output is a no-op.
func Repair(query string, opts RepairOptions) (string, error) {
	query = normalizeQuotes(strings.TrimSpace(query))
	query = stripTrailingSemicolon(query)
	if opts.Dialect != "sqlserver" {
		query = rewriteTop(query)
	}

	tokens := Tokenize(query)
	if !parensBalanced(tokens) {
		return query, ErrUnbalancedParens
	}

	if opts.Aggressive {
		tokens = quotedValuesToLiterals(tokens, opts.Columns)
		for i := range tokens {
			if tokens[i].Kind == TokenPunct && tokens[i].Text == "==" {
				tokens[i].Text = "="
			}
		}
	}
	if opts.Dialect == "" || opts.Dialect == "duckdb" {
		query = rewriteDateFunctions(tokens, opts.Aggressive)
	} else {
		query = Join(tokens)
	}

	return query, nil
}

// normalizeQuotes converts backticks and typographic double quotes to
// standard double quotes and collapses quote runs left by double quoting,
// such as ""Sales"" or """Sales""". Single-quoted literals are untouched.
// A doubled quote between two word characters is an escape and is kept.
func normalizeQuotes(s string) string {
	s = strings.NewReplacer("“", `"`, "”", `"`).Replace(s)
	r := []rune(s)
	var b strings.Builder
	inLiteral, inIdent := false, false

	for i := 0; i < len(r); i++ {
		c := r[i]
		switch {
		case inLiteral:
			b.WriteRune(c)
			if c == '\'' {
				if i+1 < len(r) && r[i+1] == '\'' {
					b.WriteRune(r[i+1])
					i++
				} else {
					inLiteral = false
				}
			}
		case c == '\'' && !inIdent:
			inLiteral = true
			b.WriteRune(c)
		case c == '`' || c == '"':
			j := i
			for j < len(r) && (r[j] == '"' || r[j] == '`') {
				j++
			}
			run := j - i
			before := i > 0 && isWordRune(r[i-1])
			after := j < len(r) && isWordRune(r[j])
			if run > 1 && before && after {
				// escaped quote inside an identifier
				b.WriteString(strings.Repeat(`"`, run))
				i = j - 1
				continue
			}
			b.WriteRune('"')
			inIdent = !inIdent
			if run > 1 && !before && !after {
				// empty identifier run such as "" standing alone
				if run%2 == 0 {
					b.WriteRune('"')
					inIdent = !inIdent
				}
			}
			i = j - 1
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

func rewriteTop(query string) string {
	m := topClause.FindStringSubmatchIndex(query)
	if m == nil {
		return query
	}
	n := query[m[4]:m[5]]
	rest := query[:m[3]] + query[m[1]:]
	if limitClause.MatchString(rest) {
		return rest
	}
	return fmt.Sprintf("%s LIMIT %s", strings.TrimRight(rest, " \t\r\n"), n)
}

// quotedValuesToLiterals converts "South" to 'South' when it follows a
// comparison operator or sits in an IN list and is not a column name.
func quotedValuesToLiterals(tokens []Token, columns []string) []Token {
	if len(columns) == 0 {
		return tokens
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[strings.ToLower(c)] = true
	}

	inList := false
	for i := range tokens {
		tok := tokens[i]
		if tok.Kind == TokenPunct && tok.Text == ")" {
			inList = false
		}
		if tok.Kind == TokenPunct && tok.Text == "(" {
			if p := prevSignificant(tokens, i); p >= 0 && strings.EqualFold(tokens[p].Text, "in") {
				inList = true
			}
		}
		if tok.Kind != TokenQuoted || known[strings.ToLower(tok.Value())] {
			continue
		}
		p := prevSignificant(tokens, i)
		if p < 0 {
			continue
		}
		prev := strings.ToUpper(tokens[p].Text)
		isValue := inList
		switch prev {
		case "=", "==", "<>", "!=", "<", ">", "<=", ">=", "LIKE", "ILIKE":
			isValue = true
		}
		if isValue {
			tokens[i] = Token{Kind: TokenString, Text: QuoteLiteral(tok.Value())}
		}
	}
	return tokens
}

// rewriteDateFunctions renders tokens, replacing date shorthand calls.
func rewriteDateFunctions(tokens []Token, aggressive bool) string {
	var b strings.Builder
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Kind != TokenWord {
			b.WriteString(tok.Text)
			continue
		}
		open := nextSignificant(tokens, i)
		if open < 0 || tokens[open].Text != "(" {
			b.WriteString(tok.Text)
			continue
		}
		closeIdx := matchingParen(tokens, open)
		if closeIdx < 0 {
			b.WriteString(tok.Text)
			continue
		}
		name := strings.ToLower(tok.Text)

		part, inner := "", ""
		switch {
		case name == "year":
			part, inner = "year", rewriteDateFunctions(tokens[open+1:closeIdx], aggressive)
		case name == "extract":
			partIdx := nextSignificant(tokens, open)
			fromIdx := -1
			if partIdx >= 0 {
				fromIdx = nextSignificant(tokens, partIdx)
			}
			if partIdx >= 0 && fromIdx >= 0 && fromIdx < closeIdx && strings.EqualFold(tokens[fromIdx].Text, "from") {
				part = strings.ToLower(tokens[partIdx].Value())
				inner = rewriteDateFunctions(tokens[fromIdx+1:closeIdx], aggressive)
			}
		case aggressive && datePartFunctions[name] != "":
			part, inner = datePartFunctions[name], rewriteDateFunctions(tokens[open+1:closeIdx], aggressive)
		case aggressive && name == "strftime":
			b.WriteString(tok.Text)
			b.WriteString(castStrftimeArg(tokens[open : closeIdx+1]))
			i = closeIdx
			continue
		}

		inner = strings.TrimSpace(inner)
		switch {
		case part == "year":
			fmt.Fprintf(&b, "strftime(%s, '%%Y')", dateArg(inner, aggressive))
			quoteComparedNumber(tokens, closeIdx)
		case part != "" && aggressive:
			fmt.Fprintf(&b, "date_part('%s', %s)", part, dateArg(inner, true))
		default:
			b.WriteString(tok.Text)
			continue
		}
		i = closeIdx
	}
	return b.String()
}

func dateArg(inner string, cast bool) string {
	if !cast || strings.HasPrefix(strings.ToUpper(inner), "TRY_CAST(") {
		return inner
	}
	return fmt.Sprintf("TRY_CAST(%s AS DATE)", inner)
}

// castStrftimeArg wraps the first argument of an existing strftime call,
// given as tokens from "(" to ")", in TRY_CAST(... AS DATE).
func castStrftimeArg(call []Token) string {
	depth := 0
	for j, tok := range call {
		if tok.Kind != TokenPunct {
			continue
		}
		switch tok.Text {
		case "(":
			depth++
		case ")":
			depth--
		case ",":
			if depth == 1 {
				first := strings.TrimSpace(Join(call[1:j]))
				return "(" + dateArg(first, true) + Join(call[j:])
			}
		}
	}
	return Join(call)
}

// quoteComparedNumber turns the number in "<call> = 2024" into '2024'.
func quoteComparedNumber(tokens []Token, closeIdx int) {
	op := nextSignificant(tokens, closeIdx)
	if op < 0 || tokens[op].Kind != TokenPunct || !comparisonOps[tokens[op].Text] {
		return
	}
	val := nextSignificant(tokens, op)
	if val >= 0 && tokens[val].Kind == TokenNumber {
		tokens[val] = Token{Kind: TokenString, Text: QuoteLiteral(tokens[val].Text)}
	}
}
