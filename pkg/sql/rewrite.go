package sql

import (
	"regexp"
	"strings"
)

// IdentifierResolver maps a lookup key to an actual column name.
// models.AliasMap satisfies it.
type IdentifierResolver interface {
	Lookup(key string) (string, bool)
}

// Substitution records one identifier replaced by the rewriter.
type Substitution struct {
	From string
	To   string
}

// RewriteResult is the output of an identifier rewrite.
type RewriteResult struct {
	SQL           string
	Substitutions []Substitution
}

// Rewriter maps the identifiers of a query onto one table's actual columns.
type Rewriter func(query, table string, aliases IdentifierResolver) RewriteResult

var _ Rewriter = RewriteIdentifiers

var keySeparators = regexp.MustCompile(`[\s_\-]+`)

// NormalizeKey lower-cases s and collapses runs of whitespace, underscores and
// hyphens into one underscore. "Order Date", "order_date" and "ORDER-DATE"
// share a key.
func NormalizeKey(s string) string {
	return strings.Trim(keySeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_"), "_")
}

// reservedWords are never treated as column references when unquoted.
var reservedWords = toSet(`
select from where group by order limit as and or not in is null on join having
case when then else end distinct asc desc between like ilike union all with over
partition interval true false cast try_cast extract exists offset any some filter
within rows range preceding following current row unbounded nulls first last left
right inner outer full cross using natural lateral escape similar top fetch next
only values qualify window except intersect recursive materialized`)

// typeWords name types and date parts, and are also common column names
// ("Year", "Date"). They resolve as columns except where the grammar makes
// them a keyword.
var typeWords = toSet(`
date time timestamp varchar integer int bigint double decimal numeric float real
boolean text year month day hour minute second quarter week epoch dow percent`)

// typeContextWords precede a type or date part: TIME ZONE, YEAR TO MONTH.
var typeContextWords = toSet(`at with without to`)

// fromContextFunctions take a FROM keyword inside their argument list.
var fromContextFunctions = toSet(`extract substring trim overlay position`)

func toSet(words string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		set[w] = true
	}
	return set
}

// RewriteIdentifiers replaces identifier tokens that resolve through aliases
// with the double-quoted actual column name, and table references with the
// quoted table. Literals, function names, declared output aliases, CTE names
// and type names are left alone. Applying it to its own output is a no-op.
func RewriteIdentifiers(query, table string, aliases IdentifierResolver) RewriteResult {
	tokens := Tokenize(query)
	enclosing := enclosingFunctions(tokens)
	declared, ctes := declaredNames(tokens)

	var subs []Substitution
	replace := func(i int, text string) {
		if tokens[i].Text != text {
			subs = append(subs, Substitution{From: tokens[i].Text, To: text})
			tokens[i].Text = text
			tokens[i].Kind = TokenQuoted
		}
	}
	quotedTable := QuoteIdentifier(table)

	for i := range tokens {
		tok := tokens[i]
		if !tok.IsIdentifier() {
			continue
		}
		value := tok.Value()
		lower := strings.ToLower(value)

		prev, next := prevSignificant(tokens, i), nextSignificant(tokens, i)
		prevWord := ""
		if prev >= 0 && tokens[prev].Kind == TokenWord {
			prevWord = strings.ToLower(tokens[prev].Text)
		}
		nextText := ""
		if next >= 0 {
			nextText = tokens[next].Text
		}

		// function call, declared alias, cast target or CTE name
		if tok.Kind == TokenWord && nextText == "(" {
			continue
		}
		if prevWord == "as" {
			if tok.Kind == TokenBacktick {
				replace(i, QuoteIdentifier(value))
			}
			continue
		}
		if tok.Kind == TokenWord {
			if next >= 0 && tokens[next].Kind == TokenString {
				continue // DATE '2024-01-01'
			}
			if prev >= 0 && tokens[prev].Kind == TokenNumber {
				continue // INTERVAL 3 DAY
			}
			if prev >= 0 && tokens[prev].Text == "(" && enclosing[i] == "extract" {
				continue
			}
		}

		if table != "" && (prevWord == "from" || prevWord == "join") && !fromContextFunctions[enclosing[i]] {
			if ctes[lower] {
				continue
			}
			replace(i, quotedTable)
			continue
		}
		if table != "" && strings.EqualFold(value, table) {
			replace(i, quotedTable)
			continue
		}
		if nextText == "." {
			if tok.Kind == TokenBacktick {
				replace(i, QuoteIdentifier(value))
			}
			continue
		}
		if tok.Kind == TokenWord && reservedWords[lower] {
			continue
		}
		if tok.Kind == TokenWord && typeWords[lower] && prev >= 0 &&
			(tokens[prev].Kind == TokenString || tokens[prev].Text == "::" || typeContextWords[prevWord]) {
			continue // x::date, INTERVAL '3' DAY, AT TIME ZONE
		}

		actual, ok := resolve(aliases, value)
		if !ok {
			if tok.Kind == TokenBacktick {
				replace(i, QuoteIdentifier(value))
			}
			continue
		}
		if declared[lower] && !strings.EqualFold(actual, value) {
			continue
		}
		replace(i, QuoteIdentifier(actual))
	}

	return RewriteResult{SQL: Join(tokens), Substitutions: subs}
}

func resolve(aliases IdentifierResolver, name string) (string, bool) {
	if aliases == nil || name == "" {
		return "", false
	}
	if actual, ok := aliases.Lookup(strings.ToLower(name)); ok {
		return actual, true
	}
	return aliases.Lookup(NormalizeKey(name))
}

// enclosingFunctions maps each token index to the lower-cased name of the
// function whose parentheses immediately enclose it, or "".
func enclosingFunctions(tokens []Token) []string {
	out := make([]string, len(tokens))
	var stack []string
	for i, tok := range tokens {
		if len(stack) > 0 {
			out[i] = stack[len(stack)-1]
		}
		if tok.Kind != TokenPunct {
			continue
		}
		switch tok.Text {
		case "(":
			name := ""
			if p := prevSignificant(tokens, i); p >= 0 && tokens[p].Kind == TokenWord {
				name = strings.ToLower(tokens[p].Text)
			}
			stack = append(stack, name)
		case ")":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return out
}

// declaredNames collects output aliases (AS name) and CTE names (name AS ( ... )).
func declaredNames(tokens []Token) (declared, ctes map[string]bool) {
	declared = make(map[string]bool)
	ctes = make(map[string]bool)
	for i, tok := range tokens {
		if !tok.IsIdentifier() {
			continue
		}
		next := nextSignificant(tokens, i)
		if next >= 0 && strings.EqualFold(tokens[next].Text, "as") {
			if after := nextSignificant(tokens, next); after >= 0 && tokens[after].Text == "(" {
				ctes[strings.ToLower(tok.Value())] = true
				continue
			}
		}
		prev := prevSignificant(tokens, i)
		if prev >= 0 && strings.EqualFold(tokens[prev].Text, "as") {
			if next < 0 || tokens[next].Text != "(" {
				declared[strings.ToLower(tok.Value())] = true
			}
		}
	}
	return declared, ctes
}
