package sql

import (
	"strings"
	"unicode"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenWord         TokenKind = iota // unquoted identifier or keyword
	TokenQuoted                        // "identifier"
	TokenBacktick                      // `identifier`
	TokenString                        // 'literal'
	TokenNumber                        // 42, 3.14
	TokenSpace                         // whitespace run
	TokenLineComment                   // -- comment
	TokenBlockComment                  // /* comment */
	TokenPunct                         // operators and punctuation
)

// Token is one lexical unit of SQL text. Concatenating Text of every token
// reproduces the input exactly.
type Token struct {
	Kind         TokenKind
	Text         string
	Unterminated bool // quote or block comment not closed before end of input
}

// Value returns the content of a quoted token with quotes removed and
// doubled quote characters unescaped. Other tokens return Text.
func (t Token) Value() string {
	switch t.Kind {
	case TokenQuoted:
		return unquote(t.Text, `"`, t.Unterminated)
	case TokenBacktick:
		return unquote(t.Text, "`", t.Unterminated)
	case TokenString:
		return unquote(t.Text, "'", t.Unterminated)
	}
	return t.Text
}

// Upper returns the upper-cased text of a word token.
func (t Token) Upper() string {
	return strings.ToUpper(t.Text)
}

// IsIdentifier reports whether the token can name a column or table.
func (t Token) IsIdentifier() bool {
	return t.Kind == TokenWord || t.Kind == TokenQuoted || t.Kind == TokenBacktick
}

func unquote(text, q string, unterminated bool) string {
	inner := strings.TrimPrefix(text, q)
	if !unterminated {
		inner = strings.TrimSuffix(inner, q)
	}
	return strings.ReplaceAll(inner, q+q, q)
}

var multiCharOps = []string{"<=", ">=", "<>", "!=", "==", "||", "::"}

// Tokenize splits SQL text into tokens. It never fails; malformed input
// yields Unterminated tokens.
func Tokenize(s string) []Token {
	r := []rune(s)
	n := len(r)
	var tokens []Token

	for i := 0; i < n; {
		c := r[i]
		start := i

		switch {
		case unicode.IsSpace(c):
			for i < n && unicode.IsSpace(r[i]) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenSpace, Text: string(r[start:i])})

		case c == '-' && i+1 < n && r[i+1] == '-':
			for i < n && r[i] != '\n' {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenLineComment, Text: string(r[start:i])})

		case c == '/' && i+1 < n && r[i+1] == '*':
			i += 2
			closed := false
			for i < n {
				if r[i] == '*' && i+1 < n && r[i+1] == '/' {
					i += 2
					closed = true
					break
				}
				i++
			}
			tokens = append(tokens, Token{Kind: TokenBlockComment, Text: string(r[start:i]), Unterminated: !closed})

		case c == '\'' || c == '"' || c == '`':
			end, closed := scanQuoted(r, i, c)
			i = end
			kind := TokenString
			if c == '"' {
				kind = TokenQuoted
			} else if c == '`' {
				kind = TokenBacktick
			}
			tokens = append(tokens, Token{Kind: kind, Text: string(r[start:i]), Unterminated: !closed})

		case unicode.IsDigit(c) || (c == '.' && i+1 < n && unicode.IsDigit(r[i+1])):
			for i < n && (unicode.IsDigit(r[i]) || r[i] == '.') {
				i++
			}
			// 1e10 or a word starting with digits such as 2nd_col
			for i < n && isWordRune(r[i]) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: string(r[start:i])})

		case isWordRune(c):
			for i < n && isWordRune(r[i]) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenWord, Text: string(r[start:i])})

		default:
			i++
			if i < n {
				two := string(r[start : i+1])
				for _, op := range multiCharOps {
					if two == op {
						i++
						break
					}
				}
			}
			tokens = append(tokens, Token{Kind: TokenPunct, Text: string(r[start:i])})
		}
	}
	return tokens
}

// scanQuoted returns the index just past the closing quote. A doubled quote
// character inside the span is an escape.
func scanQuoted(r []rune, i int, q rune) (int, bool) {
	n := len(r)
	j := i + 1
	for j < n {
		if r[j] == q {
			if j+1 < n && r[j+1] == q {
				j += 2
				continue
			}
			return j + 1, true
		}
		j++
	}
	return n, false
}

func isWordRune(c rune) bool {
	return c == '_' || c == '$' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

// Join concatenates token text.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// nextSignificant returns the index of the next token after i that is not
// whitespace or a comment, or -1.
func nextSignificant(tokens []Token, i int) int {
	for j := i + 1; j < len(tokens); j++ {
		switch tokens[j].Kind {
		case TokenSpace, TokenLineComment, TokenBlockComment:
			continue
		}
		return j
	}
	return -1
}

// prevSignificant returns the index of the previous significant token before i, or -1.
func prevSignificant(tokens []Token, i int) int {
	for j := i - 1; j >= 0; j-- {
		switch tokens[j].Kind {
		case TokenSpace, TokenLineComment, TokenBlockComment:
			continue
		}
		return j
	}
	return -1
}

// matchingParen returns the index of the ")" closing the "(" at open, or -1.
func matchingParen(tokens []Token, open int) int {
	depth := 0
	for j := open; j < len(tokens); j++ {
		if tokens[j].Kind != TokenPunct {
			continue
		}
		switch tokens[j].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// QuoteIdentifier double-quotes an identifier, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a string value, doubling embedded quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
