package sql

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoSQL is returned when a model response contains no SQL statement.
var ErrNoSQL = errors.New("response contains no SQL")

var (
	thinkBlock    = regexp.MustCompile(`(?is)<think>.*?</think>`)
	unclosedThink = regexp.MustCompile(`(?is)<think>.*$`)
	fencedBlock   = regexp.MustCompile("(?s)```[A-Za-z]*[ \t]*\\r?\\n?(.*?)```")
	statementHead = regexp.MustCompile(`(?i)\bSELECT\b|\bWITH\s+(?:RECURSIVE\s+)?(?:"[^"]+"|\w+)\s+AS\s*\(`)
	sqlPrefix     = regexp.MustCompile(`(?i)^\s*(?:sql|query)\s*:\s*`)
	paragraphGap  = regexp.MustCompile(`\n[ \t]*\r?\n`)
)

// statementVerbs start a statement when they lead a line. Mutating verbs are
// listed so that such replies reach Guard instead of being skipped.
var statementVerbs = func() map[string]bool {
	verbs := map[string]bool{"SELECT": true, "WITH": true}
	for kw := range forbiddenKeywords {
		verbs[kw] = true
	}
	return verbs
}()

// clauseWords continue a statement across a blank line.
var clauseWords = map[string]bool{
	"FROM": true, "WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "JOIN": true, "LEFT": true, "RIGHT": true,
	"INNER": true, "OUTER": true, "FULL": true, "CROSS": true, "UNION": true,
	"INTERSECT": true, "EXCEPT": true, "AND": true, "OR": true, "ON": true,
	"QUALIFY": true, "WINDOW": true, "VALUES": true, "RETURNING": true,
}

// ExtractSQL pulls the SQL statement out of a model response. It removes
// reasoning blocks and prefers the first fenced code block. Otherwise it
// takes everything from the first statement onwards, dropping paragraphs
// that read as prose. Any statement in the reply is kept, so a mutating or
// stacked reply is left for Guard to refuse.
func ExtractSQL(response string) (string, error) {
	text := thinkBlock.ReplaceAllString(response, "")
	text = unclosedThink.ReplaceAllString(text, "")

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		if sql := strings.TrimSpace(m[1]); sql != "" {
			return sql, nil
		}
	}

	text = sqlPrefix.ReplaceAllString(strings.TrimSpace(text), "")
	start := statementStart(text)
	if start < 0 {
		return "", ErrNoSQL
	}

	var kept []string
	for i, para := range paragraphGap.Split(text[start:], -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if i == 0 || readsAsSQL(para) {
			kept = append(kept, para)
		}
	}
	sql := strings.TrimSpace(strings.Join(kept, "\n\n"))
	if sql == "" {
		return "", ErrNoSQL
	}
	return sql, nil
}

// statementStart returns the offset of the earliest statement: a SELECT or
// WITH anywhere, or any statement verb leading a line.
func statementStart(text string) int {
	start := -1
	if loc := statementHead.FindStringIndex(text); loc != nil {
		start = loc[0]
	}
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if start >= 0 && offset >= start {
			break
		}
		trimmed := strings.TrimLeft(line, " \t")
		if statementVerbs[strings.ToUpper(firstWord(strings.TrimLeft(trimmed, "( ")))] {
			start = offset + len(line) - len(trimmed)
			break
		}
		offset += len(line)
	}
	return start
}

// readsAsSQL reports whether a paragraph after the first one belongs to the
// statement text rather than to an explanation.
func readsAsSQL(para string) bool {
	switch para[0] {
	case '(', ')', ',', ';':
		return true
	}
	word := strings.ToUpper(firstWord(para))
	return statementVerbs[word] || clauseWords[word]
}

func firstWord(s string) string {
	end := 0
	for end < len(s) && isWordRune(rune(s[end])) {
		end++
	}
	return s[:end]
}
