package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a string literal.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Literal     string // The literal content that was checked
}

// CheckLiteralForInjection uses libinjection to detect SQL injection patterns
// in the content of a single string literal.
//
// Returns nil if no injection is detected.
func CheckLiteralForInjection(value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			Literal:     value,
		}
	}
	return nil
}

// CheckLiterals runs CheckLiteralForInjection over every string literal in the
// query and returns the failures in source order.
func CheckLiterals(sqlQuery string) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for _, tok := range Tokenize(sqlQuery) {
		if tok.Kind != TokenString {
			continue
		}
		if result := CheckLiteralForInjection(tok.Value()); result != nil {
			results = append(results, result)
		}
	}
	return results
}
