package logging

import (
	"regexp"
	"strings"
)

const (
	// MaxQueryLogLength is the maximum length of SQL text written to logs.
	MaxQueryLogLength = 200
	// MaxPromptLogLength is the maximum length of an LLM prompt or response written to logs.
	MaxPromptLogLength = 300
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in URL-style DSNs (postgres://, sqlserver://)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s?]+`)

	// api_key=xxx style parameters
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Provider secret keys that leak into LLM client errors (sk-..., sk-ant-...)
	providerKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9-_]{16,}`)

	// Bearer tokens in echoed request headers
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_.=]+`)

	// Single-quoted SQL literals, with '' escapes
	literalPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// SanitizeConnectionString removes credentials from a DSN.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError strips credentials and provider keys from an error message.
// Backend drivers and LLM clients both echo connection details on failure.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = providerKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)

	return sanitized
}

// SanitizeQuery prepares generated SQL for logging. String literals carry
// values taken from the user's question and are masked; the text is truncated
// to MaxQueryLogLength.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := literalPattern.ReplaceAllString(query, "'?'")
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	return TruncateString(sanitized, MaxQueryLogLength)
}

// SanitizePrompt collapses whitespace and truncates a prompt or completion for logging.
func SanitizePrompt(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	collapsed = providerKeyPattern.ReplaceAllString(collapsed, RedactedText)
	return TruncateString(collapsed, MaxPromptLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
