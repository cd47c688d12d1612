// Package llm provides the completion clients the SQL compiler calls.
package llm

import (
	"context"
)

// Completer turns a prompt into model text. Implementations are stateless
// between calls and honor ctx cancellation and deadlines.
// Use this interface for dependency injection to enable mocking in tests.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Described is implemented by completers that can report their model.
type Described interface {
	Model() string
	Endpoint() string
}

// Ensure implementations satisfy Completer at compile time.
var (
	_ Completer = (*Client)(nil)
	_ Completer = (*AnthropicClient)(nil)
	_ Completer = (*GuardedCompleter)(nil)
	_ Described = (*Client)(nil)
	_ Described = (*AnthropicClient)(nil)
)
