package llm

import (
	"context"
	"sync"
)

// MockCompleter is a configurable mock for testing LLM functionality.
// Set CompleteFunc to control behavior in tests.
type MockCompleter struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, Responses are returned in order, then the last one repeats.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	// Responses are canned replies used when CompleteFunc is nil.
	Responses []string

	mu      sync.Mutex
	prompts []string
}

// NewMockCompleter creates a mock that replies with the given responses in order.
func NewMockCompleter(responses ...string) *MockCompleter {
	return &MockCompleter{Responses: responses}
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	n := len(m.prompts)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	if n > len(m.Responses) {
		n = len(m.Responses)
	}
	return m.Responses[n-1], nil
}

// Calls returns how many times Complete was invoked.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns every prompt received, in order.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Reset clears recorded calls.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
}

var _ Completer = (*MockCompleter)(nil)
