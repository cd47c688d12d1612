package llm

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/config"
)

// ErrNoProvider is returned by NewFromConfig when no provider is configured.
// The compiler then runs in fallback-only mode.
var ErrNoProvider = errors.New("no llm provider configured")

// NewFromConfig builds the configured Completer wrapped in a circuit breaker.
func NewFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*GuardedCompleter, error) {
	if !cfg.Enabled() {
		return nil, ErrNoProvider
	}

	clientCfg := &Config{
		Endpoint:    cfg.Endpoint,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	var inner Completer
	switch cfg.Provider {
	case "openai":
		c, err := NewClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		inner = c
	case "anthropic":
		c, err := NewAnthropicClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		inner = c
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}

	breaker := NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  cfg.CircuitThreshold,
		ResetAfter: time.Duration(cfg.CircuitResetSeconds) * time.Second,
	})

	logger.Info("LLM provider configured",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model))

	return NewGuardedCompleter(inner, breaker, logger), nil
}
