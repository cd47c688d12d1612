package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is the breaker position guarding the completion provider.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

var circuitStateNames = map[CircuitState]string{
	CircuitClosed:   "closed",
	CircuitOpen:     "open",
	CircuitHalfOpen: "half-open",
}

func (s CircuitState) String() string {
	if name, ok := circuitStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// CircuitBreakerConfig sets when the breaker trips and when it probes again.
type CircuitBreakerConfig struct {
	Threshold  int
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig trips after five straight failures and probes
// again after thirty seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Threshold: 5, ResetAfter: 30 * time.Second}
}

// CircuitBreaker stops calling the provider after Threshold consecutive
// failures. Once ResetAfter has elapsed a single probe call is admitted; its
// outcome closes or reopens the circuit. The compiler treats a refused call
// like any other model failure and falls back to templated SQL.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.RWMutex
	state    CircuitState
	failures int
	openedAt time.Time
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultCircuitBreakerConfig().Threshold
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a provider call may proceed. A refusal carries an
// ErrorTypeCircuit error.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitClosed {
		return true, nil
	}
	if cb.state == CircuitHalfOpen {
		return false, NewError(ErrorTypeCircuit, "circuit breaker half-open: probe call already in flight", false, nil)
	}

	waited := cb.now().Sub(cb.openedAt)
	if waited > cb.cfg.ResetAfter {
		cb.state = CircuitHalfOpen
		return true, nil
	}
	msg := fmt.Sprintf("circuit breaker open: completion provider failed %d times in a row, retry in %v",
		cb.failures, (cb.cfg.ResetAfter - waited).Round(time.Second))
	return false, NewError(ErrorTypeCircuit, msg, false, nil)
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.Reset()
}

// RecordFailure counts a failed call. A failed probe reopens the circuit
// immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.cfg.Threshold {
		cb.state = CircuitOpen
		cb.openedAt = cb.now()
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
}

// GuardedCompleter wraps a Completer with a circuit breaker.
type GuardedCompleter struct {
	inner   Completer
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewGuardedCompleter wraps inner with breaker.
func NewGuardedCompleter(inner Completer, breaker *CircuitBreaker, logger *zap.Logger) *GuardedCompleter {
	return &GuardedCompleter{
		inner:   inner,
		breaker: breaker,
		logger:  logger.Named("circuit_breaker"),
	}
}

// Complete implements Completer.
func (g *GuardedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if ok, err := g.breaker.Allow(); !ok {
		g.logger.Warn("LLM call skipped", zap.Error(err))
		return "", err
	}

	text, err := g.inner.Complete(ctx, prompt)
	if err != nil {
		g.breaker.RecordFailure()
		if g.breaker.State() == CircuitOpen {
			g.logger.Warn("circuit breaker tripped",
				zap.Int("consecutive_failures", g.breaker.ConsecutiveFailures()))
		}
		return "", err
	}

	g.breaker.RecordSuccess()
	return text, nil
}

// Breaker exposes the wrapped circuit breaker.
func (g *GuardedCompleter) Breaker() *CircuitBreaker {
	return g.breaker
}
