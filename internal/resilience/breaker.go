// Copyright 2024 Infra Advisor Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitBreakerOpen is returned without calling the wrapped
// function while the breaker is rejecting traffic.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker's admission state.
type CircuitState int

const (
	// CircuitClosed admits every call.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects every call until the reset timeout passes.
	CircuitOpen
	// CircuitHalfOpen admits a limited number of probe calls.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes when the breaker trips and recovers.
type CircuitBreakerConfig struct {
	Name             string
	FailureThreshold int
	ResetTimeout     time.Duration
	ProbeCount       int
	IsFailure        func(error) bool
}

// DefaultCircuitBreakerConfig trips after 5 consecutive failures and
// probes again after a minute, matching a local model server that
// needs time to reload or restart.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     time.Minute,
		ProbeCount:       3,
		IsFailure:        func(err error) bool { return err != nil },
	}
}

// CircuitBreakerStats is a snapshot published on the health endpoint.
type CircuitBreakerStats struct {
	Name             string       `json:"name"`
	State            CircuitState `json:"state"`
	ConsecutiveFails int          `json:"consecutive_failures"`
	TotalRequests    int64        `json:"total_requests"`
	TotalFailures    int64        `json:"total_failures"`
	LastFailure      time.Time    `json:"last_failure,omitempty"`
	LastTransition   time.Time    `json:"last_transition"`
}

// CircuitBreaker sheds load from a failing dependency. A run of
// failures opens it; after ResetTimeout a few probes are admitted, and
// the breaker closes only if every probe succeeds.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger *zap.Logger

	mu             sync.Mutex
	state          CircuitState
	consecFails    int
	probesInFlight int
	probeSuccesses int
	totalRequests  int64
	totalFailures  int64
	lastFailure    time.Time
	lastTransition time.Time
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{
		config:         config,
		logger:         logger,
		state:          CircuitClosed,
		lastTransition: time.Now(),
	}
}

// Execute runs fn if the breaker admits the call and records the
// outcome. A rejected call returns ErrCircuitBreakerOpen.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if cb == nil {
		return ErrCircuitBreakerOpen
	}
	if !cb.admit() {
		return ErrCircuitBreakerOpen
	}
	err := fn(ctx)
	cb.observe(err)
	return err
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.lastTransition) >= cb.config.ResetTimeout {
		cb.transition(CircuitHalfOpen)
	}

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if cb.probesInFlight >= cb.config.ProbeCount {
			return false
		}
		cb.probesInFlight++
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++
	failed := cb.config.IsFailure(err)
	if !failed {
		cb.consecFails = 0
		if cb.state == CircuitHalfOpen {
			cb.probeSuccesses++
			if cb.probeSuccesses >= cb.config.ProbeCount {
				cb.transition(CircuitClosed)
			}
		}
		return
	}

	cb.totalFailures++
	cb.consecFails++
	cb.lastFailure = time.Now()

	switch cb.state {
	case CircuitHalfOpen:
		// A failed probe reopens immediately.
		cb.transition(CircuitOpen)
	case CircuitClosed:
		if cb.consecFails >= cb.config.FailureThreshold {
			cb.transition(CircuitOpen)
		}
	}
}

// transition requires cb.mu held.
func (cb *CircuitBreaker) transition(next CircuitState) {
	prev := cb.state
	cb.state = next
	cb.lastTransition = time.Now()
	cb.probesInFlight = 0
	cb.probeSuccesses = 0

	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.config.Name),
		zap.String("from", prev.String()),
		zap.String("to", next.String()),
		zap.Int("consecutive_failures", cb.consecFails))
}

// GetState returns the current admission state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && time.Since(cb.lastTransition) >= cb.config.ResetTimeout {
		cb.transition(CircuitHalfOpen)
	}
	return cb.state
}

// GetStats snapshots the breaker for the health report.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	if cb == nil {
		return CircuitBreakerStats{Name: "unknown", State: CircuitClosed}
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		Name:             cb.config.Name,
		State:            cb.state,
		ConsecutiveFails: cb.consecFails,
		TotalRequests:    cb.totalRequests,
		TotalFailures:    cb.totalFailures,
		LastFailure:      cb.lastFailure,
		LastTransition:   cb.lastTransition,
	}
}

// Reset closes the breaker regardless of recent failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecFails = 0
	cb.transition(CircuitClosed)
}
