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
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func testBreaker(t *testing.T, resetTimeout time.Duration) *CircuitBreaker {
	t.Helper()
	config := DefaultCircuitBreakerConfig("test")
	config.FailureThreshold = 3
	config.ProbeCount = 2
	config.ResetTimeout = resetTimeout
	return NewCircuitBreaker(config, zaptest.NewLogger(t))
}

func failNTimes(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(ctx context.Context) error {
			return errors.New("boom")
		})
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := testBreaker(t, time.Minute)

	failNTimes(cb, 2)
	if cb.GetState() != CircuitClosed {
		t.Fatal("breaker should stay closed below the threshold")
	}

	failNTimes(cb, 1)
	if cb.GetState() != CircuitOpen {
		t.Fatal("breaker should open at the threshold")
	}

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Fatal("open breaker must not call the function")
		return nil
	})
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("expected ErrCircuitBreakerOpen, got %v", err)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(t, time.Minute)

	failNTimes(cb, 2)
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	failNTimes(cb, 2)

	if cb.GetState() != CircuitClosed {
		t.Fatal("non-consecutive failures should not open the breaker")
	}
}

func TestCircuitBreakerClosesAfterSuccessfulProbes(t *testing.T) {
	cb := testBreaker(t, 5*time.Millisecond)

	failNTimes(cb, 3)
	time.Sleep(10 * time.Millisecond)

	if cb.GetState() != CircuitHalfOpen {
		t.Fatal("breaker should move to half-open after the reset timeout")
	}

	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("probe %d rejected: %v", i, err)
		}
	}
	if cb.GetState() != CircuitClosed {
		t.Fatal("breaker should close after successful probes")
	}
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := testBreaker(t, 5*time.Millisecond)

	failNTimes(cb, 3)
	time.Sleep(10 * time.Millisecond)

	failNTimes(cb, 1)
	if cb.GetState() != CircuitOpen {
		t.Fatal("a failed probe should reopen the breaker")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := testBreaker(t, time.Minute)

	failNTimes(cb, 3)
	cb.Reset()

	if cb.GetState() != CircuitClosed {
		t.Fatal("Reset should close the breaker")
	}
	if err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("reset breaker rejected a call: %v", err)
	}
}

func TestCircuitBreakerStats(t *testing.T) {
	cb := testBreaker(t, time.Minute)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	failNTimes(cb, 2)

	stats := cb.GetStats()
	if stats.Name != "test" {
		t.Errorf("expected name test, got %q", stats.Name)
	}
	if stats.TotalRequests != 3 {
		t.Errorf("expected 3 requests, got %d", stats.TotalRequests)
	}
	if stats.TotalFailures != 2 {
		t.Errorf("expected 2 failures, got %d", stats.TotalFailures)
	}
	if stats.ConsecutiveFails != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", stats.ConsecutiveFails)
	}
	if stats.LastFailure.IsZero() {
		t.Error("expected a last failure timestamp")
	}
}
