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

// Package resilience wraps calls to the local model endpoint and other
// flaky collaborators with retries, timeouts and a circuit breaker, and
// exposes the health surface the serve command publishes.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryFunc is one attempt of a retryable operation.
type RetryFunc func(ctx context.Context) error

// BackoffConfig controls WithExponentialBackoff. MaxRetries counts
// retries, not attempts: MaxRetries=3 means up to 4 calls.
type BackoffConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxRetries  int
	Multiplier  float64
	Jitter      bool
	RetryOnFunc func(error) bool
}

// DefaultBackoffConfig matches the model endpoint's posture: slow local
// inference, transient connection errors worth a second try.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxRetries:  3,
		Multiplier:  2.0,
		Jitter:      true,
		RetryOnFunc: DefaultRetryOnFunc,
	}
}

// DefaultRetryOnFunc retries everything except context cancellation,
// since a cancelled turn must not keep hitting the model.
func DefaultRetryOnFunc(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// WithExponentialBackoff calls fn until it succeeds, the error is
// non-retryable, the context ends, or the retry budget is spent.
func WithExponentialBackoff(ctx context.Context, logger *zap.Logger, config BackoffConfig, fn RetryFunc) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	retryOn := config.RetryOnFunc
	if retryOn == nil {
		retryOn = DefaultRetryOnFunc
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 0 {
				logger.Info("Operation recovered after retry",
					zap.Int("attempts", attempt+1))
			}
			return nil
		}
		if !retryOn(lastErr) {
			logger.Debug("Not retrying",
				zap.Error(lastErr),
				zap.Int("attempts", attempt+1))
			return lastErr
		}
		if attempt >= config.MaxRetries {
			break
		}

		delay := backoffDelay(config, attempt)
		logger.Debug("Attempt failed, backing off",
			zap.Error(lastErr),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	logger.Warn("Retry budget exhausted",
		zap.Error(lastErr),
		zap.Int("attempts", config.MaxRetries+1))
	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, lastErr)
}

// backoffDelay grows the delay geometrically and, when jitter is on,
// spreads it ±10% so concurrent sessions don't retry in lockstep.
func backoffDelay(config BackoffConfig, attempt int) time.Duration {
	delay := config.BaseDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay >= config.MaxDelay {
			delay = config.MaxDelay
			break
		}
	}
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if config.Jitter && delay > 0 {
		delay += time.Duration((rand.Float64()*0.2 - 0.1) * float64(delay))
	}
	return delay
}
